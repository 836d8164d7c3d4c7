package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/sql2mongo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Row is a document's _id and the value of the field being resolved.
type Row struct {
	ID    interface{}
	Value interface{}
}

// Store is the document-store surface the resolver needs.
type Store interface {
	EnsureIndex(ctx context.Context, collection, field string) error
	Distinct(ctx context.Context, collection, field string) ([]interface{}, error)
	// Lookup reads field from the first document whose matchField equals value.
	Lookup(ctx context.Context, collection, matchField string, value interface{}, field string) (interface{}, bool, error)
	// SetWhere sets setField on every document whose matchField equals value.
	SetWhere(ctx context.Context, collection, matchField string, value interface{}, setField string, setValue interface{}) (int64, error)
	// Page reads one 1-indexed page of a collection in migration order.
	Page(ctx context.Context, collection, field string, page, size int) ([]Row, error)
	SetByID(ctx context.Context, collection string, id interface{}, setField string, setValue interface{}) error
}

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	DB      *mongo.Database
	Timeout time.Duration
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{DB: db, Timeout: 30 * time.Second}
}

func (m *MongoStore) EnsureIndex(ctx context.Context, collection, field string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.DB.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", collection, field, err)
	}
	return nil
}

func (m *MongoStore) Distinct(ctx context.Context, collection, field string) ([]interface{}, error) {
	values, err := m.DB.Collection(collection).Distinct(ctx, field, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", collection, field, err)
	}
	return values, nil
}

func (m *MongoStore) Lookup(ctx context.Context, collection, matchField string, value interface{}, field string) (interface{}, bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.D{{Key: field, Value: 1}})
	var doc bson.M
	err := m.DB.Collection(collection).FindOne(ctx, bson.D{{Key: matchField, Value: value}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s.%s=%v: %w", collection, matchField, value, err)
	}
	v, ok := valueAt(doc, field)
	return v, ok, nil
}

func (m *MongoStore) SetWhere(ctx context.Context, collection, matchField string, value interface{}, setField string, setValue interface{}) (int64, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.DB.Collection(collection).UpdateMany(ctx,
		bson.D{{Key: matchField, Value: value}},
		bson.D{{Key: "$set", Value: bson.D{{Key: setField, Value: setValue}}}})
	if err != nil {
		return 0, fmt.Errorf("update %s where %s=%v: %w", collection, matchField, value, err)
	}
	return res.MatchedCount, nil
}

func (m *MongoStore) Page(ctx context.Context, collection, field string, page, size int) ([]Row, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: models.MigratedField, Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size)).
		SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: field, Value: 1}})

	cursor, err := m.DB.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("page %d of %s: %w", page, collection, err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("page %d of %s: %w", page, collection, err)
	}

	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		v, _ := valueAt(d, field)
		rows = append(rows, Row{ID: d["_id"], Value: v})
	}
	return rows, nil
}

func (m *MongoStore) SetByID(ctx context.Context, collection string, id interface{}, setField string, setValue interface{}) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.DB.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: setField, Value: setValue}}}})
	if err != nil {
		return fmt.Errorf("update %s _id=%v: %w", collection, id, err)
	}
	return nil
}

func (m *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.Timeout)
}

// valueAt follows a dotted path through embedded documents.
func valueAt(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		switch d := cur.(type) {
		case bson.M:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range d {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}
