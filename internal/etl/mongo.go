package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink writes pages with unordered bulk operations.
type MongoSink struct {
	DB      *mongo.Database
	Timeout time.Duration
}

func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{DB: db, Timeout: 30 * time.Second}
}

func (m *MongoSink) Insert(ctx context.Context, collection string, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	items := make([]interface{}, len(docs))
	for i, d := range docs {
		items[i] = bson.D(d)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.DB.Collection(collection).InsertMany(ctx, items, options.InsertMany().SetOrdered(false))
	if err != nil {
		n := 0
		if res != nil {
			n = len(res.InsertedIDs)
		}
		return n, err
	}
	return len(res.InsertedIDs), nil
}

func (m *MongoSink) Upsert(ctx context.Context, collection string, docs []models.Document) (int, error) {
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		id, ok := d.Get("_id")
		if !ok {
			return 0, fmt.Errorf("upsert into %s: document without _id", collection)
		}
		model := mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetReplacement(bson.D(d)).
			SetUpsert(true)
		writes = append(writes, model)
	}
	if len(writes) == 0 {
		return 0, nil
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	res, err := m.DB.Collection(collection).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	logger.Debugf("Mongo BulkWrite on %s: Match %d, Mod %d, Upsert %d",
		collection, res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	return int(res.MatchedCount + res.UpsertedCount), nil
}

func (m *MongoSink) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.Timeout)
}
