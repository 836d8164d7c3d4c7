package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/BartekS5/sql2mongo/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeStore struct {
	mu sync.Mutex

	colls   map[string][]bson.M
	indexes []string

	lookupCalls      int
	lookedUp         map[interface{}]int
	distinctCalls    int
	pageCalls        int
	setWhereFailures int
	pageFailures     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{colls: map[string][]bson.M{}, lookedUp: map[interface{}]int{}}
}

func (s *fakeStore) add(collection string, docs ...bson.M) {
	s.colls[collection] = append(s.colls[collection], docs...)
}

func (s *fakeStore) EnsureIndex(ctx context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes = append(s.indexes, collection+"."+field)
	return nil
}

func (s *fakeStore) Distinct(ctx context.Context, collection, field string) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distinctCalls++
	seen := map[interface{}]bool{}
	var out []interface{}
	for _, d := range s.colls[collection] {
		v, ok := d[field]
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

func (s *fakeStore) Lookup(ctx context.Context, collection, matchField string, value interface{}, field string) (interface{}, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupCalls++
	s.lookedUp[value]++
	for _, d := range s.colls[collection] {
		if d[matchField] == value {
			v, ok := d[field]
			return v, ok, nil
		}
	}
	return nil, false, nil
}

func (s *fakeStore) SetWhere(ctx context.Context, collection, matchField string, value interface{}, setField string, setValue interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setWhereFailures > 0 {
		s.setWhereFailures--
		return 0, errors.New("not primary")
	}
	var n int64
	for _, d := range s.colls[collection] {
		v, ok := d[matchField]
		if (ok && v == value) || (!ok && value == nil) {
			d[setField] = setValue
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Page(ctx context.Context, collection, field string, page, size int) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCalls++
	if s.pageFailures > 0 {
		s.pageFailures--
		return nil, errors.New("cursor killed")
	}
	docs := s.colls[collection]
	start := (page - 1) * size
	if start >= len(docs) {
		return nil, nil
	}
	end := start + size
	if end > len(docs) {
		end = len(docs)
	}
	rows := make([]Row, 0, end-start)
	for _, d := range docs[start:end] {
		rows = append(rows, Row{ID: d["_id"], Value: d[field]})
	}
	return rows, nil
}

func (s *fakeStore) SetByID(ctx context.Context, collection string, id interface{}, setField string, setValue interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.colls[collection] {
		if d["_id"] == id {
			d[setField] = setValue
			return nil
		}
	}
	return fmt.Errorf("no document %v", id)
}

// seedOrders adds n orders referencing customers 1..distinct and customers
// 1..matched, each customer carrying _id "cust-<legacy id>".
func seedOrders(s *fakeStore, n, distinct, matched int) {
	for i := 1; i <= matched; i++ {
		s.add("customers", bson.M{"_id": fmt.Sprintf("cust-%d", i), "legacy_id": int64(i)})
	}
	for i := 0; i < n; i++ {
		s.add("orders", bson.M{"_id": int64(i), "customer_id": int64(i%distinct + 1)})
	}
}
