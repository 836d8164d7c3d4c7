package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("ensure index", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, NewMongoStore(mt.DB).EnsureIndex(ctx, "customers", "legacy_id"))
	})

	mt.Run("distinct", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "values", Value: bson.A{int64(1), int64(2), "x"}},
		))
		values, err := NewMongoStore(mt.DB).Distinct(ctx, "orders", "customer_id")
		require.NoError(mt, err)
		assert.Equal(mt, []interface{}{int64(1), int64(2), "x"}, values)
	})

	mt.Run("lookup found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.customers", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "cust-1"}}))
		v, ok, err := NewMongoStore(mt.DB).Lookup(ctx, "customers", "legacy_id", int64(1), "_id")
		require.NoError(mt, err)
		assert.True(mt, ok)
		assert.Equal(mt, "cust-1", v)
	})

	mt.Run("lookup nested field", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.customers", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "cust-1"}, {Key: "account", Value: bson.D{{Key: "code", Value: "A-9"}}}}))
		v, ok, err := NewMongoStore(mt.DB).Lookup(ctx, "customers", "legacy_id", int64(1), "account.code")
		require.NoError(mt, err)
		assert.True(mt, ok)
		assert.Equal(mt, "A-9", v)
	})

	mt.Run("lookup missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.customers", mtest.FirstBatch))
		v, ok, err := NewMongoStore(mt.DB).Lookup(ctx, "customers", "legacy_id", int64(99), "_id")
		require.NoError(mt, err)
		assert.False(mt, ok)
		assert.Nil(mt, v)
	})

	mt.Run("lookup error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Name:    "InterruptedAtShutdown",
			Message: "interrupted at shutdown",
		}))
		_, _, err := NewMongoStore(mt.DB).Lookup(ctx, "customers", "legacy_id", int64(1), "_id")
		assert.Error(mt, err)
	})

	mt.Run("set where", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(3)},
			bson.E{Key: "nModified", Value: int32(3)},
		))
		n, err := NewMongoStore(mt.DB).SetWhere(ctx, "orders", "customer_id", int64(1), "customer_ref", "cust-1")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("page", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.orders", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: int64(1)}, {Key: "customer_id", Value: int64(5)}},
			bson.D{{Key: "_id", Value: int64(2)}},
		))
		rows, err := NewMongoStore(mt.DB).Page(ctx, "orders", "customer_id", 1, 2)
		require.NoError(mt, err)
		assert.Equal(mt, []Row{{ID: int64(1), Value: int64(5)}, {ID: int64(2)}}, rows)
	})

	mt.Run("set by id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(1)},
		))
		assert.NoError(mt, NewMongoStore(mt.DB).SetByID(ctx, "orders", int64(1), "customer_ref", "cust-5"))
	})
}

func TestValueAt(t *testing.T) {
	doc := bson.M{"a": bson.M{"b": bson.D{{Key: "c", Value: 3}}}, "n": nil}

	v, ok := valueAt(doc, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = valueAt(doc, "n")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = valueAt(doc, "a.x")
	assert.False(t, ok)
	_, ok = valueAt(doc, "n.x")
	assert.False(t, ok)
}
