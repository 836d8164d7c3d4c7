package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultRedisTTL bounds how long entries of an abandoned job survive.
const DefaultRedisTTL = 24 * time.Hour

// RedisCache keeps a job's resolved values under its own key namespace.
// Values are stored BSON-encoded so they come back with the types Mongo uses.
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

func NewRedisCache(client *redis.Client, namespace string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, namespace: namespace, ttl: ttl}
}

// RedisCacheFactory gives every job a fresh prefix:<uuid>: namespace and clears it before use.
func RedisCacheFactory(client *redis.Client, prefix string) CacheFactory {
	return func(ctx context.Context) (Cache, error) {
		c := NewRedisCache(client, fmt.Sprintf("%s:%s:", prefix, uuid.NewString()), DefaultRedisTTL)
		if err := c.Clear(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

type cachedValue struct {
	V interface{} `bson:"v"`
}

func (c *RedisCache) Get(ctx context.Context, key interface{}) (interface{}, bool, error) {
	raw, err := c.client.Get(ctx, c.namespace+keyOf(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var cv cachedValue
	if err := bson.Unmarshal(raw, &cv); err != nil {
		return nil, false, fmt.Errorf("decode cached value: %w", err)
	}
	return cv.V, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value interface{}) error {
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: value}})
	if err != nil {
		return fmt.Errorf("encode cached value: %w", err)
	}
	if err := c.client.Set(ctx, c.namespace+keyOf(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear deletes every key in the namespace.
func (c *RedisCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.namespace+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
