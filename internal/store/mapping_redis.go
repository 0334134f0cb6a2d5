package store

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisMapping persists document → file-search store handles in Redis
// so registered documents survive a process restart. Handles are
// written with SETNX: the first successful upload wins and the mapping
// is immutable afterwards.
type RedisMapping struct {
	client *redis.Client
	keyNS  string
}

func NewRedisMapping(redisURL string) (*RedisMapping, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisMapping{client: c, keyNS: "doc"}, nil
}

func (s *RedisMapping) key(documentID string) string {
	return fmt.Sprintf("%s:%s:store", s.keyNS, documentID)
}

func (s *RedisMapping) Get(ctx context.Context, documentID string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(documentID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisMapping) Put(ctx context.Context, documentID, storeName string) error {
	return s.client.SetNX(ctx, s.key(documentID), storeName, 0).Err()
}

func (s *RedisMapping) Close() error { return s.client.Close() }
