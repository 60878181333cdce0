package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisProvider stores each room document as a plain string key
// "room:{roomID}:{key}". SET is atomic per key.
type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

var _ Provider = (*RedisProvider)(nil)

func (p *RedisProvider) Open(roomID string) Store {
	return &redisStore{client: p.client, roomID: roomID}
}

type redisStore struct {
	client *redis.Client
	roomID string
}

func redisKey(roomID, key string) string {
	return "room:" + roomID + ":" + key
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, redisKey(s.roomID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKey(s.roomID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
