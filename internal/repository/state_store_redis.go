package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type redisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) StateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *redisStateStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStateStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *redisStateStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStateStore) Extend(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, s.client, []string{key}, value, ttl.Milliseconds()).Int64()
	return n == 1, err
}

func (s *redisStateStore) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, value).Int64()
	return n == 1, err
}
