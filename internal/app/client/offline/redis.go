package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	redisNamesKey    = "repair_journal:worker:generations"
	redisCachePrefix = "repair_journal:worker:cache:"
)

// RedisStorage хранит поколения в Redis: множество имен и по хешу на поколение
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := s.client.SAdd(ctx, redisNamesKey, name).Err(); err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	return &redisCache{client: s.client, key: redisCachePrefix + name}, nil
}

func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, redisNamesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, redisNamesKey, name)
		pipe.Del(ctx, redisCachePrefix+name)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	return removed.Val() > 0, nil
}

type redisCache struct {
	client *redis.Client
	key    string
}

func (c *redisCache) Match(ctx context.Context, key string) (*Response, bool, error) {
	raw, err := c.client.HGet(ctx, c.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("match %s: %w", key, err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return &resp, true, nil
}

func (c *redisCache) Put(ctx context.Context, key string, resp *Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.HSet(ctx, c.key, key, raw).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.client.HKeys(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
