package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister shares the catalog entry between instances through Redis.
type RedisPersister struct {
	client *redis.Client
	prefix string
}

// NewRedisPersister connects using a URL of the form
// redis://[:password@]host:port/db.
func NewRedisPersister(ctx context.Context, redisURL, prefix string) (*RedisPersister, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 1
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisPersisterFromClient(client, prefix), nil
}

func NewRedisPersisterFromClient(client *redis.Client, prefix string) *RedisPersister {
	return &RedisPersister{client: client, prefix: prefix}
}

func (r *RedisPersister) key(k string) string {
	return r.prefix + k
}

func (r *RedisPersister) Load(ctx context.Context, key string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *RedisPersister) Save(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, 0).Err()
}

func (r *RedisPersister) Prune(ctx context.Context, prefix, keep string) (int, error) {
	keepKey := r.key(keep)
	var stale []string
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		if k := iter.Val(); k != keepKey {
			stale = append(stale, k)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, stale...).Result()
	return int(n), err
}

func (r *RedisPersister) Close() error {
	return r.client.Close()
}
