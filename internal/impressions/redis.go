// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gazegate:impressions:"

// RedisStore appends impressions to one list per session.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to the server named by a redis:// URL.
func OpenRedis(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Init verifies connectivity.
func (s *RedisStore) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, imp Impression) error {
	buf, err := json.Marshal(imp)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, redisKeyPrefix+imp.SessionID, buf).Err()
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]Impression, error) {
	vals, err := s.client.LRange(ctx, redisKeyPrefix+sessionID, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Impression, 0, len(vals))
	for _, v := range vals {
		var imp Impression
		if err := json.Unmarshal([]byte(v), &imp); err != nil {
			return nil, fmt.Errorf("decode impression: %w", err)
		}
		out = append(out, imp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.client.Close() }
