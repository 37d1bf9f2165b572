// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed Storage, for deployments where auth state must
// survive the process and be shared across instances.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client.  When ttl is zero entries never expire;
// a non-zero ttl bounds how long unconsumed state (a pending anti-forgery
// state, say) lingers.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) (*Redis, error) {
	const op = "storage.NewRedis"
	if rdb == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	}
	if prefix == "" {
		prefix = "checkauth"
	}
	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (r *Redis) Read(ctx context.Context, key string, configID string) (string, bool, error) {
	k, err := partitionKey(configID, key)
	if err != nil {
		return "", false, err
	}
	v, err := r.rdb.Get(ctx, r.prefix+":"+k).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Write(ctx context.Context, key string, configID string, value string) error {
	k, err := partitionKey(configID, key)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+":"+k, value, r.ttl).Err()
}

func (r *Redis) Remove(ctx context.Context, key string, configID string) error {
	k, err := partitionKey(configID, key)
	if err != nil {
		return err
	}
	return r.rdb.Del(ctx, r.prefix+":"+k).Err()
}
