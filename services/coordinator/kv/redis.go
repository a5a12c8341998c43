// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize is the COUNT hint passed to SCAN during Keys enumeration.
const scanBatchSize = 256

// Options configures the Redis-backed store.
type Options struct {
	// Addr is host:port. Defaults to localhost:6379.
	Addr string

	// Password is optional.
	Password string

	// DB selects the logical database. Defaults to 0.
	DB int

	// DialTimeout bounds connection establishment. Defaults to 5s.
	DialTimeout time.Duration
}

// DefaultOptions returns Options suitable for a local Redis.
func DefaultOptions() Options {
	return Options{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// Redis is the production Store over go-redis.
type Redis struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
//
// # Description
//
// Connection pooling, reconnects, and request timeouts are handled by the
// go-redis client. The returned Store is safe for concurrent use and is meant
// to be created once at service start and closed on shutdown.
//
// # Inputs
//
//   - ctx: bounds the initial ping.
//   - opts: connection options. Zero fields take defaults.
//
// # Outputs
//
//   - *Redis: ready-to-use store.
//   - error: non-nil if the store is unreachable.
func New(ctx context.Context, opts Options) (*Redis, error) {
	def := DefaultOptions()
	if opts.Addr == "" {
		opts.Addr = def.Addr
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = def.DialTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}

	initMetrics()
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		err = ErrNotFound
	}
	observe(ctx, "get", start, err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	start := time.Now()
	err := r.client.Set(ctx, key, value, expiration).Err()
	observe(ctx, "set", start, err)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := r.client.Del(ctx, keys...).Err()
	observe(ctx, "del", start, err)
	if err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (r *Redis) HSet(ctx context.Context, key, field, value string) error {
	start := time.Now()
	err := r.client.HSet(ctx, key, field, value).Err()
	observe(ctx, "hset", start, err)
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, error) {
	start := time.Now()
	val, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		err = ErrNotFound
	}
	observe(ctx, "hget", start, err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return val, err
}

func (r *Redis) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	start := time.Now()
	vals, err := r.client.HMGet(ctx, key, fields...).Result()
	observe(ctx, "hmget", start, err)
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", key, err)
	}

	out := make(map[string]string, len(fields))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[fields[i]] = s
		}
	}
	return out, nil
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	vals, err := r.client.HGetAll(ctx, key).Result()
	observe(ctx, "hgetall", start, err)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return vals, nil
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	start := time.Now()
	err := r.client.HDel(ctx, key, fields...).Err()
	observe(ctx, "hdel", start, err)
	if err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}
	return nil
}

func (r *Redis) HLen(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := r.client.HLen(ctx, key).Result()
	observe(ctx, "hlen", start, err)
	if err != nil {
		return 0, fmt.Errorf("hlen %s: %w", key, err)
	}
	return n, nil
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	err := iter.Err()
	observe(ctx, "scan", start, err)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (r *Redis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()
	res, err := r.client.Eval(ctx, script, keys, args...).Result()
	observe(ctx, "eval", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return res, nil
}

func (r *Redis) Pipelined(ctx context.Context, fn func(Pipeliner) error) error {
	start := time.Now()
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisPipeliner{ctx: ctx, pipe: pipe})
	})
	observe(ctx, "pipeline", start, err)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// redisPipeliner adapts go-redis pipelining to the write-only Pipeliner
// surface. Command results are checked collectively by Pipelined.
type redisPipeliner struct {
	ctx  context.Context
	pipe redis.Pipeliner
}

func (p *redisPipeliner) Set(key, value string, expiration time.Duration) {
	p.pipe.Set(p.ctx, key, value, expiration)
}

func (p *redisPipeliner) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.pipe.Del(p.ctx, keys...)
}

func (p *redisPipeliner) HSet(key, field, value string) {
	p.pipe.HSet(p.ctx, key, field, value)
}

func (p *redisPipeliner) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	p.pipe.HDel(p.ctx, key, fields...)
}

// Compile-time interface compliance.
var _ Store = (*Redis)(nil)
