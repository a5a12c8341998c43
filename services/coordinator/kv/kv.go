// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kv is the coordinator's thin adapter over a Redis-compatible store.
//
// # Description
//
// The adapter exposes exactly the capabilities the lock engine and the graph
// builder rely on: string and hash operations, prefix enumeration, pipelined
// writes, and server-side scripted evaluation. Every lock mutation protocol
// upstream assumes Eval executes its script with no interleaving; that
// guarantee comes from the store, the adapter only refuses to hide failures.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The production Redis
// implementation is.
package kv

import (
	"context"
	"time"
)

// Store is the key-value surface the coordinator is written against.
//
// Missing keys and hash fields surface ErrNotFound. Script failures wrap
// ErrScript. Transport failures are returned wrapped, never swallowed; retry
// policy belongs to the caller because only the caller knows which of its
// operations are idempotent.
type Store interface {
	// Get returns the string value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the string value at key. A zero expiration means no expiry.
	Set(ctx context.Context, key, value string, expiration time.Duration) error

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// HSet writes one field of a hash.
	HSet(ctx context.Context, key, field, value string) error

	// HGet returns one field of a hash, or ErrNotFound.
	HGet(ctx context.Context, key, field string) (string, error)

	// HMGet returns the present fields among the requested ones. Absent
	// fields are simply omitted from the result.
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)

	// HGetAll returns every field of a hash. A missing key yields an empty
	// map, not an error.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HDel removes fields from a hash. Missing fields are not an error.
	HDel(ctx context.Context, key string, fields ...string) error

	// HLen returns the number of fields in a hash.
	HLen(ctx context.Context, key string) (int64, error)

	// Keys enumerates keys matching a glob pattern using incremental
	// scanning, never the blocking KEYS command.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Eval runs a server-side script against keys and args and returns the
	// raw reply. The script observes and mutates its keys atomically.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Pipelined batches the writes issued through the Pipeliner into a
	// single round trip. The batch is not transactional; atomicity is what
	// Eval is for.
	Pipelined(ctx context.Context, fn func(Pipeliner) error) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}

// Pipeliner queues writes inside a Pipelined batch.
type Pipeliner interface {
	Set(key, value string, expiration time.Duration)
	Del(keys ...string)
	HSet(key, field, value string)
	HDel(key string, fields ...string)
}
