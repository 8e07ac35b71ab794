// Package kvstore defines the key/value abstraction every stateful
// component in the pipeline (rate limiter, shield crisis sessions,
// scheduler locks, audit indexes, consent records) is built against.
// Redis, Postgres, and an in-memory map each satisfy Store; callers never
// depend on which one is behind the interface.
package kvstore

import (
	"context"
	"time"
)

// Store is the storage contract consumed by the rest of the pipeline.
// Implementations must make incr, setNX, and the CAS-style delete atomic
// at the backend; everything else may be best-effort.
type Store interface {
	// Get returns the value stored at key, or (nil, false) if absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value at key. ttl of zero means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets value at key only if key is currently absent. Returns
	// true if the set happened (lock/flag acquired).
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes key, returning whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteIfMatch performs a compare-and-delete: key is removed only if
	// its current value equals expected. Used for one-time token consumption.
	DeleteIfMatch(ctx context.Context, key string, expected []byte) (bool, error)

	// Exists reports whether key is currently set.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr atomically increments the integer stored at key (0 if absent)
	// and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets or refreshes the TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys returns all keys matching a glob pattern ("prefix:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// ZAdd adds member to the sorted set at key with the given score,
	// updating the score if member is already present.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange returns members of the sorted set at key in ascending score
	// order, by rank range [start, stop] inclusive; -1 means "to the end".
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRevRange returns members in descending score order.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeByScore returns members scored within [min, max].
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// ZRem removes member from the sorted set at key.
	ZRem(ctx context.Context, key string, member string) error

	// SAdd adds member to the set at key.
	SAdd(ctx context.Context, key string, member string) error

	// SRem removes member from the set at key.
	SRem(ctx context.Context, key string, member string) error

	// SMembers returns all members of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SCard returns the cardinality of the set at key.
	SCard(ctx context.Context, key string) (int64, error)
}
