// Package kv defines the key-value port shared by the session store and the
// grounding cache, with a durable Badger implementation and an in-memory
// implementation for tests and ephemeral runs.
package kv

import "time"

// Store is the minimal key-value contract the engine needs: TTL-bounded
// writes, existence-aware reads, and prefix invalidation.
//
// Get returns (nil, false, nil) for a missing or expired key; the error
// return is reserved for real store failures.
type Store interface {
	Get(key string) ([]byte, bool, error)
	SetWithTTL(key string, value []byte, ttl time.Duration) error // ttl 0 = no expiry
	Delete(key string) error
	DeleteByPrefix(prefix string) (int, error)
	Close() error
}
