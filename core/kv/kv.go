// Package kv provides the get/set-with-ttl cache primitive shared by the
// session store and the login throttle. Backends are swappable; callers see
// only this contract.
package kv

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the stored value and whether the key exists and is live.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores val under key for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Delete is idempotent; removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Touch renews the TTL of an existing key. It returns false when the key
	// is absent or when the backend cannot renew TTLs, never an error for
	// either case.
	Touch(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Incr increments a counter, creating it at 1, and resets its TTL on
	// every call so the window slides with the most recent write.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Key namespaces. Sessions and throttle counters may share a backend but
// must never collide.
const (
	SessionPrefix  = "sess:"
	ThrottlePrefix = "throttle:"
)
