// Package throttle counts login attempts per (identity, origin address)
// pair. It is advisory: the HTTP edge checks it before dispatching a login,
// and the counter itself never rejects anything.
package throttle

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"

	"authgate/core/kv"
)

const DefaultLimit = 5

type Throttle struct {
	cache  kv.Cache
	limit  int64
	window time.Duration
}

func New(cache kv.Cache, limit int, window time.Duration) *Throttle {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Throttle{cache: cache, limit: int64(limit), window: window}
}

// RecordAttempt increments the counter for the pair, creating it at 1, and
// re-anchors the window to this attempt.
func (t *Throttle) RecordAttempt(ctx context.Context, identity, origin string) (int64, error) {
	return t.cache.Incr(ctx, t.key(identity, origin), t.window)
}

// Blocked is a pure read; it never touches the counter value.
func (t *Throttle) Blocked(ctx context.Context, identity, origin string) (bool, error) {
	blob, ok, err := t.cache.Get(ctx, t.key(identity, origin))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	n, err := strconv.ParseInt(string(blob), 10, 64)
	if err != nil {
		return false, nil
	}
	return n >= t.limit, nil
}

// key hashes identity and normalized address together so raw identity
// material never lands in the cache keyspace.
func (t *Throttle) key(identity, origin string) string {
	sum := blake2b.Sum256([]byte(identity + "|" + NormalizeAddr(origin)))
	return kv.ThrottlePrefix + hex.EncodeToString(sum[:])
}
