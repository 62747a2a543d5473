package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"authgate/core/kv"
)

// kvStore keeps session records as JSON blobs in a kv.Cache. It serves both
// the in-memory and the Redis backends; the cache's own TTL handles cleanup.
type kvStore struct {
	cache kv.Cache
	ttl   time.Duration
}

func NewKVStore(cache kv.Cache, ttl time.Duration) Store {
	return &kvStore{cache: cache, ttl: ttl}
}

func (s *kvStore) TTL() time.Duration {
	return s.ttl
}

func (s *kvStore) Create(ctx context.Context, sess *Session) (string, error) {
	if sess.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return "", err
		}
		sess.ID = id.String()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastSeenAt.IsZero() {
		sess.LastSeenAt = sess.CreatedAt
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = now.Add(s.ttl)
	}
	blob, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, kv.SessionPrefix+sess.ID, blob, s.ttl); err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *kvStore) Get(ctx context.Context, id string) (*Session, error) {
	blob, ok, err := s.cache.Get(ctx, kv.SessionPrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *kvStore) Touch(ctx context.Context, id string) (bool, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, ErrNotFound
	}
	now := time.Now().UTC()
	sess.LastSeenAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	blob, err := json.Marshal(sess)
	if err != nil {
		return false, err
	}
	if err := s.cache.Set(ctx, kv.SessionPrefix+id, blob, s.ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *kvStore) Destroy(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, kv.SessionPrefix+id)
}
