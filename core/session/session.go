// Package session owns the server-side session lifecycle. Other components
// receive copies of session records and never mutate them in place.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session binds an opaque identifier to the bearer token and permission set
// produced by an authentication backend.
type Session struct {
	ID          string         `json:"id"`
	Token       string         `json:"token"`
	User        string         `json:"user"`
	Permissions []string       `json:"permissions"`
	Claims      map[string]any `json:"claims,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// HasAnyPermission reports whether the session holds at least one of the
// required permissions. Disjunctive on purpose: any match authorizes.
func (s *Session) HasAnyPermission(required []string) bool {
	if s == nil {
		return false
	}
	held := make(map[string]struct{}, len(s.Permissions))
	for _, p := range s.Permissions {
		held[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := held[p]; ok {
			return true
		}
	}
	return false
}

// Expired is a pure check of the stored expiry against the wall clock.
// Enforcement (refusing access) is the guard's job, not the store's.
func Expired(s *Session) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Store is the backend-agnostic session contract. The same interface is
// satisfied by the in-memory map, the Redis cache and the relational table;
// selection is configuration-driven and invisible to callers.
type Store interface {
	// Create persists the session and returns its identifier.
	Create(ctx context.Context, sess *Session) (string, error)
	// Get returns (nil, nil) for an unknown identifier.
	Get(ctx context.Context, id string) (*Session, error)
	// Touch extends the expiry by the configured TTL. It returns
	// (false, ErrNotFound) for an unknown session and (false, nil) when the
	// backend cannot renew TTLs, so callers can degrade to fixed-lifetime
	// sessions instead of failing.
	Touch(ctx context.Context, id string) (bool, error)
	// Destroy is idempotent; destroying an unknown session is not an error.
	Destroy(ctx context.Context, id string) error
	// TTL reports the configured session lifetime.
	TTL() time.Duration
}
