package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"authgate/core/session"
)

// sqlSessionStore persists sessions in the relational sessions table. It
// satisfies the same session.Store contract as the kv-backed stores; expired
// rows are dropped on read, the sweeper handles the rest.
type sqlSessionStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSessionStore(db *sql.DB, ttl time.Duration) session.Store {
	return &sqlSessionStore{db: db, ttl: ttl}
}

func (s *sqlSessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *sqlSessionStore) Create(ctx context.Context, sess *session.Session) (string, error) {
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
	permsJSON, err := json.Marshal(sess.Permissions)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(sess.Claims)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions(id, token, username, permissions, claims, created_at, last_seen_at, expires_at) VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET token=excluded.token, username=excluded.username, permissions=excluded.permissions, claims=excluded.claims, last_seen_at=excluded.last_seen_at, expires_at=excluded.expires_at`,
		sess.ID, sess.Token, sess.User, string(permsJSON), string(claimsJSON), sess.CreatedAt, sess.LastSeenAt, sess.ExpiresAt)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *sqlSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, token, username, permissions, claims, created_at, last_seen_at, expires_at FROM sessions WHERE id=?`, id)
	var sess session.Session
	var permsStr, claimsStr string
	if err := row.Scan(&sess.ID, &sess.Token, &sess.User, &permsStr, &claimsStr, &sess.CreatedAt, &sess.LastSeenAt, &sess.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.Destroy(ctx, id)
		return nil, nil
	}
	_ = json.Unmarshal([]byte(permsStr), &sess.Permissions)
	_ = json.Unmarshal([]byte(claimsStr), &sess.Claims)
	return &sess, nil
}

func (s *sqlSessionStore) Touch(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at=?, expires_at=? WHERE id=? AND expires_at > ?`,
		now, now.Add(s.ttl), id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, session.ErrNotFound
	}
	return true, nil
}

func (s *sqlSessionStore) Destroy(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}
