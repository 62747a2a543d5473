package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"authgate/core/session"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "authgate_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if err := ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func TestSQLSessionStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	id, err := st.Create(ctx, &session.Session{
		Token:       "tok-1",
		User:        "alice",
		Permissions: []string{"docs.read", "docs.write"},
		Claims:      map[string]any{"sub": "alice"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("create must assign an id")
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("stored session must be readable")
	}
	if got.User != "alice" || got.Token != "tok-1" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Permissions) != 2 || got.Permissions[0] != "docs.read" {
		t.Fatalf("permissions must round-trip, got %v", got.Permissions)
	}
	if got.Claims["sub"] != "alice" {
		t.Fatalf("claims must round-trip, got %v", got.Claims)
	}
	if got.ExpiresAt.Before(time.Now()) {
		t.Fatal("fresh session must not be expired")
	}
}

func TestSQLSessionStoreGetUnknownIsNilNil(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	got, err := st.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unknown id must not error, got %v", err)
	}
	if got != nil {
		t.Fatalf("unknown id must yield nil, got %+v", got)
	}
}

func TestSQLSessionStoreTouchExtendsExpiry(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	id, err := st.Create(ctx, &session.Session{Token: "t", User: "bob"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := st.Get(ctx, id)

	time.Sleep(5 * time.Millisecond)
	ok, err := st.Touch(ctx, id)
	if err != nil || !ok {
		t.Fatalf("touch must renew a live session, got ok=%v err=%v", ok, err)
	}
	after, _ := st.Get(ctx, id)
	if !after.ExpiresAt.After(before.ExpiresAt) {
		t.Fatalf("touch must push expiry forward: %v -> %v", before.ExpiresAt, after.ExpiresAt)
	}
}

func TestSQLSessionStoreTouchUnknownIsNotFound(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ok, err := st.Touch(context.Background(), "missing")
	if ok || err != session.ErrNotFound {
		t.Fatalf("expected (false, ErrNotFound), got ok=%v err=%v", ok, err)
	}
}

func TestSQLSessionStoreExpiredRowVanishesOnRead(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	id, err := st.Create(ctx, &session.Session{
		Token:     "t",
		User:      "carol",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("expired session must read as absent")
	}
	ok, err := st.Touch(ctx, id)
	if ok || err != session.ErrNotFound {
		t.Fatalf("expired session must not be touchable, got ok=%v err=%v", ok, err)
	}
}

func TestSQLSessionStoreDestroyIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	id, err := st.Create(ctx, &session.Session{Token: "t", User: "dave"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.Destroy(ctx, id); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := st.Destroy(ctx, id); err != nil {
		t.Fatalf("second destroy must not error: %v", err)
	}
	if err := st.Destroy(ctx, "never-existed"); err != nil {
		t.Fatalf("destroying an unknown session must not error: %v", err)
	}
}

func TestSweeperRemovesOnlyExpiredRows(t *testing.T) {
	db := openTestDB(t)
	st := NewSessionStore(db, time.Hour)
	ctx := context.Background()

	liveID, err := st.Create(ctx, &session.Session{Token: "t1", User: "live"})
	if err != nil {
		t.Fatalf("create live: %v", err)
	}
	if _, err := st.Create(ctx, &session.Session{
		Token:     "t2",
		User:      "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create stale: %v", err)
	}

	sw, err := NewSweeper(db, "@every 5m", nil)
	if err != nil {
		t.Fatalf("sweeper: %v", err)
	}
	n, err := sw.SweepNow(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep must remove exactly the expired row, got %d", n)
	}
	got, err := st.Get(ctx, liveID)
	if err != nil || got == nil {
		t.Fatalf("live session must survive the sweep, got %+v err=%v", got, err)
	}
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	db := openTestDB(t)
	if _, err := NewSweeper(db, "not a schedule", nil); err == nil {
		t.Fatal("invalid cron expression must be rejected")
	}
}
