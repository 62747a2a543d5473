package guard

import (
	"context"
	"testing"
	"time"

	"authgate/core/kv"
	"authgate/core/session"
	"authgate/core/utils"
)

const routesYAML = `
"GET /reports": ["read:reports"]
"POST /reports": ["write:reports"]
"GET /reports/{id}": ["read:reports", "write:reports"]
"DELETE /admin/users/{id}": ["admin:users"]
`

func newTestGuard(t *testing.T, defaultDeny bool) (*Guard, session.Store) {
	t.Helper()
	rules, err := ParseRules([]byte(routesYAML))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	return New(sessions, rules, defaultDeny, utils.NewLogger()), sessions
}

func createSession(t *testing.T, sessions session.Store, perms ...string) string {
	t.Helper()
	id, err := sessions.Create(context.Background(), &session.Session{
		User:        "alice",
		Permissions: perms,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return id
}

func TestParseRulesKeepsDeclarationOrder(t *testing.T) {
	rules, err := ParseRules([]byte(routesYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	if rules[0].Pattern != "/reports" || rules[0].Method != "GET" {
		t.Fatalf("order must follow the file, got %+v", rules[0])
	}
	if rules[2].Pattern != "/reports/{id}" {
		t.Fatalf("order must follow the file, got %+v", rules[2])
	}
}

func TestParseRulesRejectsBadKey(t *testing.T) {
	if _, err := ParseRules([]byte(`"no-method-here": ["x"]`)); err == nil {
		t.Fatal("a key without a method must be rejected")
	}
}

func TestAuthorizeAllowWithAnyRequiredPermission(t *testing.T) {
	g, sessions := newTestGuard(t, false)
	ctx := context.Background()
	id := createSession(t, sessions, "read:x")

	// "GET /reports/{id}" requires read:reports OR write:reports.
	readOnly := createSession(t, sessions, "read:reports")
	if d := g.Authorize(ctx, "GET", "/reports/42", readOnly); d.Kind != Allow {
		t.Fatalf("one held permission out of the set must allow, got %s (%s)", d.Kind, d.Reason)
	}
	if d := g.Authorize(ctx, "GET", "/reports/42", id); d.Kind != DenyForbidden {
		t.Fatalf("no overlap must be forbidden, got %s", d.Kind)
	}
}

func TestAuthorizeUnmatchedRouteIsPublicByDefault(t *testing.T) {
	g, _ := newTestGuard(t, false)
	d := g.Authorize(context.Background(), "GET", "/healthz", "")
	if d.Kind != Allow {
		t.Fatalf("undeclared route must be public under default-allow, got %s", d.Kind)
	}
}

func TestAuthorizeDefaultDenyToggle(t *testing.T) {
	g, sessions := newTestGuard(t, true)
	ctx := context.Background()
	if d := g.Authorize(ctx, "GET", "/healthz", ""); d.Kind != DenyUnauthenticated {
		t.Fatalf("undeclared route without session must be unauthenticated under default-deny, got %s", d.Kind)
	}
	id := createSession(t, sessions, "read:reports")
	if d := g.Authorize(ctx, "GET", "/healthz", id); d.Kind != DenyForbidden {
		t.Fatalf("undeclared route with session must be forbidden under default-deny, got %s", d.Kind)
	}
}

func TestAuthorizeNoSessionIsUnauthenticated(t *testing.T) {
	g, _ := newTestGuard(t, false)
	if d := g.Authorize(context.Background(), "GET", "/reports", ""); d.Kind != DenyUnauthenticated {
		t.Fatalf("missing session on a guarded route must be unauthenticated, got %s", d.Kind)
	}
	if d := g.Authorize(context.Background(), "GET", "/reports", "no-such-session"); d.Kind != DenyUnauthenticated {
		t.Fatalf("unknown session must be unauthenticated, got %s", d.Kind)
	}
}

func TestAuthorizeExpiredSessionIsUnauthenticated(t *testing.T) {
	rules, err := ParseRules([]byte(routesYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx := context.Background()
	// Long store TTL keeps the record retrievable while the embedded expiry
	// timestamp is already in the past.
	sessions := session.NewKVStore(kv.NewMemory(), time.Hour)
	id, err := sessions.Create(ctx, &session.Session{
		User:        "alice",
		Permissions: []string{"read:reports"},
		ExpiresAt:   time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g := New(sessions, rules, false, utils.NewLogger())
	if d := g.Authorize(ctx, "GET", "/reports", id); d.Kind != DenyUnauthenticated {
		t.Fatalf("expired session must never be allowed, got %s", d.Kind)
	}
}

func TestAuthorizeMethodMismatchSkipsRule(t *testing.T) {
	g, sessions := newTestGuard(t, false)
	ctx := context.Background()
	id := createSession(t, sessions, "read:reports")
	// PATCH /reports is undeclared, so it falls through to default-allow.
	if d := g.Authorize(ctx, "PATCH", "/reports", id); d.Kind != Allow {
		t.Fatalf("method mismatch must skip the rule, got %s", d.Kind)
	}
}

func TestAuthorizeParamSegmentAndDecoding(t *testing.T) {
	g, sessions := newTestGuard(t, false)
	ctx := context.Background()
	admin := createSession(t, sessions, "admin:users")
	if d := g.Authorize(ctx, "DELETE", "/admin/users/u%2042", admin); d.Kind != Allow {
		t.Fatalf("percent-encoded segment must match the param, got %s (%s)", d.Kind, d.Reason)
	}
	if d := g.Authorize(ctx, "DELETE", "/admin/users", admin); d.Kind != Allow {
		t.Fatalf("missing param segment means no structural match, got %s", d.Kind)
	}
}

func TestFirstDeclaredMatchWins(t *testing.T) {
	raw := []byte(`
"GET /a/{x}": ["perm:first"]
"GET /a/b": ["perm:second"]
`)
	rules, err := ParseRules(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sessions := session.NewKVStore(kv.NewMemory(), time.Minute)
	g := New(sessions, rules, false, utils.NewLogger())
	ctx := context.Background()
	first := createSession(t, sessions, "perm:first")
	second := createSession(t, sessions, "perm:second")
	if d := g.Authorize(ctx, "GET", "/a/b", first); d.Kind != Allow {
		t.Fatalf("the earlier declared rule must win, got %s", d.Kind)
	}
	if d := g.Authorize(ctx, "GET", "/a/b", second); d.Kind != DenyForbidden {
		t.Fatalf("the later rule must not be consulted, got %s", d.Kind)
	}
}
