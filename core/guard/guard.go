// Package guard decides, per request, whether a session may reach a route.
// It holds no per-request state: the route table is immutable after load and
// the session lookup is read-only.
package guard

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"

	"authgate/core/session"
	"authgate/core/utils"
)

type DecisionKind int

const (
	Allow DecisionKind = iota
	DenyUnauthenticated
	DenyForbidden
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

type Decision struct {
	Kind   DecisionKind
	Reason string
	// Route is the declared key that matched, empty for implicit routes.
	Route string
}

type Guard struct {
	sessions    session.Store
	logger      *utils.Logger
	defaultDeny bool
	rules       atomic.Pointer[[]Rule]
}

func New(sessions session.Store, rules []Rule, defaultDeny bool, logger *utils.Logger) *Guard {
	g := &Guard{sessions: sessions, logger: logger, defaultDeny: defaultDeny}
	g.Replace(rules)
	return g
}

// Replace swaps the route table atomically so concurrent readers never see a
// half-built table.
func (g *Guard) Replace(rules []Rule) {
	g.rules.Store(&rules)
}

// Authorize matches the request against the declared routes and checks the
// caller's session. An undeclared route is implicitly public unless the
// default-deny toggle is on; the permissive default is preserved for
// compatibility with existing deployments.
func (g *Guard) Authorize(ctx context.Context, method, path, sessionID string) Decision {
	rule, matched := g.match(method, path)
	if !matched {
		if !g.defaultDeny {
			return Decision{Kind: Allow, Reason: "no declared requirement"}
		}
		sess := g.lookup(ctx, sessionID)
		if sess == nil {
			return Decision{Kind: DenyUnauthenticated, Reason: "undeclared route under default-deny"}
		}
		return Decision{Kind: DenyForbidden, Reason: "undeclared route under default-deny"}
	}
	routeKey := rule.Method + " " + rule.Pattern
	sess := g.lookup(ctx, sessionID)
	if sess == nil {
		return Decision{Kind: DenyUnauthenticated, Reason: "no valid session", Route: routeKey}
	}
	if sess.HasAnyPermission(rule.Required) {
		return Decision{Kind: Allow, Route: routeKey}
	}
	return Decision{Kind: DenyForbidden, Reason: "missing required permission", Route: routeKey}
}

// lookup returns nil for absent, expired or unreadable sessions. A store
// error fails closed.
func (g *Guard) lookup(ctx context.Context, sessionID string) *session.Session {
	if sessionID == "" {
		return nil
	}
	sess, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		g.logger.Errorf("guard: session lookup failed: %v", err)
		return nil
	}
	if sess == nil || session.Expired(sess) {
		return nil
	}
	return sess
}

// match scans declared rules in order; the first whose method equals the
// request's and whose pattern structurally matches the decoded path wins.
func (g *Guard) match(method, path string) (Rule, bool) {
	rules := g.rules.Load()
	if rules == nil {
		return Rule{}, false
	}
	method = strings.ToUpper(method)
	segs := splitPath(path)
	for _, rule := range *rules {
		if rule.Method != method {
			continue
		}
		if patternMatches(rule.Pattern, segs) {
			return rule, true
		}
	}
	return Rule{}, false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if dec, err := url.PathUnescape(p); err == nil {
			parts[i] = dec
		}
	}
	return parts
}

func patternMatches(pattern string, pathSegs []string) bool {
	patSegs := splitPattern(pattern)
	if len(patSegs) != len(pathSegs) {
		return false
	}
	for i, ps := range patSegs {
		if isParamSegment(ps) {
			if pathSegs[i] == "" {
				return false
			}
			continue
		}
		if ps != pathSegs[i] {
			return false
		}
	}
	return true
}

func splitPattern(pattern string) []string {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isParamSegment(seg string) bool {
	return len(seg) >= 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}
