package authn

import (
	"context"
	"net/http"
	"time"

	"authgate/core/rbac"
	"authgate/core/session"
	"authgate/core/utils"
)

// Result is what a backend reports after a login round trip. It is consumed
// immediately to build a session and not retained.
type Result struct {
	Success     bool
	Claims      map[string]any
	Token       string
	Permissions []string
	User        string
	Message     string
}

// Backend is the uniform contract over external identity systems.
type Backend interface {
	Login(ctx context.Context, identity, secret, origin string) (*Result, error)
	Logout(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, sessionID string) (bool, error)
}

// backendDeps carries the collaborators every concrete backend needs.
type backendDeps struct {
	sessions session.Store
	policy   *rbac.Policy
	box      *utils.Encryptor
	client   *http.Client
	logger   *utils.Logger
}

func newBackendDeps(sessions session.Store, policy *rbac.Policy, box *utils.Encryptor, timeout time.Duration, logger *utils.Logger) backendDeps {
	return backendDeps{
		sessions: sessions,
		policy:   policy,
		box:      box,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// refresh delegates to the session store, which is all a token refresh means
// on our side; the bearer token itself is reused until the session dies.
func (d backendDeps) refresh(ctx context.Context, sessionID string) (bool, error) {
	ok, err := d.sessions.Touch(ctx, sessionID)
	if err == session.ErrNotFound {
		return false, ErrSessionNotFound()
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// decryptSecret unwraps the transport-encrypted credential secret. The
// plaintext must not outlive the backend call and must never be logged.
func (d backendDeps) decryptSecret(secret string) (string, error) {
	if d.box == nil {
		return secret, nil
	}
	return d.box.DecryptString(secret)
}

// resolvePermissions maps role claims to the concrete permission set.
func (d backendDeps) resolvePermissions(roles []string) []string {
	if d.policy == nil {
		return nil
	}
	return d.policy.PermissionsForRoles(roles)
}
