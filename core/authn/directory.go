package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"authgate/config"
	"authgate/core/rbac"
	"authgate/core/session"
	"authgate/core/utils"
)

// DirectoryBackend authenticates against a SCIM-style directory service
// speaking plain JSON over REST.
type DirectoryBackend struct {
	backendDeps
	baseURL string
}

func NewDirectoryBackend(cfg config.DirectoryConfig, sessions session.Store, policy *rbac.Policy, box *utils.Encryptor, timeout time.Duration, logger *utils.Logger) *DirectoryBackend {
	return &DirectoryBackend{
		backendDeps: newBackendDeps(sessions, policy, box, timeout, logger),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type directoryLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Origin   string `json:"origin,omitempty"`
}

type directoryLoginResponse struct {
	User        string   `json:"user"`
	Token       string   `json:"token"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Groups      []string `json:"groups"`
}

func (b *DirectoryBackend) Login(ctx context.Context, identity, secret, origin string) (*Result, error) {
	plain, err := b.decryptSecret(secret)
	if err != nil {
		b.logger.Errorf("directory login: secret decrypt failed for %q", identity)
		return nil, ErrInvalidCredentials(err)
	}
	payload, err := json.Marshal(directoryLoginRequest{Username: identity, Password: plain, Origin: origin})
	if err != nil {
		return nil, ErrInvalidCredentials(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/login", bytes.NewReader(payload))
	if err != nil {
		return nil, ErrBackendUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Errorf("directory login: service unreachable: %v", err)
		return nil, ErrBackendUnavailable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		b.logger.Printf("directory login rejected user=%s status=%d body=%s", identity, resp.StatusCode, strings.TrimSpace(string(detail)))
		return nil, ErrInvalidCredentials(nil)
	}
	var dr directoryLoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil || dr.Token == "" {
		b.logger.Errorf("directory login: malformed response for %q: %v", identity, err)
		return nil, ErrInvalidCredentials(err)
	}
	if len(dr.Roles) == 0 || len(dr.Permissions) == 0 {
		b.logger.Printf("directory login rejected user=%s reason=missing roles or permissions", identity)
		return nil, ErrInvalidCredentials(nil)
	}
	user := dr.User
	if user == "" {
		user = identity
	}
	claims := map[string]any{"roles": dr.Roles, "groups": dr.Groups}
	return &Result{
		Success:     true,
		Claims:      claims,
		Token:       dr.Token,
		Permissions: b.resolvePermissions(dr.Roles),
		User:        user,
		Message:     "authenticated",
	}, nil
}

func (b *DirectoryBackend) Logout(ctx context.Context, sessionID string) error {
	sess, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	var revokeErr error
	payload, _ := json.Marshal(map[string]string{"token": sess.Token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/logout", bytes.NewReader(payload))
	if err != nil {
		revokeErr = err
	} else {
		req.Header.Set("Content-Type", "application/json")
		resp, err := b.client.Do(req)
		if err != nil {
			revokeErr = err
		} else {
			resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				revokeErr = errors.New("directory logout rejected")
			}
		}
	}
	if revokeErr != nil {
		b.logger.Errorf("directory logout: revoke failed for session %s: %v", sessionID, revokeErr)
	}
	return errors.Join(revokeErr, b.sessions.Destroy(ctx, sessionID))
}

func (b *DirectoryBackend) Refresh(ctx context.Context, sessionID string) (bool, error) {
	return b.refresh(ctx, sessionID)
}
