package authn

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgate/config"
	"authgate/core/rbac"
	"authgate/core/session"
	"authgate/core/utils"
)

// OAuth2Backend authenticates against a password-grant token endpoint and
// decodes the issued JWT's claims. The token signature is the issuer's
// concern; we only transport-trust the endpoint we are configured with.
type OAuth2Backend struct {
	backendDeps
	cfg config.OAuth2Config
}

func NewOAuth2Backend(cfg config.OAuth2Config, sessions session.Store, policy *rbac.Policy, box *utils.Encryptor, timeout time.Duration, logger *utils.Logger) *OAuth2Backend {
	return &OAuth2Backend{
		backendDeps: newBackendDeps(sessions, policy, box, timeout, logger),
		cfg:         cfg,
	}
}

type oauth2TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (b *OAuth2Backend) Login(ctx context.Context, identity, secret, origin string) (*Result, error) {
	plain, err := b.decryptSecret(secret)
	if err != nil {
		b.logger.Errorf("oauth2 login: secret decrypt failed for %q", identity)
		return nil, ErrInvalidCredentials(err)
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", identity)
	form.Set("password", plain)
	if b.cfg.ClientID != "" {
		form.Set("client_id", b.cfg.ClientID)
		form.Set("client_secret", b.cfg.ClientSecret)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, ErrBackendUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Errorf("oauth2 login: token endpoint unreachable: %v", err)
		return nil, ErrBackendUnavailable(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		b.logger.Printf("oauth2 login rejected user=%s status=%d body=%s", identity, resp.StatusCode, strings.TrimSpace(string(detail)))
		return nil, ErrInvalidCredentials(nil)
	}
	var tok oauth2TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		b.logger.Errorf("oauth2 login: malformed token response for %q: %v", identity, err)
		return nil, ErrInvalidCredentials(err)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		b.logger.Errorf("oauth2 login: undecodable token claims for %q: %v", identity, err)
		return nil, ErrInvalidCredentials(err)
	}
	roles := claimStrings(claims["roles"])
	scopes := claimStrings(claims["scope"])
	if len(scopes) == 0 {
		scopes = claimStrings(claims["permissions"])
	}
	if len(roles) == 0 || len(scopes) == 0 {
		b.logger.Printf("oauth2 login rejected user=%s reason=missing role or scope claims", identity)
		return nil, ErrInvalidCredentials(nil)
	}
	user := identity
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		user = sub
	}
	return &Result{
		Success:     true,
		Claims:      map[string]any(claims),
		Token:       tok.AccessToken,
		Permissions: b.resolvePermissions(roles),
		User:        user,
		Message:     "authenticated",
	}, nil
}

func (b *OAuth2Backend) Logout(ctx context.Context, sessionID string) error {
	sess, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	var revokeErr error
	if b.cfg.RevokeURL != "" {
		form := url.Values{}
		form.Set("token", sess.Token)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.RevokeURL, strings.NewReader(form.Encode()))
		if err != nil {
			revokeErr = err
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			resp, err := b.client.Do(req)
			if err != nil {
				revokeErr = err
			} else {
				resp.Body.Close()
				if resp.StatusCode < 200 || resp.StatusCode > 299 {
					revokeErr = errors.New("token revocation rejected")
				}
			}
		}
		if revokeErr != nil {
			b.logger.Errorf("oauth2 logout: revoke failed for session %s: %v", sessionID, revokeErr)
		}
	}
	return errors.Join(revokeErr, b.sessions.Destroy(ctx, sessionID))
}

func (b *OAuth2Backend) Refresh(ctx context.Context, sessionID string) (bool, error) {
	return b.refresh(ctx, sessionID)
}

// claimStrings tolerates the claim shapes identity systems actually emit:
// JSON arrays, single strings, and space-separated scope strings.
func claimStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return strings.Fields(val)
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
