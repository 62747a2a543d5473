package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"authgate/core/authn"
)

type loginRequest struct {
	Backend  string `json:"backend"`
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type sessionResponse struct {
	SessionID   string    `json:"session_id"`
	User        string    `json:"user"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	if req.Identity == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "identity and secret are required")
		return
	}
	backend := req.Backend
	if backend == "" {
		backend = s.cfg.Auth.SelectedBackend
	}
	sess, err := s.authSvc.Login(r.Context(), backend, req.Identity, req.Secret, clientIP(r))
	if err != nil {
		s.metrics.logins.WithLabelValues(outcomeLabel(err)).Inc()
		s.writeAuthError(w, err)
		return
	}
	s.metrics.logins.WithLabelValues("success").Inc()
	s.setSessionCookie(w, sess.ID, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   sess.ID,
		User:        sess.User,
		Permissions: sess.Permissions,
		ExpiresAt:   sess.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.authSvc.Logout(r.Context(), s.cfg.Auth.SelectedBackend, id); err != nil {
		// The session is gone locally even when upstream revocation failed;
		// report success to the client and keep the detail in the logs.
		s.logger.Errorf("logout: %v", err)
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	renewed, err := s.authSvc.Refresh(r.Context(), s.cfg.Auth.SelectedBackend, id)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	if renewed {
		// The store pushed the expiry forward; the cookie must move with it.
		s.setSessionCookie(w, id, time.Now().Add(s.sessions.TTL()))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"renewed": renewed})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.logger.Errorf("me: session lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   sess.ID,
		User:        sess.User,
		Permissions: sess.Permissions,
		ExpiresAt:   sess.ExpiresAt,
	})
}

// writeAuthError maps the error taxonomy onto HTTP statuses. Every body stays
// generic; the specifics live in the logs only.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case authn.IsKind(err, authn.KindTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	case authn.IsKind(err, authn.KindInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case authn.IsKind(err, authn.KindSessionNotFound), authn.IsKind(err, authn.KindSessionExpired):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case authn.IsKind(err, authn.KindBackendUnavailable):
		writeError(w, http.StatusBadGateway, "authentication backend unavailable")
	default:
		s.logger.Errorf("auth: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func outcomeLabel(err error) string {
	switch {
	case authn.IsKind(err, authn.KindTooManyAttempts):
		return "throttled"
	case authn.IsKind(err, authn.KindInvalidCredentials):
		return "rejected"
	case authn.IsKind(err, authn.KindBackendUnavailable):
		return "backend_unavailable"
	default:
		return "error"
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
