package api

import (
	"net/http"
	"time"

	"authgate/core/guard"
)

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.logger != nil {
			s.logger.Printf("RESP %s %s status=%d dur=%s bytes=%d", r.Method, r.URL.Path, rec.status, time.Since(start), rec.size)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// guardMiddleware runs every request under it through the route guard. The
// decision is final here; handlers behind it never re-check permissions.
func (s *Server) guardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := s.guard.Authorize(r.Context(), r.Method, r.URL.Path, s.sessionID(r))
		s.metrics.guardDecisions.WithLabelValues(decision.Kind.String()).Inc()
		switch decision.Kind {
		case guard.Allow:
			next.ServeHTTP(w, r)
		case guard.DenyUnauthenticated:
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			writeError(w, http.StatusForbidden, "forbidden")
		}
	})
}

// sessionID reads the session cookie, falling back to a bearer-style header
// for non-browser callers.
func (s *Server) sessionID(r *http.Request) string {
	if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Session-ID")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
