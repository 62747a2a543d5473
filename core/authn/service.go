package authn

import (
	"context"

	"authgate/core/session"
	"authgate/core/throttle"
	"authgate/core/utils"
)

// Service ties the throttle, the backend registry and the session store into
// the login lifecycle. The HTTP edge stays a thin adapter over it.
type Service struct {
	registry *Registry
	sessions session.Store
	throttle *throttle.Throttle
	logger   *utils.Logger
}

func NewService(registry *Registry, sessions session.Store, th *throttle.Throttle, logger *utils.Logger) *Service {
	return &Service{registry: registry, sessions: sessions, throttle: th, logger: logger}
}

// Login gates the attempt on the throttle, dispatches to the configured
// backend and materializes the session on success. A blocked pair never
// reaches the backend.
func (s *Service) Login(ctx context.Context, backendID, identity, secret, origin string) (*session.Session, error) {
	blocked, err := s.throttle.Blocked(ctx, identity, origin)
	if err != nil {
		// The throttle is advisory; a broken counter backend must not take
		// logins down with it.
		s.logger.Errorf("throttle check failed for %q: %v", identity, err)
	}
	if _, err := s.throttle.RecordAttempt(ctx, identity, origin); err != nil {
		s.logger.Errorf("throttle record failed for %q: %v", identity, err)
	}
	if blocked {
		return nil, ErrTooManyAttempts()
	}
	backend, err := s.registry.Resolve(backendID)
	if err != nil {
		return nil, ErrBackendUnavailable(err)
	}
	res, err := backend.Login(ctx, identity, secret, origin)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.Success {
		return nil, ErrInvalidCredentials(nil)
	}
	sess := &session.Session{
		Token:       res.Token,
		User:        res.User,
		Permissions: res.Permissions,
		Claims:      res.Claims,
	}
	if _, err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Printf("login ok user=%s backend=%s perms=%d", res.User, backendID, len(res.Permissions))
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, backendID, sessionID string) error {
	backend, err := s.registry.Resolve(backendID)
	if err != nil {
		return err
	}
	return backend.Logout(ctx, sessionID)
}

func (s *Service) Refresh(ctx context.Context, backendID, sessionID string) (bool, error) {
	backend, err := s.registry.Resolve(backendID)
	if err != nil {
		return false, err
	}
	return backend.Refresh(ctx, sessionID)
}
