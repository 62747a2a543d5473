// Package api is the HTTP edge of the gateway: the auth endpoints, the
// guarded catch-all and the observability routes. All decisions live in the
// core packages; handlers only translate between HTTP and those calls.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"authgate/config"
	"authgate/core/authn"
	"authgate/core/guard"
	"authgate/core/kv"
	"authgate/core/rbac"
	"authgate/core/session"
	"authgate/core/store"
	"authgate/core/structure"
	"authgate/core/throttle"
	"authgate/core/utils"
)

type Server struct {
	cfg        *config.AppConfig
	router     *chi.Mux
	httpServer *http.Server
	logger     *utils.Logger
	db         *sql.DB

	sessions  session.Store
	policy    *rbac.Policy
	authSvc   *authn.Service
	guard     *guard.Guard
	sweeper   *store.Sweeper
	metrics   *gatewayMetrics
	structure *structureService
}

// NewServer wires the full gateway from configuration. db may be nil when the
// session backend is memory or redis.
func NewServer(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*Server, error) {
	policy, err := rbac.NewPolicy(rbac.RolesFromConfig(cfg.Auth.Roles))
	if err != nil {
		return nil, err
	}
	logger.Printf("role policy loaded: %s", strings.Join(policy.Roles(), ", "))

	sessions, sweeper, err := buildSessionStore(cfg, db, logger)
	if err != nil {
		return nil, err
	}

	var box *utils.Encryptor
	if cfg.Auth.SecretKey != "" {
		box, err = utils.NewEncryptorFromString(cfg.Auth.SecretKey)
		if err != nil {
			return nil, err
		}
	}

	registry := authn.NewRegistry(cfg.Auth.DefaultBackend, logger)
	registry.Register("oauth2", func() (authn.Backend, error) {
		return authn.NewOAuth2Backend(cfg.Auth.OAuth2, sessions, policy, box, cfg.Auth.CallTimeout, logger), nil
	})
	registry.Register("directory", func() (authn.Backend, error) {
		return authn.NewDirectoryBackend(cfg.Auth.Directory, sessions, policy, box, cfg.Auth.CallTimeout, logger), nil
	})

	th := throttle.New(buildThrottleCache(cfg), cfg.Throttle.Limit, cfg.Throttle.Window)
	authSvc := authn.NewService(registry, sessions, th, logger)

	rules, err := guard.LoadRules(cfg.Routes.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logger.Warnf("route table %s not found, starting with no declared routes", cfg.Routes.Path)
	}
	g := guard.New(sessions, rules, cfg.Routes.DefaultDeny, logger)

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		db:       db,
		sessions: sessions,
		policy:   policy,
		authSvc:  authSvc,
		guard:    g,
		sweeper:  sweeper,
		metrics:  newGatewayMetrics(),
	}
	if cfg.Structure.BaseURL != "" {
		s.structure = &structureService{
			client:    structure.NewClient(cfg.Structure.BaseURL, cfg.Auth.CallTimeout),
			validator: structure.NewValidator(),
		}
	}
	s.registerRoutes()
	return s, nil
}

// buildSessionStore selects the session backend from configuration. The
// choice is invisible past this point; everything downstream sees the Store
// interface.
func buildSessionStore(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (session.Store, *store.Sweeper, error) {
	switch cfg.Session.Backend {
	case "memory":
		return session.NewKVStore(kv.NewMemory(), cfg.Session.TTL), nil, nil
	case "redis":
		cache := kv.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return session.NewKVStore(cache, cfg.Session.TTL), nil, nil
	case "sql":
		if db == nil {
			return nil, nil, errors.New("sql session backend requires a database")
		}
		sweeper, err := store.NewSweeper(db, cfg.Session.SweepSchedule, logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSessionStore(db, cfg.Session.TTL), sweeper, nil
	default:
		return nil, nil, errors.New("unknown session backend: " + cfg.Session.Backend)
	}
}

// buildThrottleCache prefers redis so the attempt counters survive restarts
// and shard across instances; memory is the single-node fallback.
func buildThrottleCache(cfg *config.AppConfig) kv.Cache {
	if cfg.Redis.Addr != "" {
		return kv.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return kv.NewMemory()
}

func (s *Server) registerRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)

	s.registerObservabilityRoutes()

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.jsonMiddleware)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Get("/auth/me", s.handleMe)

		r.Group(func(r chi.Router) {
			r.Use(s.guardMiddleware)
			if s.structure != nil {
				r.Post("/structure/reparent-check", s.handleStructureReparent)
				r.Post("/structure/children-check", s.handleStructureChildren)
			}
			// Catch-all: every undeclared path still passes through the
			// guard before falling out as unknown.
			r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusNotFound, "not found")
			})
		})
	})
}

// ReloadRoutes re-reads the route table and swaps it in atomically. In-flight
// requests finish against whichever table they started with.
func (s *Server) ReloadRoutes() error {
	rules, err := guard.LoadRules(s.cfg.Routes.Path)
	if err != nil {
		return err
	}
	s.guard.Replace(rules)
	s.logger.Printf("route table reloaded: %d rules", len(rules))
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
