package config

import (
	"fmt"
	"strings"
)

var sessionBackends = map[string]struct{}{
	"memory": {},
	"redis":  {},
	"sql":    {},
}

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, ok := sessionBackends[cfg.Session.Backend]; !ok {
		return fmt.Errorf("unsupported session backend: %s", cfg.Session.Backend)
	}
	if cfg.Session.Backend == "redis" && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr must be set for the redis session backend")
	}
	if cfg.Session.Backend == "sql" {
		driver := cfg.DBDriver
		if driver == "" {
			driver = "postgres"
		}
		if driver != "postgres" && driver != "pg" && driver != "sqlite" {
			return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
		}
		if (driver == "postgres" || driver == "pg") && strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("db_url must be set for the sql session backend")
		}
	}
	if strings.TrimSpace(cfg.Auth.SecretKey) == "" {
		return fmt.Errorf("auth.secret_key must be set via env")
	}
	if cfg.Auth.DefaultBackend != "oauth2" && cfg.Auth.DefaultBackend != "directory" {
		return fmt.Errorf("unknown auth.default_backend: %s", cfg.Auth.DefaultBackend)
	}
	if cfg.Throttle.Limit < 1 {
		return fmt.Errorf("throttle.limit must be at least 1")
	}
	if cfg.Throttle.Window <= 0 {
		return fmt.Errorf("throttle.window must be positive")
	}
	return nil
}
