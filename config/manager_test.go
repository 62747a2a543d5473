package config

import (
	"testing"
	"time"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &AppConfig{}
	normalizeConfig(cfg)
	if cfg.ListenAddr != "0.0.0.0:8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Session.Backend != "memory" {
		t.Fatalf("unexpected session backend: %s", cfg.Session.Backend)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("unexpected session ttl: %s", cfg.Session.TTL)
	}
	if cfg.Throttle.Limit != 5 {
		t.Fatalf("unexpected throttle limit: %d", cfg.Throttle.Limit)
	}
	if cfg.Auth.SelectedBackend != "oauth2" {
		t.Fatalf("selected backend must fall back to default, got %s", cfg.Auth.SelectedBackend)
	}
}

func TestListenAddrWithPort(t *testing.T) {
	if got := listenAddrWithPort("0.0.0.0:8080", "9000"); got != "0.0.0.0:9000" {
		t.Fatalf("unexpected addr: %s", got)
	}
	if got := listenAddrWithPort("127.0.0.1:8080", "abc"); got != "127.0.0.1:8080" {
		t.Fatalf("invalid port must keep addr, got %s", got)
	}
}
