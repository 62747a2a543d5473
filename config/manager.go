package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "AUTHGATE_"
)

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	cfgPath := resolveConfigPath()
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.ListenAddr = listenAddrWithPort(cfg.ListenAddr, v)
	}
	if v := getEnv(envPrefix + "DB_URL"); v != "" {
		cfg.DBURL = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "DB_DRIVER"); v != "" {
		cfg.DBDriver = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "AUTH_BACKEND"); v != "" {
		cfg.Auth.SelectedBackend = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix+"SECRET_KEY", "SECRET_KEY"); v != "" {
		cfg.Auth.SecretKey = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "ROUTES_PATH"); v != "" {
		cfg.Routes.Path = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "STRUCTURE_URL"); v != "" {
		cfg.Structure.BaseURL = strings.TrimSpace(v)
	}
	if v := getEnv(envPrefix + "METRICS_TOKEN"); v != "" {
		cfg.Observability.MetricsToken = strings.TrimSpace(v)
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	cfg.Session.Backend = strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	cfg.Session.CookieName = strings.TrimSpace(cfg.Session.CookieName)
	cfg.Auth.DefaultBackend = strings.ToLower(strings.TrimSpace(cfg.Auth.DefaultBackend))
	cfg.Auth.SelectedBackend = strings.ToLower(strings.TrimSpace(cfg.Auth.SelectedBackend))
	cfg.Auth.SecretKey = strings.TrimSpace(cfg.Auth.SecretKey)
	cfg.Routes.Path = strings.TrimSpace(cfg.Routes.Path)
	cfg.Structure.BaseURL = strings.TrimSpace(cfg.Structure.BaseURL)
	cfg.Redis.Addr = strings.TrimSpace(cfg.Redis.Addr)

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:8080"
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * time.Minute
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "authgate_session"
	}
	if cfg.Session.SweepSchedule == "" {
		cfg.Session.SweepSchedule = "@every 5m"
	}
	if cfg.Throttle.Limit <= 0 {
		cfg.Throttle.Limit = 5
	}
	if cfg.Throttle.Window <= 0 {
		cfg.Throttle.Window = 10 * time.Minute
	}
	if cfg.Auth.DefaultBackend == "" {
		cfg.Auth.DefaultBackend = "oauth2"
	}
	if cfg.Auth.SelectedBackend == "" {
		cfg.Auth.SelectedBackend = cfg.Auth.DefaultBackend
	}
	if cfg.Auth.CallTimeout <= 0 {
		cfg.Auth.CallTimeout = 10 * time.Second
	}
	if cfg.Routes.Path == "" {
		cfg.Routes.Path = "config/routes.yaml"
	}
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "0.0.0.0"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + port
}
