package config

import "time"

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AppEnv     string `yaml:"app_env"`

	DBDriver string `yaml:"db_driver"`
	DBURL    string `yaml:"db_url"`
	DBPath   string `yaml:"db_path"`

	Session       SessionConfig       `yaml:"session"`
	Throttle      ThrottleConfig      `yaml:"throttle"`
	Auth          AuthConfig          `yaml:"auth"`
	Routes        RoutesConfig        `yaml:"routes"`
	Structure     StructureConfig     `yaml:"structure"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SessionConfig struct {
	// Backend selects the session store: memory, redis or sql.
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	CookieName string        `yaml:"cookie_name"`
	// SweepSchedule is a cron expression for the expired-session sweep
	// (sql backend only; kv backends expire on their own).
	SweepSchedule string `yaml:"sweep_schedule"`
}

type ThrottleConfig struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type AuthConfig struct {
	// DefaultBackend is used when the configured backend id is unknown.
	DefaultBackend  string        `yaml:"default_backend"`
	SelectedBackend string        `yaml:"selected_backend"`
	SecretKey       string        `yaml:"secret_key"`
	CallTimeout     time.Duration `yaml:"call_timeout"`

	OAuth2    OAuth2Config        `yaml:"oauth2"`
	Directory DirectoryConfig     `yaml:"directory"`
	Roles     map[string][]string `yaml:"roles"`
}

type OAuth2Config struct {
	TokenURL     string `yaml:"token_url"`
	RevokeURL    string `yaml:"revoke_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type DirectoryConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RoutesConfig struct {
	Path string `yaml:"path"`
	// DefaultDeny flips the policy for routes with no declared requirement.
	// The shipped default is allow, kept for compatibility with existing
	// deployments; see Validate for the warning emitted when it stays off.
	DefaultDeny bool `yaml:"default_deny"`
}

type StructureConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsToken   string `yaml:"metrics_token"`
}
