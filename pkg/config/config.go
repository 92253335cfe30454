package config

import "time"

// Config is the full typed configuration for the atrium identity engine.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"  validate:"required"`
	Provider  ProviderConfig  `koanf:"provider"  validate:"required"`
	Mailer    MailerConfig    `koanf:"mailer"`
	Identity  IdentityConfig  `koanf:"identity"  validate:"required"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`
}

// DatabaseConfig contains the Postgres connection settings.
type DatabaseConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

// ProviderConfig points at the external identity provider's admin API.
type ProviderConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Key     string        `koanf:"key" validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
}

// MailerConfig points at the email dispatch service.
type MailerConfig struct {
	URL  string `koanf:"url"`
	Key  string `koanf:"key"`
	From string `koanf:"from"`
}

// IdentityConfig carries the sync and invitation policy knobs.
type IdentityConfig struct {
	// Superadmins is the injected allow-list of addresses that are always
	// promoted to the superadmin role on sync.
	Superadmins []string `koanf:"superadmins" validate:"dive,email"`
	// TTL is the invitation lifetime from creation to expiry.
	TTL time.Duration `koanf:"ttl" validate:"required"`
	// Grace is the extra slack allowed on a token's embedded timestamp
	// beyond TTL before it is rejected as implausibly old.
	Grace time.Duration `koanf:"grace"`
	// OrphanGrace delays hard deletion of local users whose external
	// identity has disappeared; zero preserves delete-immediately behavior.
	OrphanGrace time.Duration `koanf:"orphangrace"`

	// Anomaly thresholds, evaluated over the invitation audit trail.
	MaxInvitesPerHour    int `koanf:"hourlymax"`
	MaxInvitesPerDay     int `koanf:"dailymax"`
	MaxSameEmailPerDay   int `koanf:"sameemailmax"`
	MaxSuperadminPerHour int `koanf:"superadminmax"`
}

// RateLimitConfig configures the fixed-window limiter guarding invitation
// endpoints. The counters are in-process; a multi-process deployment needs a
// shared store instead.
type RateLimitConfig struct {
	MaxAttempts int           `koanf:"max" validate:"min=1"`
	Window      time.Duration `koanf:"window" validate:"required"`
	Sweep       time.Duration `koanf:"sweep"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// Default returns the baseline configuration before environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Provider: ProviderConfig{
			Timeout: 10 * time.Second,
		},
		Identity: IdentityConfig{
			TTL:                  7 * 24 * time.Hour,
			Grace:                time.Hour,
			MaxInvitesPerHour:    5,
			MaxInvitesPerDay:     20,
			MaxSameEmailPerDay:   3,
			MaxSuperadminPerHour: 2,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			Sweep:       time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
