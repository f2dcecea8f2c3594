package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                 int      `env:"PORT" envDefault:"8080"`
	DatabaseURL          string   `env:"DATABASE_URL,required"`
	RedisURL             string   `env:"REDIS_URL,required"`
	SessionSecret        string   `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`
	StorageSigningSecret string   `env:"STORAGE_SIGNING_SECRET" envDefault:"dev-secret-change-me"`
	StorageDir           string   `env:"STORAGE_DIR" envDefault:"./data/objects"`
	PublicBaseURL        string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	SignedURLTTLSeconds  int      `env:"SIGNED_URL_TTL_SECONDS" envDefault:"60"`
	SessionTTLHours      int      `env:"SESSION_TTL_HOURS" envDefault:"168"`
	AllowedOrigins       []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxUploadBytes       int64    `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	LogLevel             string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment          string   `env:"APP_ENV" envDefault:"development"`

	// FeedBus is "redis" for multi-instance fan-out or "local" for a single process.
	FeedBus          string `env:"FEED_BUS" envDefault:"redis"`
	FeedRelayEnabled bool   `env:"FEED_RELAY_ENABLED" envDefault:"true"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SignedURLTTLSeconds <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL_SECONDS must be positive")
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.FeedBus != "" && c.FeedBus != "redis" && c.FeedBus != "local" {
		return fmt.Errorf("FEED_BUS must be redis or local, got %q", c.FeedBus)
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if err := validateSecret("STORAGE_SIGNING_SECRET", c.StorageSigningSecret); err != nil {
			return err
		}

		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !strings.HasPrefix(c.PublicBaseURL, "https://") {
			log.Warn().Str("publicBaseUrl", c.PublicBaseURL).Msg("PUBLIC_BASE_URL is not https in production: signed URLs will leak over plaintext")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
