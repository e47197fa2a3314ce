package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// MinSessionSecretLength is the shortest SESSION_SECRET accepted when a
// backend is configured.
const MinSessionSecretLength = 16

// ErrWeakSessionSecret is returned when a configured backend has no usable
// session signing secret.
var ErrWeakSessionSecret = errors.New("SESSION_SECRET must be set to at least 16 characters when CATALOG_ENDPOINT and CATALOG_KEY are configured")

// placeholderMarkers identify endpoints copied from sample env files.
var placeholderMarkers = []string{"your-project", "placeholder", "example.com", "<"}

type Config struct {
	// Backend endpoint (MongoDB URI) and public access key
	Endpoint string `env:"CATALOG_ENDPOINT"`
	Key      string `env:"CATALOG_KEY"`
	User     string `env:"CATALOG_USER" envDefault:"storefront"`
	MongoDB  string `env:"MONGO_DB" envDefault:"productCatalog"`

	Port          string `env:"PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	GinMode       string `env:"GIN_MODE" envDefault:"debug"`

	// Optional Cloudinary asset storage; GridFS is used when empty
	CloudinaryURL string `env:"CLOUDINARY_URL"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`

	EphemeralTTL time.Duration `env:"EPHEMERAL_TTL" envDefault:"30m"`

	configured bool
}

// LoadConfig reads the environment (and .env when present). A value that
// cannot be parsed is an error; it never degrades the process to demo mode.
func LoadConfig() (*Config, error) {
	// .env is only present in local development
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			logrus.WithError(err).Warn("error loading .env file")
		} else {
			logrus.Info(".env file loaded successfully")
		}
	} else {
		logrus.Info("using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	cfg.configured = IsConfigured(cfg.Endpoint, cfg.Key)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that only matter once a backend is configured.
func (c *Config) Validate() error {
	if c.configured && len(strings.TrimSpace(c.SessionSecret)) < MinSessionSecretLength {
		return ErrWeakSessionSecret
	}
	return nil
}

// Defaults returns an unconfigured Config, i.e. one that runs in demo mode.
func Defaults() *Config {
	return &Config{
		User:          "storefront",
		MongoDB:       "productCatalog",
		Port:          "8080",
		PublicBaseURL: "http://localhost:8080",
		GinMode:       "debug",
		SessionTTL:    12 * time.Hour,
		EphemeralTTL:  30 * time.Minute,
	}
}

// Configured reports whether a real backend was configured at load time.
// The value never changes for the lifetime of the process.
func (c *Config) Configured() bool {
	return c.configured
}

// IsConfigured is true only when both values are present and the endpoint
// is not a known placeholder.
func IsConfigured(endpoint, key string) bool {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(key) == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	if c.Port == "" {
		return ":8080"
	}
	return ":" + c.Port
}
