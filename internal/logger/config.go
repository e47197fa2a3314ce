package logger

import (
	"strings"

	"github.com/caarlos0/env"
)

// LogConfig holds the logging settings read from the environment.
type LogConfig struct {
	// trace, debug, info, warn, error, fatal
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// json, text
	Format string `env:"LOG_FORMAT" envDefault:"text"`

	// stdout, file, both
	Output string `env:"LOG_OUTPUT" envDefault:"stdout"`

	// Rotation
	MaxSize    int  `env:"LOG_MAX_SIZE" envDefault:"100"` // MB
	MaxBackups int  `env:"LOG_MAX_BACKUPS" envDefault:"7"`
	MaxAge     int  `env:"LOG_MAX_AGE" envDefault:"7"` // days
	Compress   bool `env:"LOG_COMPRESS" envDefault:"true"`

	LogPath string `env:"LOG_PATH" envDefault:"./logs"`
}

// DefaultConfig returns the logging settings from the environment, falling
// back to stdout text logging when the environment cannot be parsed.
func DefaultConfig() *LogConfig {
	cfg := &LogConfig{}
	if err := env.Parse(cfg); err != nil {
		cfg = &LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   true,
			LogPath:    "./logs",
		}
	}
	cfg.Level = strings.ToLower(cfg.Level)
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.Output = strings.ToLower(cfg.Output)
	return cfg
}
