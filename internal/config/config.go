package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	MongoURL      string `env:"MONGO_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" default:"verza"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	// DisablePush turns off every push stream platform-wide; clients fall
	// back to pure polling. For environments where long-lived connections
	// are unsupported.
	DisablePush bool `env:"DISABLE_PUSH" default:"false"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"15s"`
	MaxStreamsPerKey  int           `env:"MAX_STREAMS_PER_KEY" default:"256"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"MONGO_URL":      cfg.MongoURL,
		"SESSION_SECRET": cfg.SessionSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", cfg.HeartbeatInterval)
	}
	if cfg.MaxStreamsPerKey < 1 {
		return fmt.Errorf("MAX_STREAMS_PER_KEY must be at least 1, got %d", cfg.MaxStreamsPerKey)
	}

	return nil
}
