package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	// Player
	ServerURL  string `env:"GAME_SERVER_URL" default:"ws://localhost:8080/ws"`
	PlayerName string `env:"PLAYER_NAME"`

	// Host
	HostAddr string `env:"HOST_ADDR" default:":8080"`
	HostName string `env:"HOST_NAME" default:"server"`

	// Connection lifecycle
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" default:"3s"`
	MaxReconnects  int           `env:"MAX_RECONNECTS" default:"-1"`
	PongWait       time.Duration `env:"PONG_WAIT" default:"45s"`
	PingInterval   time.Duration `env:"PING_INTERVAL" default:"30s"`

	// Monitoring
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from a .env file, if present, and the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}

	loadEnvString(&config.ServerURL, "GAME_SERVER_URL", "ws://localhost:8080/ws")
	loadEnvString(&config.PlayerName, "PLAYER_NAME", "")
	loadEnvString(&config.HostAddr, "HOST_ADDR", ":8080")
	loadEnvString(&config.HostName, "HOST_NAME", "server")

	if err := loadEnvDuration(&config.ReconnectDelay, "RECONNECT_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxReconnects, "MAX_RECONNECTS", -1); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.PongWait, "PONG_WAIT", 45*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.PingInterval, "PING_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.MetricsEnabled, "METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")

	if config.PlayerName == "" {
		config.PlayerName = "player-" + uuid.NewString()
	}
	return config, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		errors = append(errors, "GAME_SERVER_URL must start with ws:// or wss://")
	}
	if c.MaxReconnects < -1 {
		errors = append(errors, "MAX_RECONNECTS must be -1 (unbounded) or greater")
	}
	if c.ReconnectDelay <= 0 {
		errors = append(errors, "RECONNECT_DELAY must be positive")
	}
	if c.PingInterval <= 0 || c.PongWait <= c.PingInterval {
		errors = append(errors, "PONG_WAIT must be longer than a positive PING_INTERVAL")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// NewLogger builds a slog.Logger honoring LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
