// Package config loads flowcanvas settings from the environment, reading a
// .env file first when one exists.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all configuration for flowcanvas
type Config struct {
	Gemini GeminiConfig
	Engine EngineConfig
	Store  StoreConfig
	Server ServerConfig
	App    AppConfig
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

type EngineConfig struct {
	// DelayScale multiplies every simulated handler delay. 0 disables them.
	DelayScale    float64
	HistoryDepth  int
	DetectCycles  bool
	MaxNodeVisits int
}

type StoreConfig struct {
	Driver           string
	SQLitePath       string
	PostgresURL      string
	PostgresMaxConns int
	// DocumentKey encrypts stored workflow documents when set.
	DocumentKey  []byte
	RunRetention int
}

type ServerConfig struct {
	Addr           string
	RequestTimeout time.Duration
}

type AppConfig struct {
	LogLevel string
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			Timeout:     30 * time.Second,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Engine: EngineConfig{
			DelayScale:    1,
			HistoryDepth:  100,
			DetectCycles:  true,
			MaxNodeVisits: 10000,
		},
		Store: StoreConfig{
			Driver:           StoreMemory,
			SQLitePath:       "flowcanvas.db",
			PostgresMaxConns: 10,
			RunRetention:     50,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 30 * time.Second,
		},
		App: AppConfig{
			LogLevel: "info",
		},
	}
}

// LoadConfig loads configuration from environment variables. files are
// passed to godotenv; with none it tries ./.env. Missing files are ignored.
func LoadConfig(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	key, err := getEnvAsHex("FLOWCANVAS_DOCUMENT_KEY")
	if err != nil {
		return nil, err
	}

	d := Default()
	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:      getEnvWithDefault("GEMINI_API_KEY", os.Getenv("API_KEY")),
			Model:       getEnvWithDefault("GEMINI_MODEL", d.Gemini.Model),
			BaseURL:     getEnvWithDefault("GEMINI_BASE_URL", d.Gemini.BaseURL),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", d.Gemini.Timeout),
			MaxTokens:   getEnvAsInt("GEMINI_MAX_TOKENS", d.Gemini.MaxTokens),
			Temperature: getEnvAsFloat("GEMINI_TEMPERATURE", d.Gemini.Temperature),
		},
		Engine: EngineConfig{
			DelayScale:    getEnvAsFloat("FLOWCANVAS_DELAY_SCALE", d.Engine.DelayScale),
			HistoryDepth:  getEnvAsInt("FLOWCANVAS_HISTORY_DEPTH", d.Engine.HistoryDepth),
			DetectCycles:  getEnvAsBool("FLOWCANVAS_DETECT_CYCLES", d.Engine.DetectCycles),
			MaxNodeVisits: getEnvAsInt("FLOWCANVAS_MAX_NODE_VISITS", d.Engine.MaxNodeVisits),
		},
		Store: StoreConfig{
			Driver:           strings.ToLower(getEnvWithDefault("FLOWCANVAS_STORE", d.Store.Driver)),
			SQLitePath:       getEnvWithDefault("FLOWCANVAS_SQLITE_PATH", d.Store.SQLitePath),
			PostgresURL:      getEnvWithDefault("FLOWCANVAS_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvAsInt("FLOWCANVAS_POSTGRES_MAX_CONNS", d.Store.PostgresMaxConns),
			DocumentKey:      key,
			RunRetention:     getEnvAsInt("FLOWCANVAS_RUN_RETENTION", d.Store.RunRetention),
		},
		Server: ServerConfig{
			Addr:           getEnvWithDefault("FLOWCANVAS_ADDR", d.Server.Addr),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", d.Server.RequestTimeout),
		},
		App: AppConfig{
			LogLevel: getEnvWithDefault("LOG_LEVEL", d.App.LogLevel),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("%w: FLOWCANVAS_POSTGRES_URL is required for the postgres store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: FLOWCANVAS_STORE must be memory, sqlite or postgres, got %q", ErrInvalidConfig, c.Store.Driver)
	}

	switch len(c.Store.DocumentKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("%w: FLOWCANVAS_DOCUMENT_KEY must decode to 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if c.Engine.DelayScale < 0 {
		return fmt.Errorf("%w: FLOWCANVAS_DELAY_SCALE cannot be negative", ErrInvalidConfig)
	}
	if c.Engine.HistoryDepth < 0 {
		return fmt.Errorf("%w: FLOWCANVAS_HISTORY_DEPTH cannot be negative", ErrInvalidConfig)
	}
	if c.Engine.MaxNodeVisits < 0 {
		return fmt.Errorf("%w: FLOWCANVAS_MAX_NODE_VISITS cannot be negative", ErrInvalidConfig)
	}
	if c.Store.RunRetention < 0 {
		return fmt.Errorf("%w: FLOWCANVAS_RUN_RETENTION cannot be negative", ErrInvalidConfig)
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("%w: GEMINI_TEMPERATURE must be between 0 and 2", ErrInvalidConfig)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger builds a text slog.Logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.App.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel accepts debug, info, warn, warning and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown LOG_LEVEL %q", ErrInvalidConfig, s)
}

// Helper functions for environment variable parsing

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsHex(key string) ([]byte, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil, nil
	}
	value, err := hex.DecodeString(valueStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex: %v", ErrInvalidConfig, key, err)
	}
	return value, nil
}
