package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"GEMINI_API_KEY", "API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "GEMINI_TEMPERATURE",
	"FLOWCANVAS_DELAY_SCALE", "FLOWCANVAS_HISTORY_DEPTH", "FLOWCANVAS_DETECT_CYCLES",
	"FLOWCANVAS_MAX_NODE_VISITS", "FLOWCANVAS_STORE", "FLOWCANVAS_SQLITE_PATH",
	"FLOWCANVAS_POSTGRES_URL", "FLOWCANVAS_DOCUMENT_KEY", "FLOWCANVAS_ADDR",
	"FLOWCANVAS_RUN_RETENTION", "FLOWCANVAS_POSTGRES_MAX_CONNS", "GEMINI_TIMEOUT", "GEMINI_MAX_TOKENS",
	"LOG_LEVEL", "REQUEST_TIMEOUT",
}

// clearEnv blanks every key the loader reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 1.0, cfg.Engine.DelayScale)
	assert.Equal(t, 100, cfg.Engine.HistoryDepth)
	assert.True(t, cfg.Engine.DetectCycles)
	assert.Equal(t, 10000, cfg.Engine.MaxNodeVisits)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "fallback")
	t.Setenv("FLOWCANVAS_DELAY_SCALE", "0")
	t.Setenv("FLOWCANVAS_DETECT_CYCLES", "false")
	t.Setenv("FLOWCANVAS_STORE", "SQLite")
	t.Setenv("FLOWCANVAS_DOCUMENT_KEY", strings.Repeat("ab", 32))
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("FLOWCANVAS_HISTORY_DEPTH", "not-a-number")

	cfg, err := LoadConfig(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Gemini.APIKey)
	assert.Equal(t, 0.0, cfg.Engine.DelayScale)
	assert.False(t, cfg.Engine.DetectCycles)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Len(t, cfg.Store.DocumentKey, 32)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 100, cfg.Engine.HistoryDepth)

	t.Setenv("GEMINI_API_KEY", "primary")
	cfg, err = LoadConfig(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Gemini.APIKey)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_MODEL=gemini-1.5-pro\nFLOWCANVAS_ADDR=:9090\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("GEMINI_MODEL")
		os.Unsetenv("FLOWCANVAS_ADDR")
	})
	os.Unsetenv("GEMINI_MODEL")
	os.Unsetenv("FLOWCANVAS_ADDR")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"FLOWCANVAS_STORE": "redis"}},
		{"postgres without url", map[string]string{"FLOWCANVAS_STORE": "postgres"}},
		{"bad key hex", map[string]string{"FLOWCANVAS_DOCUMENT_KEY": "zz"}},
		{"short key", map[string]string{"FLOWCANVAS_DOCUMENT_KEY": "abcd"}},
		{"negative delay", map[string]string{"FLOWCANVAS_DELAY_SCALE": "-1"}},
		{"negative history", map[string]string{"FLOWCANVAS_HISTORY_DEPTH": "-5"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"hot temperature", map[string]string{"GEMINI_TEMPERATURE": "3"}},
		{"negative retention", map[string]string{"FLOWCANVAS_RUN_RETENTION": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(noEnvFile(t))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{App: AppConfig{LogLevel: "warn"}}
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Store.RunRetention)
}
