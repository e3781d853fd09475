package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ROWLOADER_TABLE", "ROWLOADER_FIELDS", "ROWLOADER_WORKERS", "ROWLOADER_POLL_INTERVAL", "SURREALDB_NAMESPACE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "test", cfg.SurrealDBNamespace)
	assert.Equal(t, "test1", cfg.Table)
	assert.Equal(t, []string{"foo", "bar", "baz"}, cfg.Fields)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROWLOADER_TABLE", "people")
	t.Setenv("ROWLOADER_FIELDS", " name, email ,age,")
	t.Setenv("ROWLOADER_WORKERS", "3")
	t.Setenv("ROWLOADER_POLL_INTERVAL", "200ms")
	t.Setenv("ROWLOADER_RATE_LIMIT", "12.5")
	t.Setenv("ROWLOADER_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "people", cfg.Table)
	assert.Equal(t, []string{"name", "email", "age"}, cfg.Fields)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval)
	assert.InDelta(t, 12.5, cfg.RateLimit, 0.0001)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowloader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
table: orders
fields: [id_, total, currency]
workers: 4
write_timeout: 2s
log_level: warn
`), 0644))

	base := Config{Table: "test1", Workers: 10, SurrealDBURL: "ws://db:8000/rpc"}
	cfg, err := LoadFile(base, path)
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Table)
	assert.Equal(t, []string{"id_", "total", "currency"}, cfg.Fields)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "ws://db:8000/rpc", cfg.SurrealDBURL, "unset keys keep base value")
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(Config{}, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [nope"), 0644))
	_, err = LoadFile(Config{}, path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Table: "test1", Fields: []string{"a", "b"}}, false},
		{"bad table", Config{Table: "drop table;", Fields: []string{"a"}}, true},
		{"no fields", Config{Table: "t"}, true},
		{"empty field", Config{Table: "t", Fields: []string{"a", ""}}, true},
		{"reserved field", Config{Table: "t", Fields: []string{"run"}}, true},
		{"duplicate field", Config{Table: "t", Fields: []string{"a", "a"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Config{Table: "t", Fields: []string{"a"}, Workers: -1, RateLimit: -5}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.RateLimit)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupLoggerWithWriters(&console, &file, slog.LevelInfo)

	logger.Info("row written", "line", 3)
	logger.Debug("hidden")

	assert.Contains(t, console.String(), "row written")
	assert.NotContains(t, console.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "row written", rec["msg"])
	assert.EqualValues(t, 3, rec["line"])
}

func TestSetupLoggerConsoleLevel(t *testing.T) {
	var console bytes.Buffer
	warn := slog.LevelWarn
	logFile := filepath.Join(t.TempDir(), "rowloader.log")

	logger, cleanup := SetupLogger(LoggerOptions{
		File:         logFile,
		Level:        slog.LevelInfo,
		Console:      &console,
		ConsoleLevel: &warn,
	})
	logger.Info("info only in file")
	logger.Warn("warn everywhere")
	require.NoError(t, cleanup())

	assert.NotContains(t, console.String(), "info only in file")
	assert.Contains(t, console.String(), "warn everywhere")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "info only in file")
	assert.Contains(t, string(data), "warn everywhere")
}
