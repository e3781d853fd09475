package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Loading
	Table        string        `yaml:"table"`
	Fields       []string      `yaml:"fields"`
	Workers      int           `yaml:"workers"`
	SkipHeader   bool          `yaml:"skip_header"`
	PollInterval time.Duration `yaml:"poll_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimit    float64       `yaml:"rate_limit"` // writes per second, 0 = unlimited

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
	// LogLevelName is the textual level from YAML; it is folded into LogLevel.
	LogLevelName string `yaml:"log_level"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads configuration from environment variables.
// Defaults target a local server: "test" namespace and database,
// "test1" table, ten workers and a 50ms retry poll.
func Load() Config {
	return Config{
		// SurrealDB
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "test"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "test"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		// Loading
		Table:        getEnv("ROWLOADER_TABLE", "test1"),
		Fields:       splitFields(getEnv("ROWLOADER_FIELDS", "foo,bar,baz")),
		Workers:      getEnvInt("ROWLOADER_WORKERS", 10),
		SkipHeader:   getEnv("ROWLOADER_SKIP_HEADER", "false") == "true",
		PollInterval: getEnvDuration("ROWLOADER_POLL_INTERVAL", 50*time.Millisecond),
		WriteTimeout: getEnvDuration("ROWLOADER_WRITE_TIMEOUT", 10*time.Second),
		RateLimit:    getEnvFloat("ROWLOADER_RATE_LIMIT", 0),

		// Logging
		LogFile:  getEnv("ROWLOADER_LOG_FILE", "/tmp/rowloader.log"),
		LogLevel: ParseLogLevel(getEnv("ROWLOADER_LOG_LEVEL", "INFO")),
	}
}

// LoadFile overlays values from a YAML file on top of cfg.
// Keys absent from the file keep their current value.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	out := cfg
	if err := yaml.Unmarshal(data, &out); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if out.LogLevelName != "" {
		out.LogLevel = ParseLogLevel(out.LogLevelName)
	}
	return out, nil
}

// Validate checks the loading settings and fills zero values with defaults.
func (c *Config) Validate() error {
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field name is required")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f == "" {
			return fmt.Errorf("empty field name in %v", c.Fields)
		}
		if f == "run" || f == "line" || f == "id" {
			return fmt.Errorf("field name %q is reserved", f)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("duplicate field name %q", f)
		}
		seen[f] = struct{}{}
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// ParseLogLevel maps a level name to a slog level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
