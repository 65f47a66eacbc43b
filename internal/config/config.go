package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	AppName string `yaml:"app_name"`
	Env     string `yaml:"env"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	StoreDriver string `yaml:"store_driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`

	JWTSecret  string `yaml:"jwt_secret"`
	EncryptKey string `yaml:"encryption_key"`
	// LegacyKeys are Fernet keys of earlier deployments, used for reading only.
	LegacyKeys []string `yaml:"legacy_encryption_keys"`

	UploadDir     string   `yaml:"upload_dir"`
	UploadBaseURL string   `yaml:"upload_base_url"`
	UploadMaxMB   int      `yaml:"upload_max_mb"`
	CORSOrigins   []string `yaml:"cors_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MaxMessageLength int     `yaml:"max_message_length"`
	HistoryLimit     int     `yaml:"history_limit"`
	WSSendBuffer     int     `yaml:"ws_send_buffer"`
	WSEventRate      float64 `yaml:"ws_event_rate"`
	WSEventBurst     int     `yaml:"ws_event_burst"`

	RetentionEnabled bool          `yaml:"retention_enabled"`
	RetentionCron    string        `yaml:"retention_cron"`
	RetentionPeriod  time.Duration `yaml:"retention_period"`
}

// Default returns the built-in configuration before any file or
// environment overrides.
func Default() *Config {
	return &Config{
		AppName:          "Chat-App realtime API",
		Env:              "development",
		Host:             "0.0.0.0",
		Port:             5000,
		StoreDriver:      DriverSQLite,
		SQLitePath:       "chat.db",
		UploadDir:        "uploads",
		UploadBaseURL:    "/uploads",
		UploadMaxMB:      50,
		CORSOrigins:      []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		LogLevel:         "info",
		LogFormat:        "text",
		MaxMessageLength: 5000,
		HistoryLimit:     200,
		WSSendBuffer:     64,
		WSEventRate:      20,
		WSEventBurst:     40,
		RetentionCron:    "0 3 * * *",
		RetentionPeriod:  90 * 24 * time.Hour,
	}
}

// Load builds the configuration. A .env file is loaded first when present,
// then the optional YAML file at path (or CHAT_CONFIG), then environment
// variables, which take precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path == "" {
		path = os.Getenv("CHAT_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Host = getEnv("HTTP_HOST", cfg.Host)
	cfg.Port = getEnvAsInt("HTTP_PORT", cfg.Port)

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	if cfg.StoreDriver == DriverPostgres && os.Getenv("DATABASE_URL") == "" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURL()
	}
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.EncryptKey = getEnv("ENCRYPTION_KEY", cfg.EncryptKey)
	if legacy := getEnv("LEGACY_ENCRYPTION_KEYS", ""); legacy != "" {
		cfg.LegacyKeys = splitList(legacy)
	}

	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.UploadBaseURL = getEnv("UPLOAD_BASE_URL", cfg.UploadBaseURL)
	cfg.UploadMaxMB = getEnvAsInt("UPLOAD_MAX_MB", cfg.UploadMaxMB)
	if cors := getEnv("CORS_ORIGINS", ""); cors != "" {
		cfg.CORSOrigins = splitList(cors)
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.MaxMessageLength = getEnvAsInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.HistoryLimit = getEnvAsInt("HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.WSSendBuffer = getEnvAsInt("WS_SEND_BUFFER", cfg.WSSendBuffer)
	cfg.WSEventRate = getEnvAsFloat("WS_EVENT_RATE", cfg.WSEventRate)
	cfg.WSEventBurst = getEnvAsInt("WS_EVENT_BURST", cfg.WSEventBurst)

	cfg.RetentionEnabled = getEnvAsBool("RETENTION_ENABLED", cfg.RetentionEnabled)
	cfg.RetentionCron = getEnv("RETENTION_CRON", cfg.RetentionCron)
	cfg.RetentionPeriod = getEnvAsDuration("RETENTION_PERIOD", cfg.RetentionPeriod)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.EncryptKey == "" {
		return errors.New("ENCRYPTION_KEY is required")
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.WSSendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	if c.UploadMaxMB <= 0 {
		return errors.New("UPLOAD_MAX_MB must be positive")
	}
	if c.RetentionEnabled {
		if c.RetentionPeriod <= 0 {
			return errors.New("RETENTION_PERIOD must be positive when retention is enabled")
		}
		if !gronx.New().IsValid(c.RetentionCron) {
			return fmt.Errorf("RETENTION_CRON %q is not a valid cron expression", c.RetentionCron)
		}
	}
	return nil
}

// UploadMaxBytes is the largest accepted upload.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxMB) << 20
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "postgres")),
		Host:     fmt.Sprintf("%s:%s", getEnv("POSTGRES_HOST", "localhost"), getEnv("POSTGRES_PORT", "5432")),
		Path:     getEnv("POSTGRES_DB", "chat"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
