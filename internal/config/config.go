package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv     string
	Port        string
	JWTSecret   string
	InstanceID  string // overrides the persisted device id
	StateDir    string // device identity and other local state
	BaseURL     string // public address encoded in report QR codes
	FrontendDir string
	Database    DatabaseConfig
	Local       LocalConfig
	AI          AIConfig
	Autosave    AutosaveConfig
	Sync        *SyncConfig
	Log         LogConfig
}

// DatabaseConfig holds the remote (PostgreSQL) database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Quiet    bool
}

// LocalConfig holds the device-local store configuration
type LocalConfig struct {
	Path string
}

// AIConfig holds narrative polishing configuration
type AIConfig struct {
	GeminiAPIKey string
	Model        string
	Timeout      time.Duration
}

// AutosaveConfig holds autosave configuration
type AutosaveConfig struct {
	Interval     time.Duration
	VersionLimit int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	syncCfg, err := LoadSyncConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3044"),
		JWTSecret:   jwtSecret,
		InstanceID:  os.Getenv("INSTANCE_ID"),
		StateDir:    getEnv("STATE_DIR", ".reg44"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:3044"),
		FrontendDir: getEnv("FRONTEND_DIR", "./public"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "reg44"),
			Quiet:    getEnv("DB_QUIET", "false") == "true",
		},
		Local: LocalConfig{
			Path: getEnv("LOCAL_DB_PATH", "./reg44_local.db"),
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			Model:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:      getDuration("AI_TIMEOUT", 30*time.Second),
		},
		Autosave: AutosaveConfig{
			Interval:     getDuration("AUTOSAVE_INTERVAL", 15*time.Second),
			VersionLimit: getIntEnv("VERSION_LIMIT", 2),
		},
		Sync: syncCfg,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

// IsProduction reports whether NODE_ENV is production
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("15s") or plain seconds ("15")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
