package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SyncConfig holds outbox reconciliation configuration
type SyncConfig struct {
	// ============ BASIC SETTINGS ============
	Enabled  bool `json:"enabled"`
	AutoPush bool `json:"auto_push"` // push without waiting for the user to confirm

	// ============ SCHEDULING ============
	Interval    int `json:"interval"`     // seconds between outbox drains
	PingTimeout int `json:"ping_timeout"` // seconds allowed for the connectivity probe
	PushTimeout int `json:"push_timeout"` // seconds allowed for one push

	// ============ LIMITS ============
	MaxAttempts int `json:"max_attempts"` // failed pushes before an entry is parked
	BatchSize   int `json:"batch_size"`

	// ============ CONFLICTS ============
	ConflictResolution string `json:"conflict_resolution"` // last_write_wins, remote_wins, local_wins
	RecordConflicts    bool   `json:"record_conflicts"`

	// ============ OUTBOX ============
	CompactOutbox bool `json:"compact_outbox"` // keep only the newest pending entry per report
}

// LoadSyncConfig loads sync configuration from environment, overlaid by
// the JSON file named in SYNC_CONFIG_PATH when set.
func LoadSyncConfig() (*SyncConfig, error) {
	cfg := getDefaultSyncConfig()

	if configPath := os.Getenv("SYNC_CONFIG_PATH"); configPath != "" {
		if err := loadSyncConfigFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("sync config %s: %w", configPath, err)
		}
	}

	return cfg, cfg.Validate()
}

// loadSyncConfigFromFile overlays a JSON file onto cfg
func loadSyncConfigFromFile(path string, cfg *SyncConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// getDefaultSyncConfig returns default sync configuration
func getDefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enabled:  getBoolEnv("SYNC_ENABLED", true),
		AutoPush: getBoolEnv("SYNC_AUTO_PUSH", false),

		Interval:    getIntEnv("SYNC_INTERVAL", 30),
		PingTimeout: getIntEnv("SYNC_PING_TIMEOUT", 3),
		PushTimeout: getIntEnv("SYNC_PUSH_TIMEOUT", 15),

		MaxAttempts: getIntEnv("SYNC_MAX_ATTEMPTS", 5),
		BatchSize:   getIntEnv("SYNC_BATCH_SIZE", 50),

		ConflictResolution: getEnv("SYNC_CONFLICT_RESOLUTION", "last_write_wins"),
		RecordConflicts:    getBoolEnv("SYNC_RECORD_CONFLICTS", true),

		CompactOutbox: getBoolEnv("SYNC_COMPACT_OUTBOX", true),
	}
}

// Validate rejects settings the sync engine cannot run with
func (c *SyncConfig) Validate() error {
	switch c.ConflictResolution {
	case "last_write_wins", "remote_wins", "local_wins":
	default:
		return fmt.Errorf("unknown conflict resolution %q", c.ConflictResolution)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %d", c.Interval)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return nil
}

// Helper functions for environment variables

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
