package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DeviceIdentity is the persistent identity of this device. Its id is the
// vector clock component written by every local edit, so it must survive restarts.
type DeviceIdentity struct {
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

const identityFile = "device_identity.json"

// LoadOrCreateDeviceIdentity returns the identity stored in dir, creating it on first use.
// A non-empty override (INSTANCE_ID) wins and is not persisted.
func LoadOrCreateDeviceIdentity(dir, override string) (*DeviceIdentity, error) {
	if override != "" {
		return &DeviceIdentity{DeviceID: override}, nil
	}

	path := filepath.Join(dir, identityFile)
	if data, err := os.ReadFile(path); err == nil {
		var identity DeviceIdentity
		if err := json.Unmarshal(data, &identity); err == nil && identity.DeviceID != "" {
			return &identity, nil
		}
	}

	identity := &DeviceIdentity{
		DeviceID:  "device-" + uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}
	data, _ := json.MarshalIndent(identity, "", "  ")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	return identity, nil
}
