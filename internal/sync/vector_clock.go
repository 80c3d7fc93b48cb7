package sync

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/xelth-com/reg44go/internal/models"
)

// VectorClock tracks causality between devices editing the same report
// Map format: {device_id: counter}
type VectorClock map[string]int64

// ClockRelation represents the relationship between two vector clocks
type ClockRelation int

const (
	ClockBefore     ClockRelation = iota // Local happened before remote
	ClockAfter                           // Local happened after remote
	ClockEqual                           // Same history
	ClockConcurrent                      // Concurrent edits (conflict)
)

func (r ClockRelation) String() string {
	switch r {
	case ClockBefore:
		return "before"
	case ClockAfter:
		return "after"
	case ClockEqual:
		return "equal"
	default:
		return "concurrent"
	}
}

// NewVectorClock creates a new vector clock
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Increment increases the counter for a device
func (vc VectorClock) Increment(deviceID string) {
	vc[deviceID]++
}

// Get returns the counter for a device
func (vc VectorClock) Get(deviceID string) int64 {
	return vc[deviceID]
}

// Merge merges another vector clock, taking the maximum for each device
func (vc VectorClock) Merge(other VectorClock) {
	for device, counter := range other {
		if vc[device] < counter {
			vc[device] = counter
		}
	}
}

// Copy creates a deep copy of the vector clock
func (vc VectorClock) Copy() VectorClock {
	result := make(VectorClock, len(vc))
	for k, v := range vc {
		result[k] = v
	}
	return result
}

// Compare compares two vector clocks and returns their relationship.
// Missing devices count as zero.
func (vc VectorClock) Compare(other VectorClock) ClockRelation {
	lessOrEqual := true
	greaterOrEqual := true

	check := func(device string) {
		v1, v2 := vc[device], other[device]
		if v1 > v2 {
			lessOrEqual = false
		}
		if v1 < v2 {
			greaterOrEqual = false
		}
	}
	for device := range vc {
		check(device)
	}
	for device := range other {
		check(device)
	}

	switch {
	case lessOrEqual && greaterOrEqual:
		return ClockEqual
	case lessOrEqual:
		return ClockBefore
	case greaterOrEqual:
		return ClockAfter
	}
	return ClockConcurrent
}

// String returns a human-readable representation
func (vc VectorClock) String() string {
	data, _ := json.Marshal(map[string]int64(vc))
	return string(data)
}

// Validate checks if the vector clock is valid
func (vc VectorClock) Validate() error {
	for device, counter := range vc {
		if device == "" {
			return fmt.Errorf("empty device ID in vector clock")
		}
		if counter < 0 {
			return fmt.Errorf("negative counter %d for device %s", counter, device)
		}
	}
	return nil
}

// ToJSONB converts the clock for storage in a JSONB column
func (vc VectorClock) ToJSONB() models.JSONB {
	out := make(models.JSONB, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// ClockFromJSONB reads a clock back from a JSONB column.
// JSON numbers decode as float64; anything non-numeric is skipped.
func ClockFromJSONB(j models.JSONB) VectorClock {
	vc := make(VectorClock, len(j))
	for k, v := range j {
		switch n := v.(type) {
		case float64:
			vc[k] = int64(math.Round(n))
		case int64:
			vc[k] = n
		case int:
			vc[k] = int64(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				vc[k] = i
			}
		}
	}
	return vc
}
