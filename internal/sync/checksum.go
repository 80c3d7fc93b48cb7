package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/xelth-com/reg44go/internal/report"
)

// ChecksumCalculator hashes report content so identical concurrent
// writes are not reported as conflicts
type ChecksumCalculator struct{}

// NewChecksumCalculator creates a new checksum calculator
func NewChecksumCalculator() *ChecksumCalculator {
	return &ChecksumCalculator{}
}

// ComputeChecksum returns the SHA256 of the report's persisted form.
// Validation state is excluded since it is derived.
func (c *ChecksumCalculator) ComputeChecksum(data report.ReportData) (string, error) {
	data.ValidationErrors = nil
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Same reports whether two reports hash equal. Hash errors count as different.
func (c *ChecksumCalculator) Same(a, b report.ReportData) bool {
	ha, err := c.ComputeChecksum(a)
	if err != nil {
		return false
	}
	hb, err := c.ComputeChecksum(b)
	if err != nil {
		return false
	}
	return ha == hb
}
