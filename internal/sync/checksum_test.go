package sync

import (
	"testing"

	"github.com/xelth-com/reg44go/internal/report"
)

func TestChecksumCalculator_ComputeChecksum(t *testing.T) {
	calc := NewChecksumCalculator()

	data := *report.New("r1", "h1", "2026-03-01")
	if err := data.SetSettingType(report.SettingChildrensHome); err != nil {
		t.Fatalf("Failed to set setting type: %v", err)
	}
	data.HomeName = "Oak House"

	hash1, err := calc.ComputeChecksum(data)
	if err != nil {
		t.Fatalf("Failed to compute checksum: %v", err)
	}

	if len(hash1) != 64 {
		t.Errorf("Expected 64-character SHA256 hash, got %d characters", len(hash1))
	}

	// Compute again - should be deterministic
	hash2, err := calc.ComputeChecksum(data)
	if err != nil {
		t.Fatalf("Failed to compute checksum on second attempt: %v", err)
	}
	if hash1 != hash2 {
		t.Error("Checksum should be deterministic")
	}

	// Change a field - hash should change
	data.HomeName = "Elm Lodge"
	hash3, err := calc.ComputeChecksum(data)
	if err != nil {
		t.Fatalf("Failed to compute checksum after modification: %v", err)
	}
	if hash1 == hash3 {
		t.Error("Checksum should change when content changes")
	}
}

func TestChecksumCalculator_IgnoresValidationState(t *testing.T) {
	calc := NewChecksumCalculator()

	a := *report.New("r1", "h1", "2026-03-01")
	b := *report.New("r1", "h1", "2026-03-01")
	_ = b.Validate()

	if len(b.ValidationErrors) == 0 {
		t.Fatal("Expected validation errors on an incomplete report")
	}
	if !calc.Same(a, b) {
		t.Error("Validation errors should not affect the checksum")
	}
	if len(b.ValidationErrors) == 0 {
		t.Error("ComputeChecksum must not clear the caller's validation errors")
	}
}

func TestChecksumCalculator_IgnoresTransientState(t *testing.T) {
	calc := NewChecksumCalculator()

	a := *report.New("r1", "h1", "2026-03-01")
	if err := a.SetSettingType(report.SettingShortBreaks); err != nil {
		t.Fatal(err)
	}
	b := a
	b.Sections = append([]report.Section(nil), a.Sections...)
	b.Sections[0].Recording = true

	if !calc.Same(a, b) {
		t.Error("Recording flag is transient and should not affect the checksum")
	}
}
