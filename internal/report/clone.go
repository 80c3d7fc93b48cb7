package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// Clone returns a deep copy of the report, transient section state included
func (r *ReportData) Clone() (*ReportData, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("clone report: %w", err)
	}
	var out ReportData
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone report: %w", err)
	}

	// Section order survives the round trip, so transient state maps by index.
	for i := range out.Sections {
		if i >= len(r.Sections) {
			break
		}
		src := r.Sections[i]
		out.Sections[i].Recording = src.Recording
		if len(src.Images) > 0 {
			out.Sections[i].Images = make([]Image, len(src.Images))
			for j, img := range src.Images {
				data := make([]byte, len(img.Data))
				copy(data, img.Data)
				out.Sections[i].Images[j] = Image{Name: img.Name, ContentType: img.ContentType, Data: data}
			}
		}
	}
	return &out, nil
}

// NewVersion snapshots the report for the version history.
// Transient section state is not part of a version.
func NewVersion(r *ReportData, status string, at time.Time) (Version, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return Version{}, fmt.Errorf("snapshot report: %w", err)
	}
	var data ReportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Version{}, fmt.Errorf("snapshot report: %w", err)
	}
	return Version{Timestamp: at.UTC(), Status: status, Data: data}, nil
}
