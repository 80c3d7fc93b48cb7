package narrative

import (
	"strings"

	"github.com/xelth-com/reg44go/internal/report"
)

// selectEntries keeps the flagged entries, or every non-empty entry when
// nothing was flagged.
func selectEntries[T any](items []T, flagged func(T) bool, empty func(T) bool) []T {
	var out []T
	for _, it := range items {
		if flagged(it) && !empty(it) {
			out = append(out, it)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, it := range items {
		if !empty(it) {
			out = append(out, it)
		}
	}
	return out
}

// SelectChildFeedback returns the child feedback that belongs in the summary
func SelectChildFeedback(items []report.ChildFeedback) []report.ChildFeedback {
	return selectEntries(items,
		func(c report.ChildFeedback) bool { return c.IncludeInSummary },
		func(c report.ChildFeedback) bool { return strings.TrimSpace(c.Comments) == "" },
	)
}

// SelectStaffFeedback returns the staff feedback that belongs in the summary
func SelectStaffFeedback(items []report.StaffFeedback) []report.StaffFeedback {
	return selectEntries(items,
		func(s report.StaffFeedback) bool { return s.IncludeInSummary },
		func(s report.StaffFeedback) bool { return strings.TrimSpace(s.Comments) == "" },
	)
}
