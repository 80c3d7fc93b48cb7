package narrative

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/reg44go/internal/report"
)

func sampleReport(t *testing.T) *report.ReportData {
	t.Helper()
	r := report.New("r1", "home-1", "2026-10-01")
	require.NoError(t, r.SetSettingType(report.SettingChildrensHome))
	require.NoError(t, r.SetFormType(report.FormFull))
	r.SetHomeDetails(report.HomeDetails{HomeName: "Oak House", URN: "SC123456", RegisteredManager: "P. Jones"})
	require.NoError(t, r.UpdateSectionContent("voice-of-child", "Children chose the new menu."))
	require.NoError(t, r.SetDocument("Statement of purpose", true, "Updated in August"))
	_, err := r.AddAction(report.Action{Description: "Repair fire door", ResponsiblePerson: "P. Jones", Deadline: "2026-11-01"})
	require.NoError(t, err)
	return r
}

func TestSummary_Deterministic(t *testing.T) {
	r := sampleReport(t)
	r.AddChildFeedback(report.ChildFeedback{Name: "A", Age: "12", Comments: "I like my room"})
	r.AddStaffFeedback(report.StaffFeedback{Name: "B", Role: "Senior", Comments: "Good team"})

	first := Summary(r)
	second := Summary(r)
	assert.Equal(t, first, second)
	assert.Equal(t, ActionPlan(r), ActionPlan(r))
}

func TestSummary_Placeholders(t *testing.T) {
	r := report.New("r1", "", "")
	out := Summary(r)

	assert.Contains(t, out, "# Regulation 44 Visit Report: "+NotSpecified)
	assert.Contains(t, out, "- **Setting:** "+NotSpecified)
	assert.Contains(t, out, "- **Form:** "+NotSpecified)
	assert.Contains(t, out, "0 of 0 documents checked (0%).")
	assert.Contains(t, out, "No feedback from children was recorded.")
	assert.Contains(t, out, "No actions were raised.")
	assert.NotContains(t, out, "NaN")
}

func TestSummary_InterpolatesFields(t *testing.T) {
	r := sampleReport(t)
	out := Summary(r)

	assert.Contains(t, out, "# Regulation 44 Visit Report: Oak House")
	assert.Contains(t, out, "- **URN:** SC123456")
	assert.Contains(t, out, "- **Setting:** Registered children's home")
	assert.Contains(t, out, "### Children's views, wishes and feelings\n\nChildren chose the new menu.")
	assert.Contains(t, out, "- [x] Statement of purpose: Updated in August")
	assert.Contains(t, out, "1 actions recorded, 1 open.")

	// Sections appear in template order
	overview := strings.Index(out, "### Visit overview")
	voice := strings.Index(out, "### Children's views, wishes and feelings")
	require.True(t, overview >= 0 && voice >= 0)
	assert.Less(t, overview, voice)
}

func TestSummary_FeedbackSelection(t *testing.T) {
	t.Run("flagged only", func(t *testing.T) {
		r := sampleReport(t)
		a := r.AddChildFeedback(report.ChildFeedback{Name: "Amy", Comments: "Staff listen to me"})
		r.AddChildFeedback(report.ChildFeedback{Name: "Ben", Comments: "Food is fine"})
		require.NoError(t, r.SetFeedbackIncluded(a.ID, true))

		out := Summary(r)
		assert.Contains(t, out, "**Amy**: Staff listen to me")
		assert.NotContains(t, out, "Ben")
	})

	t.Run("fallback to all non-empty", func(t *testing.T) {
		r := sampleReport(t)
		r.AddChildFeedback(report.ChildFeedback{Name: "Amy", Comments: "Staff listen to me"})
		r.AddChildFeedback(report.ChildFeedback{Name: "Ben", Comments: "Food is fine"})
		r.AddChildFeedback(report.ChildFeedback{Name: "Cal", Comments: "  "})

		out := Summary(r)
		assert.Contains(t, out, "Amy")
		assert.Contains(t, out, "Ben")
		assert.NotContains(t, out, "Cal")
	})

	t.Run("flagged but empty falls back", func(t *testing.T) {
		items := []report.StaffFeedback{
			{Name: "Dee", Comments: "", IncludeInSummary: true},
			{Name: "Eve", Comments: "Busy week"},
		}
		got := SelectStaffFeedback(items)
		require.Len(t, got, 1)
		assert.Equal(t, "Eve", got[0].Name)
	})
}

func TestActionPlan_GroupsByStatus(t *testing.T) {
	r := sampleReport(t)
	b, err := r.AddAction(report.Action{Description: "Update risk assessments"})
	require.NoError(t, err)
	require.NoError(t, r.SetActionStatus(b.ID, report.ActionCompleted, "Done 3 Oct"))

	out := ActionPlan(r)
	assert.Contains(t, out, "## Not started (1)")
	assert.Contains(t, out, "## Completed (1)")
	assert.NotContains(t, out, "## In progress")
	assert.Contains(t, out, "   - Progress: Done 3 Oct")
	assert.Contains(t, out, "   - Deadline: "+NotSpecified)
	assert.Less(t, strings.Index(out, "Not started"), strings.Index(out, "Completed"))
}
