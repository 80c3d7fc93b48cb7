// Package narrative turns a visit report into Markdown text blocks.
// Output depends only on the report value: no clock, no randomness,
// no map iteration.
package narrative

import (
	"fmt"
	"strings"

	"github.com/xelth-com/reg44go/internal/report"
)

// NotSpecified stands in for any empty field
const NotSpecified = "Not specified"

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return strings.TrimSpace(s)
}

// Summary renders the visit narrative
func Summary(r *report.ReportData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Regulation 44 Visit Report: %s\n\n", orNotSpecified(r.HomeName))

	b.WriteString("## Visit details\n\n")
	fmt.Fprintf(&b, "- **Home:** %s\n", orNotSpecified(r.HomeName))
	fmt.Fprintf(&b, "- **URN:** %s\n", orNotSpecified(r.URN))
	fmt.Fprintf(&b, "- **Setting:** %s\n", settingLabel(r.SettingType))
	fmt.Fprintf(&b, "- **Visit date:** %s\n", orNotSpecified(r.VisitDate))
	fmt.Fprintf(&b, "- **Visit type:** %s\n", orNotSpecified(string(r.VisitType)))
	fmt.Fprintf(&b, "- **Form:** %s\n", formLabel(r.FormType))
	fmt.Fprintf(&b, "- **Independent visitor:** %s\n", orNotSpecified(r.VisitorName))
	fmt.Fprintf(&b, "- **Registered manager:** %s\n", orNotSpecified(r.RegisteredManager))
	fmt.Fprintf(&b, "- **Responsible individual:** %s\n\n", orNotSpecified(r.ResponsibleIndividual))

	b.WriteString("## Children's views\n\n")
	children := SelectChildFeedback(r.ChildFeedback)
	if len(children) == 0 {
		b.WriteString("No feedback from children was recorded.\n\n")
	}
	for _, c := range children {
		if strings.TrimSpace(c.Age) != "" {
			fmt.Fprintf(&b, "- **%s** (age %s): %s\n", orNotSpecified(c.Name), strings.TrimSpace(c.Age), orNotSpecified(c.Comments))
		} else {
			fmt.Fprintf(&b, "- **%s**: %s\n", orNotSpecified(c.Name), orNotSpecified(c.Comments))
		}
	}
	if len(children) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Staff views\n\n")
	staff := SelectStaffFeedback(r.StaffFeedback)
	if len(staff) == 0 {
		b.WriteString("No feedback from staff was recorded.\n\n")
	}
	for _, s := range staff {
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", orNotSpecified(s.Name), orNotSpecified(s.Role), orNotSpecified(s.Comments))
	}
	if len(staff) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Quality standards\n\n")
	for _, std := range report.Standards() {
		a, _ := r.Assessment(std)
		fmt.Fprintf(&b, "### %s\n\n", std.Title())
		fmt.Fprintf(&b, "**Judgement:** %s\n\n", orNotSpecified(a.Judgement))
		fmt.Fprintf(&b, "%s\n\n", orNotSpecified(a.Evidence))
		fmt.Fprintf(&b, "**Strengths:** %s\n\n", orNotSpecified(a.Strengths))
		fmt.Fprintf(&b, "**Areas for development:** %s\n\n", orNotSpecified(a.Improvements))
	}

	b.WriteString("## Observations\n\n")
	if len(r.Sections) == 0 {
		b.WriteString(NotSpecified + "\n\n")
	}
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", orNotSpecified(s.Title), orNotSpecified(s.Content))
	}

	b.WriteString("## Documents reviewed\n\n")
	checked, total := r.ChecklistCounts()
	fmt.Fprintf(&b, "%d of %d documents checked (%d%%).\n\n", checked, total, r.ChecklistCompletion())
	for _, d := range r.DocumentChecklist {
		mark := " "
		if d.Checked {
			mark = "x"
		}
		if strings.TrimSpace(d.Notes) != "" {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", mark, d.Name, strings.TrimSpace(d.Notes))
		} else {
			fmt.Fprintf(&b, "- [%s] %s\n", mark, d.Name)
		}
	}
	if total > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Previous actions\n\n")
	if r.FollowUp.PreviousActionsReviewed {
		b.WriteString("Actions from the previous visit were reviewed.\n\n")
	} else {
		b.WriteString("Actions from the previous visit were not reviewed.\n\n")
	}
	fmt.Fprintf(&b, "%s\n\n", orNotSpecified(r.FollowUp.Notes))

	fmt.Fprintf(&b, "## Actions\n\n%s\n\n", actionCountLine(r.Actions))

	b.WriteString("## Opinion\n\n")
	fmt.Fprintf(&b, "**Are children effectively safeguarded?** %s\n\n", orNotSpecified(r.SignOff.SafeguardingOpinion))
	fmt.Fprintf(&b, "**Is the care promoting children's well-being?** %s\n\n", orNotSpecified(r.SignOff.WellbeingOpinion))
	fmt.Fprintf(&b, "Signed: %s\n", orNotSpecified(r.SignOff.SignedBy))

	return b.String()
}

// ActionPlan renders the action tracker grouped by status
func ActionPlan(r *report.ReportData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Action plan: %s\n\n", orNotSpecified(r.HomeName))
	fmt.Fprintf(&b, "%s\n", actionCountLine(r.Actions))

	for _, status := range []report.ActionStatus{report.ActionNotStarted, report.ActionInProgress, report.ActionCompleted} {
		var group []report.Action
		for _, a := range r.Actions {
			if a.Status == status {
				group = append(group, a)
			}
		}
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s (%d)\n\n", status.Label(), len(group))
		for i, a := range group {
			fmt.Fprintf(&b, "%d. %s\n", i+1, orNotSpecified(a.Description))
			fmt.Fprintf(&b, "   - Responsible: %s\n", orNotSpecified(a.ResponsiblePerson))
			fmt.Fprintf(&b, "   - Deadline: %s\n", orNotSpecified(a.Deadline))
			if strings.TrimSpace(a.Progress) != "" {
				fmt.Fprintf(&b, "   - Progress: %s\n", strings.TrimSpace(a.Progress))
			}
		}
	}
	return b.String()
}

func actionCountLine(actions []report.Action) string {
	if len(actions) == 0 {
		return "No actions were raised."
	}
	open := 0
	for _, a := range actions {
		if a.Status != report.ActionCompleted {
			open++
		}
	}
	return fmt.Sprintf("%d actions recorded, %d open.", len(actions), open)
}

func settingLabel(t report.SettingType) string {
	if t == "" {
		return NotSpecified
	}
	return t.Label()
}

func formLabel(f report.FormType) string {
	switch f {
	case report.FormFull:
		return "Full visit"
	case report.FormFocused:
		return "Focused visit"
	}
	return orNotSpecified(string(f))
}
