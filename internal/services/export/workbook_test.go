package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xelth-com/reg44go/internal/report"
)

func TestActionsWorkbook(t *testing.T) {
	data := report.New("rep-1", "home-1", "2026-03-14")
	data.HomeName = "Oak House"
	require.NoError(t, data.SetSettingType(report.SettingChildrensHome))
	_, err := data.AddAction(report.Action{Description: "Review fire drills", ResponsiblePerson: "Manager", Deadline: "2026-04-01"})
	require.NoError(t, err)
	_, err = data.AddAction(report.Action{Description: "Update care plans", Status: report.ActionCompleted, Progress: "done"})
	require.NoError(t, err)

	raw, err := ActionsWorkbookBytes(data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ActionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Action", rows[0][1])
	assert.Equal(t, "Review fire drills", rows[1][1])
	assert.Equal(t, "Not started", rows[1][4])
	assert.Equal(t, "Completed", rows[2][4])

	docs, err := f.GetRows(ChecklistSheet)
	require.NoError(t, err)
	assert.Len(t, docs, len(data.DocumentChecklist)+3)
	last := docs[len(docs)-1]
	assert.Equal(t, "Completion", last[0])
	assert.Equal(t, "0%", last[1])
}
