package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/xelth-com/reg44go/internal/report"
)

const (
	ActionsSheet   = "Actions"
	ChecklistSheet = "Documents"
)

// ActionsWorkbook builds an xlsx tracker of the report's actions and document checklist
func ActionsWorkbook(data *report.ReportData) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ActionsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ChecklistSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	writeHeader(f, ActionsSheet, []string{"#", "Action", "Responsible", "Deadline", "Status", "Progress"}, boldStyle)
	for i, a := range data.Actions {
		row := i + 2
		f.SetCellValue(ActionsSheet, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(ActionsSheet, fmt.Sprintf("B%d", row), a.Description)
		f.SetCellValue(ActionsSheet, fmt.Sprintf("C%d", row), a.ResponsiblePerson)
		f.SetCellValue(ActionsSheet, fmt.Sprintf("D%d", row), a.Deadline)
		f.SetCellValue(ActionsSheet, fmt.Sprintf("E%d", row), a.Status.Label())
		f.SetCellValue(ActionsSheet, fmt.Sprintf("F%d", row), a.Progress)
		f.SetCellStyle(ActionsSheet, fmt.Sprintf("B%d", row), fmt.Sprintf("F%d", row), wrapStyle)
	}
	setWidths(f, ActionsSheet, []float64{5, 60, 25, 14, 14, 40})

	writeHeader(f, ChecklistSheet, []string{"Document", "Checked", "Notes"}, boldStyle)
	for i, d := range data.DocumentChecklist {
		row := i + 2
		checked := "No"
		if d.Checked {
			checked = "Yes"
		}
		f.SetCellValue(ChecklistSheet, fmt.Sprintf("A%d", row), d.Name)
		f.SetCellValue(ChecklistSheet, fmt.Sprintf("B%d", row), checked)
		f.SetCellValue(ChecklistSheet, fmt.Sprintf("C%d", row), d.Notes)
	}
	summaryRow := len(data.DocumentChecklist) + 3
	f.SetCellValue(ChecklistSheet, fmt.Sprintf("A%d", summaryRow), "Completion")
	f.SetCellValue(ChecklistSheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("%d%%", data.ChecklistCompletion()))
	f.SetCellStyle(ChecklistSheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("B%d", summaryRow), boldStyle)
	setWidths(f, ChecklistSheet, []float64{45, 10, 50})

	f.SetDocProps(&excelize.DocProperties{
		Title:   "Actions: " + data.HomeName,
		Subject: "Regulation 44 visit " + data.VisitDate,
	})
	return f, nil
}

// ActionsWorkbookBytes renders the workbook to xlsx bytes
func ActionsWorkbookBytes(data *report.ReportData) ([]byte, error) {
	f, err := ActionsWorkbook(data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}

func setWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
}
