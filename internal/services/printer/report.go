package printer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/reg44go/internal/narrative"
	"github.com/xelth-com/reg44go/internal/report"
)

// Options holds configuration for report PDF generation
type Options struct {
	// Reference is encoded in the header QR code; defaults to REG44/<report id>
	Reference   string
	GeneratedAt time.Time
	// Status printed in the header, e.g. draft or submitted
	Status string
}

const (
	margin     = 15.0
	lineHeight = 5.0
	headerH    = 28.0
	qrSize     = 22.0
)

// actionColumns are the actions table columns and their share of the page width
var actionColumns = []struct {
	title string
	share float64
}{
	{"Action", 0.42},
	{"Responsible", 0.20},
	{"Deadline", 0.14},
	{"Status", 0.24},
}

// GenerateReportPDF renders a visit report as an A4 PDF
func GenerateReportPDF(data *report.ReportData, opts Options) ([]byte, error) {
	pdf, err := build(data, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type writer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func build(data *report.ReportData, opts Options) (*gofpdf.Fpdf, error) {
	if opts.Reference == "" {
		opts.Reference = "REG44/" + data.ReportID
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin+headerH, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AliasNbPages("")
	pdf.SetTitle("Regulation 44 visit report", true)
	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	// QR code carrying the report reference, drawn on every page header
	qrPng, err := qrcode.Encode(opts.Reference, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	qrOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("reference_qr", qrOptions, bytes.NewReader(qrPng))

	pdf.SetHeaderFunc(func() { w.header(data, opts, qrOptions) })
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, w.tr(fmt.Sprintf("%s  |  Page %d of {nb}", opts.Reference, pdf.PageNo())), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	w.visitDetails(data)
	w.sections(data)
	w.feedback(data)
	w.standards(data)
	w.documents(data)
	w.followUp(data)
	w.actions(data)
	w.signOff(data)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func (w *writer) header(data *report.ReportData, opts Options, qrOptions gofpdf.ImageOptions) {
	pdf := w.pdf
	pageW, _ := pdf.GetPageSize()

	pdf.ImageOptions("reference_qr", pageW-margin-qrSize, 6, qrSize, qrSize, false, qrOptions, 0, "")

	pdf.SetXY(margin, 8)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(pageW-2*margin-qrSize-4, 7, w.tr("Regulation 44 Independent Visitor Report"), "", 2, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(pageW-2*margin-qrSize-4, 5, w.tr(narrativeValue(data.HomeName)+"  |  "+narrativeValue(data.VisitDate)), "", 2, "L", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	line := "Generated " + opts.GeneratedAt.Format("2 January 2006 15:04")
	if opts.Status != "" {
		line += "  |  " + strings.ToUpper(opts.Status)
	}
	pdf.CellFormat(pageW-2*margin-qrSize-4, 4, w.tr(line), "", 2, "L", false, 0, "")

	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(margin, margin+headerH-4, pageW-margin, margin+headerH-4)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetXY(margin, margin+headerH)
}

func (w *writer) heading(text string) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Arial", "B", 12)
	w.pdf.SetFillColor(235, 240, 245)
	w.pdf.CellFormat(0, 7, w.tr(text), "", 1, "L", true, 0, "")
	w.pdf.Ln(1)
}

func (w *writer) subheading(text string) {
	w.pdf.SetFont("Arial", "B", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
}

func (w *writer) paragraph(text string) {
	w.pdf.SetFont("Arial", "", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(narrativeValue(text)), "", "L", false)
	w.pdf.Ln(1)
}

func (w *writer) field(label, value string) {
	w.pdf.SetFont("Arial", "B", 10)
	w.pdf.CellFormat(50, lineHeight, w.tr(label), "", 0, "L", false, 0, "")
	w.pdf.SetFont("Arial", "", 10)
	w.pdf.MultiCell(0, lineHeight, w.tr(narrativeValue(value)), "", "L", false)
}

func (w *writer) visitDetails(data *report.ReportData) {
	w.heading("Visit details")
	w.field("Home", data.HomeName)
	w.field("URN", data.URN)
	w.field("Address", data.Address)
	w.field("Setting", data.SettingType.Label())
	w.field("Visit date", data.VisitDate)
	w.field("Visit type", string(data.VisitType))
	w.field("Form", string(data.FormType))
	w.field("Independent visitor", data.VisitorName)
	w.field("Registered manager", data.RegisteredManager)
	w.field("Responsible individual", data.ResponsibleIndividual)
}

func (w *writer) sections(data *report.ReportData) {
	if len(data.Sections) == 0 {
		return
	}
	w.heading("Observations")
	for _, s := range data.Sections {
		w.subheading(s.Title)
		w.paragraph(s.Content)
		for i, img := range s.Images {
			w.image(fmt.Sprintf("%s_%d", s.ID, i), img)
		}
	}
}

// image embeds an attached photo at content width. Unreadable images are skipped.
func (w *writer) image(name string, img report.Image) {
	imageType := imageTypeFor(img.ContentType)
	if imageType == "" || len(img.Data) == 0 {
		return
	}
	pdf := w.pdf
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if !pdf.Ok() || info == nil {
		pdf.ClearError()
		return
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := (pageW - 2*margin) * 0.6
	width := info.Width()
	height := info.Height()
	if width <= 0 || height <= 0 {
		return
	}
	scale := maxW / width
	if width < maxW {
		scale = 1
	}
	drawW, drawH := width*scale, height*scale
	if drawH > pageH/2 {
		drawW, drawH = drawW*(pageH/2)/drawH, pageH/2
	}

	if pdf.GetY()+drawH > pageH-margin {
		pdf.AddPage()
	}
	pdf.ImageOptions(name, margin, pdf.GetY(), drawW, drawH, true, opts, 0, "")
	if img.Name != "" {
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 4, w.tr(img.Name), "", "L", false)
	}
	pdf.Ln(2)
}

func imageTypeFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return "PNG"
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

func (w *writer) feedback(data *report.ReportData) {
	children := narrative.SelectChildFeedback(data.ChildFeedback)
	staff := narrative.SelectStaffFeedback(data.StaffFeedback)
	if len(children) == 0 && len(staff) == 0 {
		return
	}
	w.heading("Views of children and staff")
	for _, c := range children {
		label := narrativeValue(c.Name)
		if strings.TrimSpace(c.Age) != "" {
			label += " (age " + strings.TrimSpace(c.Age) + ")"
		}
		w.subheading(label)
		w.paragraph(c.Comments)
	}
	for _, s := range staff {
		w.subheading(narrativeValue(s.Name) + ", " + narrativeValue(s.Role))
		w.paragraph(s.Comments)
	}
}

func (w *writer) standards(data *report.ReportData) {
	w.heading("Quality standards")
	for _, std := range report.Standards() {
		a, _ := data.Assessment(std)
		w.subheading(std.Title() + ": " + narrativeValue(a.Judgement))
		w.paragraph(a.Evidence)
		if strings.TrimSpace(a.Strengths) != "" {
			w.field("Strengths", a.Strengths)
		}
		if strings.TrimSpace(a.Improvements) != "" {
			w.field("Areas for development", a.Improvements)
		}
	}
}

func (w *writer) documents(data *report.ReportData) {
	checked, total := data.ChecklistCounts()
	w.heading(fmt.Sprintf("Documents reviewed (%d of %d, %d%%)", checked, total, data.ChecklistCompletion()))
	w.pdf.SetFont("Arial", "", 10)
	for _, d := range data.DocumentChecklist {
		mark := "[  ]"
		if d.Checked {
			mark = "[x]"
		}
		text := mark + " " + d.Name
		if strings.TrimSpace(d.Notes) != "" {
			text += ": " + strings.TrimSpace(d.Notes)
		}
		w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
	}
}

func (w *writer) followUp(data *report.ReportData) {
	w.heading("Follow-up of previous actions")
	reviewed := "No"
	if data.FollowUp.PreviousActionsReviewed {
		reviewed = "Yes"
	}
	w.field("Previous actions reviewed", reviewed)
	w.paragraph(data.FollowUp.Notes)
}

// actions draws the actions table. Column widths come from the usable page
// width; each row is as tall as its tallest wrapped cell.
func (w *writer) actions(data *report.ReportData) {
	w.heading("Actions")
	if len(data.Actions) == 0 {
		w.paragraph("No actions were raised.")
		return
	}
	pdf := w.pdf
	pageW, pageH := pdf.GetPageSize()
	usable := pageW - 2*margin
	widths := make([]float64, len(actionColumns))
	for i, c := range actionColumns {
		widths[i] = usable * c.share
	}

	drawHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 225, 230)
		for i, c := range actionColumns {
			pdf.CellFormat(widths[i], 6, w.tr(c.title), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	drawHeader()

	pdf.SetFont("Arial", "", 9)
	for _, a := range data.Actions {
		status := a.Status.Label()
		if strings.TrimSpace(a.Progress) != "" {
			status += ": " + strings.TrimSpace(a.Progress)
		}
		cells := []string{a.Description, a.ResponsiblePerson, a.Deadline, status}

		rowH := 0.0
		for i, text := range cells {
			lines := pdf.SplitLines([]byte(w.tr(narrativeValue(text))), widths[i]-2)
			if h := float64(len(lines)) * 4.5; h > rowH {
				rowH = h
			}
		}
		rowH += 1.5

		if pdf.GetY()+rowH > pageH-margin {
			pdf.AddPage()
			drawHeader()
			pdf.SetFont("Arial", "", 9)
		}

		x, y := pdf.GetX(), pdf.GetY()
		for i, text := range cells {
			pdf.Rect(x, y, widths[i], rowH, "D")
			pdf.SetXY(x+1, y+0.75)
			pdf.MultiCell(widths[i]-2, 4.5, w.tr(narrativeValue(text)), "", "L", false)
			x += widths[i]
		}
		pdf.SetXY(margin, y+rowH)
	}
}

func (w *writer) signOff(data *report.ReportData) {
	w.heading("Opinion and sign-off")
	w.subheading("Are children effectively safeguarded?")
	w.paragraph(data.SignOff.SafeguardingOpinion)
	w.subheading("Is the care promoting children's well-being?")
	w.paragraph(data.SignOff.WellbeingOpinion)
	w.field("Signed by", data.SignOff.SignedBy)
	signedAt := ""
	if data.SignOff.SignedAt != nil {
		signedAt = data.SignOff.SignedAt.Format("2 January 2006 15:04")
	}
	w.field("Signed at", signedAt)
}

func narrativeValue(s string) string {
	if strings.TrimSpace(s) == "" {
		return narrative.NotSpecified
	}
	return strings.TrimSpace(s)
}
