package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/xelth-com/reg44go/internal/services/export"
	"github.com/xelth-com/reg44go/internal/services/printer"
)

// exportPDF renders the report, attached images included
func (r *Router) exportPDF(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	s, err := r.sessions.Open(req.Context(), orgID(req), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	pdfBytes, err := printer.GenerateReportPDF(snap, printer.Options{
		Reference:   r.referenceURL(id),
		GeneratedAt: time.Now(),
		Status:      s.Status(),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"reg44_%s.pdf\"", fileStem(snap.HomeName, snap.VisitDate)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}

func (r *Router) exportActions(w http.ResponseWriter, req *http.Request) {
	snap, ok := r.snapshot(w, req)
	if !ok {
		return
	}
	xlsx, err := export.ActionsWorkbookBytes(snap)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate workbook: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"actions_%s.xlsx\"", fileStem(snap.HomeName, snap.VisitDate)))
	w.Header().Set("Content-Length", strconv.Itoa(len(xlsx)))

	w.Write(xlsx)
}

// resolveReference sends a scanned report QR code to the editor
func (r *Router) resolveReference(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, "/?report="+mux.Vars(req)["id"], http.StatusFound)
}

// referenceURL is printed as an uppercase QR code; the router lowercases it on the way back
func (r *Router) referenceURL(reportID string) string {
	return strings.ToUpper(strings.TrimRight(r.cfg.BaseURL, "/") + "/r/" + reportID)
}

func fileStem(homeName, visitDate string) string {
	stem := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			return c
		case c == ' ' || c == '_':
			return '_'
		}
		return -1
	}, homeName)
	if stem == "" {
		stem = "report"
	}
	return stem + "_" + visitDate
}
