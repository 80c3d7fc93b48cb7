package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
)

const maxImageBytes = 10 << 20

// ReportView is a report as returned to the editor
type ReportView struct {
	Report              *report.ReportData `json:"report"`
	Status              string             `json:"status"`
	Unlocked            bool               `json:"unlocked"`
	ChecklistCompletion int                `json:"checklistCompletion"`
	LastSaved           *time.Time         `json:"lastSaved,omitempty"`
}

// ReportListItem is one row of the report list
type ReportListItem struct {
	ID          string     `json:"id"`
	HomeID      string     `json:"homeId"`
	HomeName    string     `json:"homeName"`
	VisitDate   string     `json:"visitDate"`
	SettingType string     `json:"settingType"`
	Status      string     `json:"status"`
	Version     int64      `json:"version"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (r *Router) listReports(w http.ResponseWriter, req *http.Request) {
	q := r.db.WithContext(req.Context()).Scopes(database.ForOrganization(orgID(req)))
	if homeID := req.URL.Query().Get("homeId"); homeID != "" {
		q = q.Where("home_id = ?", homeID)
	}
	if status := req.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var rows []models.Report
	if err := q.Order("updated_at DESC").Find(&rows).Error; err != nil {
		respondServiceError(w, err)
		return
	}
	items := make([]ReportListItem, 0, len(rows))
	for _, row := range rows {
		data := row.Data.Data()
		items = append(items, ReportListItem{
			ID:          row.ID,
			HomeID:      row.HomeID,
			HomeName:    data.HomeName,
			VisitDate:   data.VisitDate,
			SettingType: string(data.SettingType),
			Status:      row.Status,
			Version:     row.Version,
			UpdatedAt:   row.UpdatedAt,
			SubmittedAt: row.SubmittedAt,
		})
	}
	respondJSON(w, http.StatusOK, items)
}

func (r *Router) createReport(w http.ResponseWriter, req *http.Request) {
	var body struct {
		HomeID    string `json:"homeId"`
		VisitDate string `json:"visitDate"`
	}
	if !decode(w, req, &body) {
		return
	}
	s, err := r.sessions.Create(req.Context(), orgID(req), body.HomeID, body.VisitDate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ReportView{
		Report:              snap,
		Status:              s.Status(),
		Unlocked:            snap.Unlocked(),
		ChecklistCompletion: snap.ChecklistCompletion(),
	})
}

func (r *Router) getReport(w http.ResponseWriter, req *http.Request) {
	s, err := r.sessions.Open(req.Context(), orgID(req), mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	view := ReportView{
		Report:              snap,
		Status:              s.Status(),
		Unlocked:            snap.Unlocked(),
		ChecklistCompletion: snap.ChecklistCompletion(),
	}
	if saved := s.LastSaved(); !saved.IsZero() {
		view.LastSaved = &saved
	}
	respondJSON(w, http.StatusOK, view)
}

// closeReport flushes the report and releases its editing session
func (r *Router) closeReport(w http.ResponseWriter, req *http.Request) {
	if err := r.sessions.Close(req.Context(), orgID(req), mux.Vars(req)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutate applies fn to the report named in the path and responds with the result
func (r *Router) mutate(w http.ResponseWriter, req *http.Request, fn func(*report.ReportData) error) {
	data, err := r.sessions.Mutate(req.Context(), orgID(req), mux.Vars(req)["id"], fn)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (r *Router) patchDetails(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Home  *report.HomeDetails  `json:"home"`
		Visit *report.VisitDetails `json:"visit"`
	}
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		if body.Home != nil {
			d.SetHomeDetails(*body.Home)
		}
		if body.Visit != nil {
			return d.SetVisitDetails(*body.Visit)
		}
		return nil
	})
}

func (r *Router) putSettingType(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SettingType report.SettingType `json:"settingType"`
	}
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetSettingType(body.SettingType)
	})
}

func (r *Router) putFormType(w http.ResponseWriter, req *http.Request) {
	var body struct {
		FormType report.FormType `json:"formType"`
	}
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetFormType(body.FormType)
	})
}

func (r *Router) putSection(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if !decode(w, req, &body) {
		return
	}
	sectionID := mux.Vars(req)["sectionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.UpdateSectionContent(sectionID, body.Content)
	})
}

func (r *Router) putRecording(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Recording bool `json:"recording"`
	}
	if !decode(w, req, &body) {
		return
	}
	sectionID := mux.Vars(req)["sectionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetSectionRecording(sectionID, body.Recording)
	})
}

// postImage attaches a photo to a section for the lifetime of the session.
// Images are not persisted; they only reach the PDF export.
func (r *Router) postImage(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxImageBytes+1<<20)
	if err := req.ParseMultipartForm(maxImageBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read image")
		return
	}
	img := report.Image{
		Name:        header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
	sectionID := mux.Vars(req)["sectionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.AttachImage(sectionID, img)
	})
}

func (r *Router) postAction(w http.ResponseWriter, req *http.Request) {
	var body report.Action
	if !decode(w, req, &body) {
		return
	}
	var created report.Action
	data, err := r.sessions.Mutate(req.Context(), orgID(req), mux.Vars(req)["id"], func(d *report.ReportData) error {
		var err error
		created, err = d.AddAction(body)
		return err
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"action": created,
		"report": data,
	})
}

func (r *Router) putAction(w http.ResponseWriter, req *http.Request) {
	var body report.Action
	if !decode(w, req, &body) {
		return
	}
	actionID := mux.Vars(req)["actionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.UpdateAction(actionID, body)
	})
}

func (r *Router) putActionStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Status   report.ActionStatus `json:"status"`
		Progress string              `json:"progress"`
	}
	if !decode(w, req, &body) {
		return
	}
	actionID := mux.Vars(req)["actionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetActionStatus(actionID, body.Status, body.Progress)
	})
}

func (r *Router) deleteAction(w http.ResponseWriter, req *http.Request) {
	actionID := mux.Vars(req)["actionId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.RemoveAction(actionID)
	})
}

func (r *Router) postFeedback(w http.ResponseWriter, req *http.Request) {
	switch mux.Vars(req)["kind"] {
	case "child":
		var body report.ChildFeedback
		if !decode(w, req, &body) {
			return
		}
		r.mutate(w, req, func(d *report.ReportData) error {
			d.AddChildFeedback(body)
			return nil
		})
	case "staff":
		var body report.StaffFeedback
		if !decode(w, req, &body) {
			return
		}
		r.mutate(w, req, func(d *report.ReportData) error {
			d.AddStaffFeedback(body)
			return nil
		})
	default:
		respondError(w, http.StatusBadRequest, "feedback kind must be child or staff")
	}
}

func (r *Router) putFeedbackIncluded(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Include bool `json:"include"`
	}
	if !decode(w, req, &body) {
		return
	}
	feedbackID := mux.Vars(req)["feedbackId"]
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetFeedbackIncluded(feedbackID, body.Include)
	})
}

func (r *Router) putDocument(w http.ResponseWriter, req *http.Request) {
	var body report.DocumentChecklistItem
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetDocument(body.Name, body.Checked, body.Notes)
	})
}

func (r *Router) putAssessment(w http.ResponseWriter, req *http.Request) {
	var body report.Assessment
	if !decode(w, req, &body) {
		return
	}
	standard := report.Standard(mux.Vars(req)["standard"])
	r.mutate(w, req, func(d *report.ReportData) error {
		return d.SetAssessment(standard, body)
	})
}

func (r *Router) putFollowUp(w http.ResponseWriter, req *http.Request) {
	var body report.FollowUp
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		d.SetFollowUp(body)
		return nil
	})
}

func (r *Router) putSignOff(w http.ResponseWriter, req *http.Request) {
	var body report.SignOff
	if !decode(w, req, &body) {
		return
	}
	r.mutate(w, req, func(d *report.ReportData) error {
		d.SetSignOff(body, time.Now())
		return nil
	})
}

func (r *Router) getChecklist(w http.ResponseWriter, req *http.Request) {
	snap, ok := r.snapshot(w, req)
	if !ok {
		return
	}
	checked, total := snap.ChecklistCounts()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":      snap.DocumentChecklist,
		"checked":    checked,
		"total":      total,
		"completion": snap.ChecklistCompletion(),
	})
}

// postSummary returns the visit narrative and action plan, polished by the
// model when one is configured
func (r *Router) postSummary(w http.ResponseWriter, req *http.Request) {
	snap, ok := r.snapshot(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, r.summarizer.Summarize(req.Context(), snap))
}

func (r *Router) saveReport(w http.ResponseWriter, req *http.Request) {
	res, err := r.sessions.Save(req.Context(), orgID(req), mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) submitReport(w http.ResponseWriter, req *http.Request) {
	res, err := r.sessions.Submit(req.Context(), orgID(req), mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) listVersions(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if _, err := r.sessions.Open(req.Context(), orgID(req), id); err != nil {
		respondServiceError(w, err)
		return
	}
	versions, err := r.store.ListVersions(req.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

// snapshot opens the report named in the path and returns a copy of it
func (r *Router) snapshot(w http.ResponseWriter, req *http.Request) (*report.ReportData, bool) {
	s, err := r.sessions.Open(req.Context(), orgID(req), mux.Vars(req)["id"])
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	snap, err := s.Snapshot()
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return snap, true
}

func (r *Router) getTemplate(w http.ResponseWriter, req *http.Request) {
	tpl, err := report.TemplateFor(report.SettingType(mux.Vars(req)["settingType"]))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}
