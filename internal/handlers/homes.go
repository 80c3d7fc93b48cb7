package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
)

func (r *Router) listHomes(w http.ResponseWriter, req *http.Request) {
	var homes []models.Home
	if err := r.db.WithContext(req.Context()).Scopes(database.ForOrganization(orgID(req))).Order("name").Find(&homes).Error; err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, homes)
}

func (r *Router) createHome(w http.ResponseWriter, req *http.Request) {
	var home models.Home
	if !decode(w, req, &home) {
		return
	}
	if home.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if home.SettingType != "" && !report.SettingType(home.SettingType).Valid() {
		respondError(w, http.StatusBadRequest, "unknown setting type")
		return
	}
	home.ID = ""
	home.OrganizationID = orgID(req)
	if err := r.db.WithContext(req.Context()).Create(&home).Error; err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, home)
}

// home loads a home of the caller's organization, writing 404 when missing
func (r *Router) home(w http.ResponseWriter, req *http.Request) (*models.Home, bool) {
	var home models.Home
	err := r.db.WithContext(req.Context()).
		Scopes(database.ForOrganization(orgID(req))).
		Where("id = ?", mux.Vars(req)["id"]).
		Take(&home).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "home not found")
		return nil, false
	}
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return &home, true
}

func (r *Router) getHome(w http.ResponseWriter, req *http.Request) {
	if home, ok := r.home(w, req); ok {
		respondJSON(w, http.StatusOK, home)
	}
}

// getHomeActions returns the running action tracker kept for a home
func (r *Router) getHomeActions(w http.ResponseWriter, req *http.Request) {
	home, ok := r.home(w, req)
	if !ok {
		return
	}
	actions, err := r.store.LoadActions(req.Context(), home.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}

func (r *Router) putHomeActions(w http.ResponseWriter, req *http.Request) {
	home, ok := r.home(w, req)
	if !ok {
		return
	}
	var actions []report.Action
	if !decode(w, req, &actions) {
		return
	}
	for _, a := range actions {
		if !a.Status.Valid() {
			respondError(w, http.StatusBadRequest, "invalid action status")
			return
		}
	}
	if err := r.store.SaveActions(req.Context(), home.ID, actions); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}

func (r *Router) listVisits(w http.ResponseWriter, req *http.Request) {
	q := r.db.WithContext(req.Context()).Scopes(database.ForOrganization(orgID(req)))
	if homeID := req.URL.Query().Get("homeId"); homeID != "" {
		q = q.Where("home_id = ?", homeID)
	}
	var visits []models.Visit
	if err := q.Order("visit_date DESC").Find(&visits).Error; err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, visits)
}

func (r *Router) createVisit(w http.ResponseWriter, req *http.Request) {
	var visit models.Visit
	if !decode(w, req, &visit) {
		return
	}
	if _, err := time.Parse(report.DateLayout, visit.VisitDate); err != nil {
		respondError(w, http.StatusBadRequest, "visitDate must be YYYY-MM-DD")
		return
	}
	if visit.VisitType != "" && !report.VisitType(visit.VisitType).Valid() {
		respondError(w, http.StatusBadRequest, "unknown visit type")
		return
	}

	var count int64
	r.db.WithContext(req.Context()).Model(&models.Home{}).
		Scopes(database.ForOrganization(orgID(req))).
		Where("id = ?", visit.HomeID).
		Count(&count)
	if count == 0 {
		respondError(w, http.StatusNotFound, "home not found")
		return
	}

	visit.ID = ""
	visit.OrganizationID = orgID(req)
	if p, ok := principal(req); ok && visit.VisitorID == "" {
		visit.VisitorID = p.UserID
	}
	if err := r.db.WithContext(req.Context()).Create(&visit).Error; err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, visit)
}
