package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xelth-com/reg44go/internal/ai"
	"github.com/xelth-com/reg44go/internal/buildinfo"
	"github.com/xelth-com/reg44go/internal/config"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/middleware"
	"github.com/xelth-com/reg44go/internal/report"
	"github.com/xelth-com/reg44go/internal/session"
	rsync "github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/websocket"
)

// Dependencies are the services the HTTP layer drives
type Dependencies struct {
	Config     *config.Config
	DB         *database.DB
	Store      *localstore.Store
	Engine     *rsync.SyncEngine
	Sessions   *session.Manager
	Hub        *websocket.Hub
	Summarizer *ai.Summarizer
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	db         *database.DB
	cfg        *config.Config
	store      *localstore.Store
	engine     *rsync.SyncEngine
	sessions   *session.Manager
	hub        *websocket.Hub
	summarizer *ai.Summarizer
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Dependencies) *Router {
	r := &Router{
		Router:     mux.NewRouter(),
		db:         deps.DB,
		cfg:        deps.Config,
		store:      deps.Store,
		engine:     deps.Engine,
		sessions:   deps.Sessions,
		hub:        deps.Hub,
		summarizer: deps.Summarizer,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Printed QR codes resolve here
	r.HandleFunc("/r/{id}", r.resolveReference).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Websocket change feed
	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(middleware.AuthMiddleware(r.cfg.JWTSecret))
	ws.HandleFunc("", r.serveWs)

	// API routes
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(r.cfg.JWTSecret))

	api.HandleFunc("/templates/{settingType}", r.getTemplate).Methods("GET")

	// Homes and visits
	api.HandleFunc("/homes", r.listHomes).Methods("GET")
	api.HandleFunc("/homes", r.createHome).Methods("POST")
	api.HandleFunc("/homes/{id}", r.getHome).Methods("GET")
	api.HandleFunc("/homes/{id}/actions", r.getHomeActions).Methods("GET")
	api.HandleFunc("/homes/{id}/actions", r.putHomeActions).Methods("PUT")
	api.HandleFunc("/visits", r.listVisits).Methods("GET")
	api.HandleFunc("/visits", r.createVisit).Methods("POST")

	// Reports
	reports := api.PathPrefix("/reports").Subrouter()
	reports.HandleFunc("", r.listReports).Methods("GET")
	reports.HandleFunc("", r.createReport).Methods("POST")
	reports.HandleFunc("/{id}", r.getReport).Methods("GET")
	reports.HandleFunc("/{id}/session", r.closeReport).Methods("DELETE")
	reports.HandleFunc("/{id}/details", r.patchDetails).Methods("PATCH")
	reports.HandleFunc("/{id}/setting-type", r.putSettingType).Methods("PUT")
	reports.HandleFunc("/{id}/form-type", r.putFormType).Methods("PUT")
	reports.HandleFunc("/{id}/sections/{sectionId}", r.putSection).Methods("PUT")
	reports.HandleFunc("/{id}/sections/{sectionId}/recording", r.putRecording).Methods("PUT")
	reports.HandleFunc("/{id}/sections/{sectionId}/images", r.postImage).Methods("POST")
	reports.HandleFunc("/{id}/actions", r.postAction).Methods("POST")
	reports.HandleFunc("/{id}/actions/{actionId}", r.putAction).Methods("PUT")
	reports.HandleFunc("/{id}/actions/{actionId}", r.deleteAction).Methods("DELETE")
	reports.HandleFunc("/{id}/actions/{actionId}/status", r.putActionStatus).Methods("PUT")
	reports.HandleFunc("/{id}/feedback/{kind}", r.postFeedback).Methods("POST")
	reports.HandleFunc("/{id}/feedback/{feedbackId}/include", r.putFeedbackIncluded).Methods("PUT")
	reports.HandleFunc("/{id}/documents", r.putDocument).Methods("PUT")
	reports.HandleFunc("/{id}/assessments/{standard}", r.putAssessment).Methods("PUT")
	reports.HandleFunc("/{id}/follow-up", r.putFollowUp).Methods("PUT")
	reports.HandleFunc("/{id}/sign-off", r.putSignOff).Methods("PUT")
	reports.HandleFunc("/{id}/checklist", r.getChecklist).Methods("GET")
	reports.HandleFunc("/{id}/summary", r.postSummary).Methods("POST")
	reports.HandleFunc("/{id}/save", r.saveReport).Methods("POST")
	reports.HandleFunc("/{id}/submit", r.submitReport).Methods("POST")
	reports.HandleFunc("/{id}/versions", r.listVersions).Methods("GET")
	reports.HandleFunc("/{id}/pdf", r.exportPDF).Methods("GET")
	reports.HandleFunc("/{id}/actions.xlsx", r.exportActions).Methods("GET")

	// Sync
	syncRoutes := api.PathPrefix("/sync").Subrouter()
	syncRoutes.HandleFunc("/status", r.syncStatus).Methods("GET")
	syncRoutes.HandleFunc("/pending", r.pendingDrafts).Methods("GET")
	syncRoutes.HandleFunc("/push/{reportId}", r.pushReport).Methods("POST")
	syncRoutes.HandleFunc("/conflicts", r.listConflicts).Methods("GET")

	// Static files
	if r.cfg.FrontendDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(r.cfg.FrontendDir)))
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	if r.engine != nil {
		if err := r.engine.Ping(req.Context()); err != nil {
			status = "offline"
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"remote": status,
	})
}

// getStatus returns build and runtime status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "running",
		"build":    buildinfo.Info(),
		"sessions": len(r.sessions.Active()),
	})
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	p, _ := middleware.PrincipalFrom(req.Context())
	websocket.ServeWs(r.hub, w, req, p.OrganizationID, p.UserID)
}

// orgID returns the caller's organization; AuthMiddleware guarantees it is set
func orgID(req *http.Request) string {
	p, _ := middleware.PrincipalFrom(req.Context())
	return p.OrganizationID
}

func decode(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	var validation *report.ValidationError
	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  err.Error(),
			"fields": validation.Fields,
		})
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrHomeNotFound),
		errors.Is(err, localstore.ErrNotFound),
		errors.Is(err, report.ErrSectionNotFound),
		errors.Is(err, report.ErrActionNotFound),
		errors.Is(err, report.ErrFeedbackNotFound),
		errors.Is(err, report.ErrDocumentNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSubmitted),
		errors.Is(err, rsync.ErrNothingToPush):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrUnknownSettingType),
		errors.Is(err, report.ErrInvalidValue):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, localstore.ErrStorage):
		zap.L().Error("❌ Local storage failure", zap.Error(err))
		respondError(w, http.StatusInsufficientStorage, err.Error())
	case errors.Is(err, rsync.ErrRemoteUnavailable),
		errors.Is(err, session.ErrShutdown):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("❌ Request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func principal(req *http.Request) (middleware.Principal, bool) {
	return middleware.PrincipalFrom(req.Context())
}
