package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (r *Router) syncStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.engine.GetSyncStatus(req.Context()))
}

// pendingDrafts lists local drafts the client should offer to sync on reconnect
func (r *Router) pendingDrafts(w http.ResponseWriter, req *http.Request) {
	drafts, err := r.engine.PendingDrafts(req.Context(), orgID(req))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, drafts)
}

func (r *Router) pushReport(w http.ResponseWriter, req *http.Request) {
	res, err := r.sessions.Push(req.Context(), orgID(req), mux.Vars(req)["reportId"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) listConflicts(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	conflicts, err := r.engine.Conflicts(req.Context(), orgID(req), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conflicts)
}
