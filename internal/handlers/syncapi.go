package handlers

import (
	"net/http"
	"strconv"
)

// triggerSync kicks off a manual full sync. A running attempt makes this a
// no-op; the response says so instead of queuing a second attempt.
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	r.engine.RequestFullSync()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
	})
}

// getSyncStatus exposes engine state for the UI's status bar
func (r *Router) getSyncStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.engine.Status())
}

// listSessions returns the latest sync attempts, newest first
func (r *Router) listSessions(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if s := req.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	sessions, err := r.sessions.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}
