package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// listEvents returns events stamped after ?since= (unix millis), newest first
func (r *Router) listEvents(w http.ResponseWriter, req *http.Request) {
	since := int64(0)
	if s := req.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid since timestamp")
			return
		}
		since = n
	}

	events, err := r.events.EventsSince(since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// purgeEvents deletes synced events beyond the retention window. Pending,
// failed and conflict events are never purged.
func (r *Router) purgeEvents(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Days <= 0 {
		respondError(w, http.StatusBadRequest, "days must be positive")
		return
	}

	deleted, err := r.events.PurgeSyncedOlderThan(body.Days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
