package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/terminalauth"
)

// StampRequest is the payload of every stamping endpoint. Identification is
// one of: a raw card identifier, userId + PIN, or a bare userId (manual).
type StampRequest struct {
	UserID string `json:"userId,omitempty"`
	Card   string `json:"card,omitempty"`
	Pin    string `json:"pin,omitempty"`
}

// StampResponse reports what the stamp turned into
type StampResponse struct {
	Kind   models.EventKind        `json:"kind"`
	Event  *models.AttendanceEvent `json:"event"`
	Status *models.DailyUserStatus `json:"status"`
}

type resolvedUser struct {
	user     *models.User
	method   models.AuthMethod
	cardHash *string
}

// resolveUser turns the request's credentials into a roster user
func (r *Router) resolveUser(req *StampRequest) (*resolvedUser, error) {
	salt := r.cfg.Terminal.CardSalt

	if req.Card != "" {
		hash := terminalauth.HashCard(req.Card, salt)
		u, err := r.users.FindByCardHash(hash)
		if err != nil {
			return nil, err
		}
		return &resolvedUser{user: u, method: models.AuthCard, cardHash: &hash}, nil
	}

	if req.Pin != "" {
		u, err := r.users.FindByPinHash(req.UserID, terminalauth.HashPin(req.Pin, salt))
		if err != nil {
			return nil, err
		}
		return &resolvedUser{user: u, method: models.AuthPin}, nil
	}

	u, err := r.users.Get(req.UserID)
	if err != nil {
		return nil, err
	}
	return &resolvedUser{user: u, method: models.AuthManual}, nil
}

// handleStamp is the primary stamping action: toggle between check-in and
// check-out based on the user's current status.
func (r *Router) handleStamp(w http.ResponseWriter, req *http.Request) {
	var body StampRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resolved, err := r.resolveUser(&body)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	kind, ev, err := r.tracker.Toggle(resolved.user.ID, resolved.user.Name, resolved.method, resolved.cardHash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.finishStamp(w, kind, ev)
}

func (r *Router) handleCheckIn(w http.ResponseWriter, req *http.Request) {
	r.handleExplicit(w, req, models.EventCheckIn)
}

func (r *Router) handleCheckOut(w http.ResponseWriter, req *http.Request) {
	r.handleExplicit(w, req, models.EventCheckOut)
}

func (r *Router) handleBreakStart(w http.ResponseWriter, req *http.Request) {
	r.handleExplicit(w, req, models.EventBreakStart)
}

func (r *Router) handleBreakEnd(w http.ResponseWriter, req *http.Request) {
	r.handleExplicit(w, req, models.EventBreakEnd)
}

func (r *Router) handleExplicit(w http.ResponseWriter, req *http.Request, kind models.EventKind) {
	var body StampRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resolved, err := r.resolveUser(&body)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var ev *models.AttendanceEvent
	switch kind {
	case models.EventCheckIn:
		ev, err = r.tracker.RecordCheckIn(resolved.user.ID, resolved.user.Name, resolved.method, resolved.cardHash)
	case models.EventCheckOut:
		ev, err = r.tracker.RecordCheckOut(resolved.user.ID, resolved.user.Name, resolved.method, resolved.cardHash)
	case models.EventBreakStart:
		ev, err = r.tracker.RecordBreakStart(resolved.user.ID, resolved.user.Name, resolved.method, resolved.cardHash)
	case models.EventBreakEnd:
		ev, err = r.tracker.RecordBreakEnd(resolved.user.ID, resolved.user.Name, resolved.method, resolved.cardHash)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.finishStamp(w, kind, ev)
}

// finishStamp broadcasts the fresh event to attached displays and answers
// with the user's updated status
func (r *Router) finishStamp(w http.ResponseWriter, kind models.EventKind, ev *models.AttendanceEvent) {
	st, err := r.tracker.GetStatus(ev.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.hub.Broadcast(map[string]interface{}{
		"type":  "STAMP",
		"kind":  kind,
		"event": ev,
	})

	respondJSON(w, http.StatusOK, StampResponse{Kind: kind, Event: ev, Status: st})
}

// getUserStatus returns the user's daily status with rollover applied
func (r *Router) getUserStatus(w http.ResponseWriter, req *http.Request) {
	userID := muxVar(req, "userId")
	st, err := r.tracker.GetStatus(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// listUsers returns the cached roster for the terminal's user picker
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.users.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, users)
}
