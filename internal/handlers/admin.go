package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/report"
	"github.com/stempelwerk/stempelgo/internal/store"
	"github.com/stempelwerk/stempelgo/internal/utils"
)

// adminLogin exchanges the admin password for a bearer token
func (r *Router) adminLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stored := r.cfg.Terminal.AdminPassword
	if stored == "" {
		respondError(w, http.StatusForbidden, "Admin access is not configured")
		return
	}

	ok := false
	if strings.HasPrefix(stored, "$2") {
		ok = utils.CheckPasswordHash(body.Password, stored)
	} else {
		ok = body.Password == stored
	}
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := utils.GenerateAdminToken(r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// RegisterRequest installs the terminal's identity
type RegisterRequest struct {
	TerminalID      string `json:"terminalId"`
	TenantID        string `json:"tenantId"`
	Name            string `json:"name"`
	ServerURL       string `json:"serverUrl"`
	APIKey          string `json:"apiKey"`
	APISecret       string `json:"apiSecret"`
	SyncIntervalSec int    `json:"syncIntervalSec"`
}

// registerTerminal writes the TerminalConfig row, starts the sync engine and
// kicks off a full sync. Until this happens the engine refuses to run while
// stamping keeps recording offline.
func (r *Router) registerTerminal(w http.ResponseWriter, req *http.Request) {
	var body RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.TerminalID == "" || body.ServerURL == "" || body.APISecret == "" {
		respondError(w, http.StatusBadRequest, "terminalId, serverUrl and apiSecret are required")
		return
	}

	tc, err := r.terminal.Get()
	if err != nil {
		tc = &models.TerminalConfig{}
	}
	tc.TerminalID = body.TerminalID
	tc.TenantID = body.TenantID
	tc.Name = body.Name
	tc.ServerURL = body.ServerURL
	tc.APIKey = body.APIKey
	tc.APISecret = body.APISecret
	if body.SyncIntervalSec > 0 {
		tc.SyncIntervalSec = body.SyncIntervalSec
	}

	if err := r.terminal.Save(tc); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := r.engine.Start(); err != nil && err.Error() != "sync engine already running" {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.engine.RequestFullSync()

	respondJSON(w, http.StatusOK, tc)
}

// dayReportPDF exports today's (or ?date=YYYY-MM-DD) events as a PDF sheet
func (r *Router) dayReportPDF(w http.ResponseWriter, req *http.Request) {
	date := req.URL.Query().Get("date")
	day := time.Now()
	if date != "" {
		parsed, err := time.ParseInLocation(store.DateFormat, date, time.Local)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	all, err := r.events.EventsSince(start.UnixMilli() - 1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	end := start.AddDate(0, 0, 1).UnixMilli()
	dayEvents := make([]models.AttendanceEvent, 0, len(all))
	// EventsSince is newest first; the sheet reads top-down chronologically
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Timestamp < end {
			dayEvents = append(dayEvents, all[i])
		}
	}

	name := "Terminal"
	if tc, err := r.terminal.Get(); err == nil {
		name = tc.Name
	}

	pdf, err := report.GenerateDaySheet(report.DaySheet{
		TerminalName: name,
		Date:         start.Format(store.DateFormat),
		Events:       dayEvents,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(pdf)
}

// pairingQR renders the terminal pairing code for the admin app
func (r *Router) pairingQR(w http.ResponseWriter, req *http.Request) {
	tc, err := r.terminal.Get()
	if err != nil {
		respondError(w, http.StatusNotFound, "Terminal is not registered")
		return
	}

	size := 256
	if s := req.URL.Query().Get("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}

	png, err := report.GeneratePairingQR(report.PairingPayload{
		TerminalID: tc.TerminalID,
		Name:       tc.Name,
		TenantID:   tc.TenantID,
	}, size)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
