package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stempelwerk/stempelgo/internal/config"
	"github.com/stempelwerk/stempelgo/internal/database"
	"github.com/stempelwerk/stempelgo/internal/middleware"
	"github.com/stempelwerk/stempelgo/internal/store"
	syncengine "github.com/stempelwerk/stempelgo/internal/sync"
	"github.com/stempelwerk/stempelgo/internal/tracker"
	"github.com/stempelwerk/stempelgo/internal/websocket"
)

// Router wraps the mux router and the terminal's collaborators
type Router struct {
	*mux.Router
	db       *database.DB
	cfg      *config.Config
	tracker  *tracker.Tracker
	engine   *syncengine.Engine
	hub      *websocket.Hub
	events   *store.EventStore
	users    *store.UserStore
	terminal *store.TerminalStore
	sessions *store.SessionStore
}

// NewRouter creates the local HTTP API the terminal UI talks to
func NewRouter(db *database.DB, cfg *config.Config, trk *tracker.Tracker, engine *syncengine.Engine, hub *websocket.Hub) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		cfg:      cfg,
		tracker:  trk,
		engine:   engine,
		hub:      hub,
		events:   store.NewEventStore(db.DB),
		users:    store.NewUserStore(db.DB),
		terminal: store.NewTerminalStore(db.DB),
		sessions: store.NewSessionStore(db.DB),
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Stamping (the terminal UI's primary surface, no auth: the physical
	// terminal is the trust boundary)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stamp", r.handleStamp).Methods("POST")
	api.HandleFunc("/stamp/checkin", r.handleCheckIn).Methods("POST")
	api.HandleFunc("/stamp/checkout", r.handleCheckOut).Methods("POST")
	api.HandleFunc("/stamp/break-start", r.handleBreakStart).Methods("POST")
	api.HandleFunc("/stamp/break-end", r.handleBreakEnd).Methods("POST")
	api.HandleFunc("/status/{userId}", r.getUserStatus).Methods("GET")
	api.HandleFunc("/users", r.listUsers).Methods("GET")
	api.HandleFunc("/sync/status", r.getSyncStatus).Methods("GET")

	// Admin login
	r.HandleFunc("/api/admin/login", r.adminLogin).Methods("POST")

	// Admin surface (protected)
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.Auth(cfg.JWTSecret))
	admin.HandleFunc("/register", r.registerTerminal).Methods("POST")
	admin.HandleFunc("/events", r.listEvents).Methods("GET")
	admin.HandleFunc("/events/purge", r.purgeEvents).Methods("POST")
	admin.HandleFunc("/sync", r.triggerSync).Methods("POST")
	admin.HandleFunc("/sync/sessions", r.listSessions).Methods("GET")
	admin.HandleFunc("/report/day.pdf", r.dayReportPDF).Methods("GET")
	admin.HandleFunc("/register/qr.png", r.pairingQR).Methods("GET")

	// Live stamp feed for attached displays
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(hub, w, req)
	})

	return r
}

// healthCheck returns the health status of the terminal
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"online": r.engine.IsOnline(),
	})
}

// muxVar reads one path variable
func muxVar(req *http.Request, name string) string {
	return mux.Vars(req)[name]
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
