package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stempelwerk/stempelgo/internal/config"
	"github.com/stempelwerk/stempelgo/internal/database"
	"github.com/stempelwerk/stempelgo/internal/handlers"
	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/store"
	syncengine "github.com/stempelwerk/stempelgo/internal/sync"
	"github.com/stempelwerk/stempelgo/internal/tracker"
	"github.com/stempelwerk/stempelgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (SQLite by default, PostgreSQL for fleets)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.AttendanceEvent{},
		&models.DailyUserStatus{},
		&models.TerminalConfig{},
		&models.SyncSession{},
		&models.User{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Seed the terminal identity from env on first boot
	seedTerminal(db, cfg)

	// 5. Sync engine + tracker
	engine := syncengine.NewEngine(db, syncengine.NewHTTPGateway())
	trk := tracker.New(db)
	trk.Online = engine.IsOnline

	if err := engine.Start(); err != nil {
		if errors.Is(err, store.ErrNotRegistered) {
			log.Println("⚠️ Terminal not registered yet; sync stays off, stamping keeps recording offline")
		} else {
			log.Printf("⚠️ Sync Engine: Failed to start: %v", err)
		}
	}

	// 6. Websocket hub for attached displays
	hub := websocket.NewHub()
	go hub.Run()

	// 7. HTTP router
	router := handlers.NewRouter(db, cfg, trk, engine, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🟢 Terminal API listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("⚠️ Database close error: %v", err)
	}
	log.Println("✅ Shutdown complete")
}

// seedTerminal installs the TerminalConfig row from environment defaults when
// the terminal boots unregistered and the env carries a full identity.
func seedTerminal(db *database.DB, cfg *config.Config) {
	terminals := store.NewTerminalStore(db.DB)
	if _, err := terminals.Get(); err == nil {
		return
	}

	t := cfg.Terminal
	if t.TerminalID == "" || t.ServerURL == "" || t.APISecret == "" {
		return
	}

	tc := &models.TerminalConfig{
		TerminalID:      t.TerminalID,
		TenantID:        t.TenantID,
		Name:            t.Name,
		ServerURL:       t.ServerURL,
		APIKey:          t.APIKey,
		APISecret:       t.APISecret,
		SyncIntervalSec: t.SyncIntervalSec,
	}
	if err := terminals.Save(tc); err != nil {
		log.Printf("⚠️ Failed to seed terminal config: %v", err)
		return
	}
	log.Printf("✅ Terminal %s registered from environment", t.TerminalID)
}
