package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stempelwerk/stempelgo/internal/config"
	"github.com/stempelwerk/stempelgo/internal/database"
	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/store"
)

// fakeGateway scripts the backend's side of the protocol
type fakeGateway struct {
	mu        stdsync.Mutex
	syncCalls int
	lastReq   *SyncRequest
	respond   func(req *SyncRequest) (*SyncResponse, error)

	entered chan struct{} // signalled when Sync is reached, if set
	release chan struct{} // Sync blocks on this until closed, if set
}

func (g *fakeGateway) Sync(ctx context.Context, serverURL string, req *SyncRequest) (*SyncResponse, error) {
	g.mu.Lock()
	g.syncCalls++
	g.lastReq = req
	entered, release, respond := g.entered, g.release, g.respond
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return respond(req)
}

func (g *fakeGateway) Heartbeat(ctx context.Context, serverURL string, req *HeartbeatRequest) error {
	return nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.syncCalls
}

func newTestEngine(t *testing.T) (*Engine, *fakeGateway, *database.DB) {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Alter:  true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = db.AutoMigrate(
		&models.AttendanceEvent{},
		&models.DailyUserStatus{},
		&models.TerminalConfig{},
		&models.SyncSession{},
		&models.User{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate schema: %v", err)
	}

	tc := &models.TerminalConfig{
		TerminalID:      "term-1",
		TenantID:        "tenant-1",
		Name:            "Front Door",
		ServerURL:       "http://backend",
		APIKey:          "key",
		APISecret:       "secret",
		SyncIntervalSec: 60,
	}
	if err := store.NewTerminalStore(db.DB).Save(tc); err != nil {
		t.Fatalf("Failed to seed terminal config: %v", err)
	}

	gw := &fakeGateway{}
	return NewEngine(db, gw), gw, db
}

func queueEvents(t *testing.T, db *database.DB, ids ...string) {
	t.Helper()
	events := store.NewEventStore(db.DB)
	for i, id := range ids {
		ev := &models.AttendanceEvent{
			LocalID:    id,
			UserID:     "u1",
			UserName:   "Alice",
			Kind:       models.EventCheckIn,
			Timestamp:  int64(1000 * (i + 1)),
			AuthMethod: models.AuthCard,
		}
		if err := events.Append(ev); err != nil {
			t.Fatalf("Failed to queue event %s: %v", id, err)
		}
	}
}

func TestRunSync_PartialBatch(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a", "ev-b", "ev-c")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{
			Success:         true,
			ServerTimestamp: 9000,
			SyncedRecords:   2,
			FailedRecords:   []FailedRecord{{LocalID: "ev-b", Error: "user unknown on server"}},
		}, nil
	}

	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	events, _ := store.NewEventStore(db.DB).EventsSince(0)
	byID := make(map[string]models.AttendanceEvent, len(events))
	for _, ev := range events {
		byID[ev.LocalID] = ev
	}

	for _, id := range []string{"ev-a", "ev-c"} {
		ev := byID[id]
		if ev.SyncStatus != models.SyncSynced {
			t.Errorf("%s: expected synced, got %s", id, ev.SyncStatus)
		}
		if ev.SyncedAt == nil || *ev.SyncedAt != 9000 {
			t.Errorf("%s: expected syncedAt 9000, got %v", id, ev.SyncedAt)
		}
	}
	if ev := byID["ev-b"]; ev.SyncStatus != models.SyncFailed {
		t.Errorf("ev-b: expected failed, got %s", ev.SyncStatus)
	} else if ev.SyncError == nil || *ev.SyncError != "user unknown on server" {
		t.Errorf("ev-b: expected stored rejection reason, got %v", ev.SyncError)
	}

	// One rejected record does not hold the checkpoint back
	tc, _ := store.NewTerminalStore(db.DB).Get()
	if tc.LastSyncTimestamp != 9000 {
		t.Errorf("Expected checkpoint 9000, got %d", tc.LastSyncTimestamp)
	}

	sessions, _ := store.NewSessionStore(db.DB).Recent(10)
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	sess := sessions[0]
	if sess.Status != models.SessionCompleted {
		t.Errorf("Expected completed session, got %s", sess.Status)
	}
	if sess.EventsSent != 3 || sess.EventsSynced != 2 || sess.EventsFailed != 1 {
		t.Errorf("Session counters wrong: sent=%d synced=%d failed=%d",
			sess.EventsSent, sess.EventsSynced, sess.EventsFailed)
	}
}

func TestRunSync_TransportFailureLeavesQueueUntouched(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a", "ev-b")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return nil, &TransportError{Err: errors.New("connection refused")}
	}

	err := engine.RunSync(SyncFull)
	if err == nil {
		t.Fatal("Expected RunSync to fail")
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Expected TransportError, got %v", err)
	}

	// Everything still queued pending; nothing was marked failed
	queue, _ := store.NewEventStore(db.DB).PendingAndFailed()
	if len(queue) != 2 {
		t.Fatalf("Expected 2 queued events, got %d", len(queue))
	}
	for _, ev := range queue {
		if ev.SyncStatus != models.SyncPending {
			t.Errorf("%s: expected pending, got %s", ev.LocalID, ev.SyncStatus)
		}
	}

	tc, _ := store.NewTerminalStore(db.DB).Get()
	if tc.LastSyncTimestamp != 0 {
		t.Errorf("Checkpoint must not move on transport failure, got %d", tc.LastSyncTimestamp)
	}
	if engine.IsOnline() {
		t.Errorf("Engine should be offline after transport failure")
	}

	sessions, _ := store.NewSessionStore(db.DB).Recent(10)
	if len(sessions) != 1 || sessions[0].Status != models.SessionFailed {
		t.Errorf("Expected one failed session, got %+v", sessions)
	}
}

func TestRunSync_ApplicationError(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{Success: false, Error: "invalid api key"}, nil
	}

	err := engine.RunSync(SyncFull)
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("Expected server rejection error, got %v", err)
	}

	// The response arrived, so the terminal is online; the queue waits for
	// the next tick
	if !engine.IsOnline() {
		t.Errorf("Application error still means the backend is reachable")
	}
	queue, _ := store.NewEventStore(db.DB).PendingAndFailed()
	if len(queue) != 1 || queue[0].SyncStatus != models.SyncPending {
		t.Errorf("Queue should be untouched after application error")
	}
}

func TestRunSync_SingleFlight(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	gw.entered = make(chan struct{}, 1)
	gw.release = make(chan struct{})
	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{Success: true, ServerTimestamp: 1000}, nil
	}

	done := make(chan error, 1)
	go func() { done <- engine.RunSync(SyncIncremental) }()

	<-gw.entered

	// A trigger racing the in-flight attempt is dropped, not queued
	if err := engine.RunSync(SyncFull); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("Expected ErrSyncInProgress, got %v", err)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("In-flight sync failed: %v", err)
	}

	if gw.calls() != 1 {
		t.Errorf("Expected exactly 1 network call, got %d", gw.calls())
	}
	sessions, _ := store.NewSessionStore(db.DB).Recent(10)
	if len(sessions) != 1 {
		t.Errorf("Dropped trigger must not open a session, got %d sessions", len(sessions))
	}
}

func TestRunSync_ConflictUseLocalRejoinsQueue(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{
			Success:         true,
			ServerTimestamp: 5000,
			Conflicts: []ConflictDirective{
				{LocalID: "ev-a", Kind: ConflictTimeMismatch, Resolution: ResolutionUseLocal},
			},
		}, nil
	}

	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	// The directive overrides the earlier synced mark: the event rides again
	queue, _ := store.NewEventStore(db.DB).PendingAndFailed()
	if len(queue) != 1 || queue[0].LocalID != "ev-a" {
		t.Fatalf("Expected ev-a back in the queue, got %+v", queue)
	}
	if queue[0].SyncStatus != models.SyncPending {
		t.Errorf("Expected pending, got %s", queue[0].SyncStatus)
	}
	if queue[0].SyncError != nil {
		t.Errorf("use_local should clear the sync error, got %v", *queue[0].SyncError)
	}
}

func TestRunSync_ConflictUseServerParksEvent(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{
			Success:         true,
			ServerTimestamp: 5000,
			Conflicts: []ConflictDirective{
				{LocalID: "ev-a", Kind: ConflictDuplicate, Resolution: ResolutionUseServer, Detail: "same card within 1s"},
			},
		}, nil
	}

	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	queue, _ := store.NewEventStore(db.DB).PendingAndFailed()
	if len(queue) != 0 {
		t.Errorf("Conflict event must leave the retry queue, got %d", len(queue))
	}

	// The row itself survives with the annotation: audit trail stays intact
	events, _ := store.NewEventStore(db.DB).EventsSince(0)
	if len(events) != 1 {
		t.Fatalf("Event row must not be deleted")
	}
	if events[0].SyncStatus != models.SyncConflict {
		t.Errorf("Expected conflict status, got %s", events[0].SyncStatus)
	}
	if events[0].SyncError == nil || !strings.Contains(*events[0].SyncError, "server version kept") {
		t.Errorf("Expected annotation, got %v", events[0].SyncError)
	}
}

func TestRunSync_AppliesSettingsAndRoster(t *testing.T) {
	engine, gw, db := newTestEngine(t)

	name := "Back Door"
	interval := 120
	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{
			Success:         true,
			ServerTimestamp: 5000,
			Users: []models.User{
				{ID: "u1", Name: "Alice", IsActive: true},
				{ID: "u2", Name: "Bob", IsActive: true},
			},
			Settings: &Settings{Name: &name, SyncIntervalSec: &interval},
		}, nil
	}

	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	tc, _ := store.NewTerminalStore(db.DB).Get()
	if tc.Name != "Back Door" {
		t.Errorf("Expected pushed name, got %s", tc.Name)
	}
	if tc.SyncIntervalSec != 120 {
		t.Errorf("Expected pushed interval 120, got %d", tc.SyncIntervalSec)
	}

	count, _ := store.NewUserStore(db.DB).Count()
	if count != 2 {
		t.Errorf("Expected 2 roster users, got %d", count)
	}

	sessions, _ := store.NewSessionStore(db.DB).Recent(10)
	if sessions[0].UsersReceived != 2 {
		t.Errorf("Session should record 2 users received, got %d", sessions[0].UsersReceived)
	}
}

func TestRunSync_CheckpointNeverMovesBackward(t *testing.T) {
	engine, gw, db := newTestEngine(t)

	serverTS := int64(9000)
	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{Success: true, ServerTimestamp: serverTS}, nil
	}

	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("First sync failed: %v", err)
	}

	// A backend replying with an older clock must not rewind the checkpoint
	serverTS = 4000
	if err := engine.RunSync(SyncFull); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	tc, _ := store.NewTerminalStore(db.DB).Get()
	if tc.LastSyncTimestamp != 9000 {
		t.Errorf("Checkpoint moved backward: %d", tc.LastSyncTimestamp)
	}
}

func TestRunSync_IncrementalRetriesTransportFailures(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	oldDelay := transportRetryDelay
	transportRetryDelay = time.Millisecond
	defer func() { transportRetryDelay = oldDelay }()

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return nil, &TransportError{Err: errors.New("connection refused")}
	}

	err := engine.RunSync(SyncIncremental)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("Expected TransportError, got %v", err)
	}

	// Initial shot plus 3 retries
	if gw.calls() != 1+maxTransportRetries {
		t.Errorf("Expected %d network calls, got %d", 1+maxTransportRetries, gw.calls())
	}
}

func TestRunSync_FullSyncDoesNotRetry(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return nil, &TransportError{Err: errors.New("connection refused")}
	}

	if err := engine.RunSync(SyncFull); err == nil {
		t.Fatal("Expected RunSync to fail")
	}
	if gw.calls() != 1 {
		t.Errorf("Full sync gets one shot, got %d calls", gw.calls())
	}
}

func TestRunSync_RequestCarriesCheckpointAndEnvelope(t *testing.T) {
	engine, gw, db := newTestEngine(t)
	queueEvents(t, db, "ev-a")

	if err := store.NewTerminalStore(db.DB).AdvanceCheckpoint(7777); err != nil {
		t.Fatalf("Failed to seed checkpoint: %v", err)
	}

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		return &SyncResponse{Success: true, ServerTimestamp: 8000}, nil
	}

	if err := engine.RunSync(SyncIncremental); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	req := gw.lastReq
	if req.LastSyncTimestamp != 7777 {
		t.Errorf("Expected checkpoint 7777 in request, got %d", req.LastSyncTimestamp)
	}
	if req.SyncType != SyncIncremental {
		t.Errorf("Expected incremental sync type, got %s", req.SyncType)
	}
	if req.TerminalID != "term-1" || req.APIKey != "key" {
		t.Errorf("Envelope identity wrong: %+v", req.Envelope)
	}
	if req.Signature == "" {
		t.Errorf("Envelope must be signed")
	}
	if len(req.Events) != 1 || req.Events[0].LocalID != "ev-a" {
		t.Errorf("Expected the queued event in the batch, got %+v", req.Events)
	}
}

func TestStart_RefusesUnregistered(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Alter:  true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()
	if err := db.AutoMigrate(&models.TerminalConfig{}); err != nil {
		t.Fatalf("Failed to migrate schema: %v", err)
	}

	engine := NewEngine(db, &fakeGateway{})
	if err := engine.Start(); !errors.Is(err, store.ErrNotRegistered) {
		t.Fatalf("Expected ErrNotRegistered, got %v", err)
	}
}

func TestConflictResolver_UnknownResolution(t *testing.T) {
	_, _, db := newTestEngine(t)
	resolver := NewConflictResolver(store.NewEventStore(db.DB))

	err := resolver.Apply(&ConflictDirective{LocalID: "ev-a", Resolution: "merge"})
	if err == nil || !strings.Contains(err.Error(), "unknown conflict resolution") {
		t.Errorf("Expected unknown resolution error, got %v", err)
	}
}

func TestRunSync_EmptyQueueStillSyncs(t *testing.T) {
	engine, gw, db := newTestEngine(t)

	gw.respond = func(req *SyncRequest) (*SyncResponse, error) {
		if len(req.Events) != 0 {
			return nil, fmt.Errorf("unexpected events in batch: %d", len(req.Events))
		}
		return &SyncResponse{Success: true, ServerTimestamp: 5000}, nil
	}

	// An empty queue still produces an attempt: roster and settings pulls
	// don't depend on having events to push
	if err := engine.RunSync(SyncIncremental); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	tc, _ := store.NewTerminalStore(db.DB).Get()
	if tc.LastSyncTimestamp != 5000 {
		t.Errorf("Checkpoint should advance on empty-queue sync, got %d", tc.LastSyncTimestamp)
	}
}
