package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stempelwerk/stempelgo/internal/database"
	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/store"
	"github.com/stempelwerk/stempelgo/internal/terminalauth"
	"gorm.io/datatypes"
)

const (
	heartbeatInterval   = 30 * time.Second
	maxTransportRetries = 3
)

var transportRetryDelay = 10 * time.Second

// ErrSyncInProgress is the no-op result of a trigger arriving while another
// attempt is running. The trigger is dropped, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Engine drains the pending event queue against the backend on a periodic
// timer and keeps a fixed 30s heartbeat alongside it. At most one attempt
// runs system-wide; the single-flight boolean is the only guard needed
// because this process is the store's only writer.
type Engine struct {
	mu sync.RWMutex

	db       *database.DB
	gateway  Gateway
	events   *store.EventStore
	sessions *store.SessionStore
	terminal *store.TerminalStore
	users    *store.UserStore
	resolver *ConflictResolver

	isRunning      bool
	syncInProgress bool
	isOnline       bool
	lastSync       time.Time
	failedAttempts int // consecutive transport-failed attempts; full sync resets

	stopChan     chan struct{}
	intervalChan chan time.Duration
}

// NewEngine creates a sync engine over the given store and transport
func NewEngine(db *database.DB, gateway Gateway) *Engine {
	e := &Engine{
		db:       db,
		gateway:  gateway,
		events:   store.NewEventStore(db.DB),
		sessions: store.NewSessionStore(db.DB),
		terminal: store.NewTerminalStore(db.DB),
		users:    store.NewUserStore(db.DB),
	}
	e.resolver = NewConflictResolver(e.events)
	return e
}

// Start launches the periodic sync loop and the heartbeat loop. It refuses
// to start while the terminal is unregistered; stamping is unaffected and
// keeps recording offline.
func (e *Engine) Start() error {
	tc, err := e.terminal.Get()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("sync engine already running")
	}
	e.isRunning = true
	e.stopChan = make(chan struct{})
	e.intervalChan = make(chan time.Duration, 1)

	log.Println("🔄 Sync Engine starting...")

	go e.syncLoop(tc.EffectiveSyncInterval())
	go e.heartbeatLoop()

	log.Println("✅ Sync Engine started")
	return nil
}

// Stop clears both timers. An attempt already in flight is not aborted; its
// response is still applied and the single-flight guard releases through the
// normal completion path.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isRunning {
		return
	}
	log.Println("🛑 Stopping Sync Engine...")
	e.isRunning = false
	close(e.stopChan)
}

// RequestFullSync triggers a full sync in the background. A running attempt
// makes this a dropped no-op.
func (e *Engine) RequestFullSync() {
	go func() {
		if err := e.RunSync(SyncFull); err != nil && !errors.Is(err, ErrSyncInProgress) {
			log.Printf("⚠️ Full sync failed: %v", err)
		}
	}()
}

// IsOnline reports the last observed connectivity truth. Both the sync path
// and the heartbeat write it; last writer wins.
func (e *Engine) IsOnline() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isOnline
}

// Status returns the current engine state for diagnostics
func (e *Engine) Status() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]interface{}{
		"isRunning":      e.isRunning,
		"syncInProgress": e.syncInProgress,
		"isOnline":       e.isOnline,
		"lastSync":       e.lastSync,
		"failedAttempts": e.failedAttempts,
	}
}

// syncLoop drives incremental attempts. Interval changes pushed by the
// backend reset the ticker without restarting the engine.
func (e *Engine) syncLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.RunSync(SyncIncremental); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("⚠️ Incremental sync failed: %v", err)
			}
		case next := <-e.intervalChan:
			log.Printf("🔄 Sync interval changed to %v", next)
			ticker.Reset(next)
		case <-e.stopChan:
			return
		}
	}
}

// heartbeatLoop pings the backend every 30 seconds. It never reads or
// writes the event queue and runs outside the single-flight guard.
func (e *Engine) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.heartbeat()
		case <-e.stopChan:
			return
		}
	}
}

func (e *Engine) heartbeat() {
	tc, err := e.terminal.Get()
	if err != nil {
		return
	}

	pending, _ := e.events.CountPending()
	totalUsers, _ := e.users.Count()
	startOfDay := time.Now()
	startOfDay = time.Date(startOfDay.Year(), startOfDay.Month(), startOfDay.Day(), 0, 0, 0, 0, startOfDay.Location())
	todayCount, _ := e.events.CountSince(startOfDay.UnixMilli())

	req := &HeartbeatRequest{
		Envelope:     e.envelope(tc),
		PendingCount: pending,
		TotalUsers:   totalUsers,
		TodayCount:   todayCount,
	}

	if err := e.gateway.Heartbeat(context.Background(), tc.ServerURL, req); err != nil {
		e.setOnline(false)
		return
	}
	e.setOnline(true)
}

// RunSync performs one sync attempt. Callers racing an in-progress attempt
// get ErrSyncInProgress and nothing else happens.
func (e *Engine) RunSync(syncType SyncType) error {
	e.mu.Lock()
	if e.syncInProgress {
		e.mu.Unlock()
		log.Printf("⏳ Sync already in progress, dropping %s trigger", syncType)
		return ErrSyncInProgress
	}
	e.syncInProgress = true
	if syncType == SyncFull {
		e.failedAttempts = 0
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncInProgress = false
		e.mu.Unlock()
	}()

	tc, err := e.terminal.Get()
	if err != nil {
		return err
	}

	sess, err := e.sessions.Open(string(syncType))
	if err != nil {
		return err
	}

	queue, err := e.events.PendingAndFailed()
	if err != nil {
		_ = e.sessions.Finalize(sess, models.SessionFailed, err.Error())
		return err
	}
	sess.EventsSent = len(queue)

	req := &SyncRequest{
		Envelope:          e.envelope(tc),
		LastSyncTimestamp: tc.LastSyncTimestamp,
		SyncType:          syncType,
		Events:            queue,
	}

	log.Printf("🔄 Sync attempt (%s): %d events queued", syncType, len(queue))

	resp, err := e.sendWithRetry(tc, req, syncType)
	if err != nil {
		// Transport failure: queue and checkpoint stay untouched, resending
		// is safe because the backend deduplicates by localId.
		e.setOnline(false)
		e.mu.Lock()
		e.failedAttempts++
		e.mu.Unlock()
		_ = e.sessions.Finalize(sess, models.SessionFailed, err.Error())
		return err
	}
	e.setOnline(true)

	if !resp.Success {
		// Application error: the attempt fails, nothing retries before the
		// next scheduled tick.
		_ = e.sessions.Finalize(sess, models.SessionFailed, "server rejected sync: "+resp.Error)
		return fmt.Errorf("server rejected sync: %s", resp.Error)
	}

	if err := e.applyResponse(tc, queue, resp, sess); err != nil {
		_ = e.sessions.Finalize(sess, models.SessionFailed, err.Error())
		return err
	}

	// Checkpoint advances only after everything above landed, and never
	// moves backward.
	if err := e.terminal.AdvanceCheckpoint(resp.ServerTimestamp); err != nil {
		_ = e.sessions.Finalize(sess, models.SessionFailed, err.Error())
		return err
	}

	e.mu.Lock()
	e.lastSync = time.Now()
	e.failedAttempts = 0
	e.mu.Unlock()

	log.Printf("✅ Sync completed: %d synced, %d failed, %d conflicts",
		sess.EventsSynced, sess.EventsFailed, sess.ConflictsFound)
	return e.sessions.Finalize(sess, models.SessionCompleted, "")
}

// sendWithRetry runs the network round-trip. Incremental attempts retry a
// transport failure up to 3 times with a fixed 10s delay; full attempts get
// a single shot and wait for the caller.
func (e *Engine) sendWithRetry(tc *models.TerminalConfig, req *SyncRequest, syncType SyncType) (*SyncResponse, error) {
	resp, err := e.gateway.Sync(context.Background(), tc.ServerURL, req)
	if err == nil {
		return resp, nil
	}

	var transport *TransportError
	if !errors.As(err, &transport) || syncType != SyncIncremental {
		return nil, err
	}

	for attempt := 1; attempt <= maxTransportRetries; attempt++ {
		log.Printf("📡 Transport failure, retry %d/%d in %v", attempt, maxTransportRetries, transportRetryDelay)
		select {
		case <-time.After(transportRetryDelay):
		case <-e.stopChan:
			return nil, err
		}

		req.Envelope = e.envelope(tc)
		resp, err = e.gateway.Sync(context.Background(), tc.ServerURL, req)
		if err == nil {
			return resp, nil
		}
		if !errors.As(err, &transport) {
			return nil, err
		}
	}
	return nil, err
}

// applyResponse executes steps 6-9 of an attempt: per-event statuses, roster,
// settings, conflicts.
func (e *Engine) applyResponse(tc *models.TerminalConfig, sent []models.AttendanceEvent, resp *SyncResponse, sess *models.SyncSession) error {
	failedByID := make(map[string]string, len(resp.FailedRecords))
	for _, fr := range resp.FailedRecords {
		failedByID[fr.LocalID] = fr.Error
	}

	// Accepted events commit independently of failures elsewhere in the
	// batch; nothing is rolled back wholesale.
	for _, ev := range sent {
		if msg, ok := failedByID[ev.LocalID]; ok {
			errMsg := msg
			if err := e.events.UpdateSyncStatus(ev.LocalID, models.SyncFailed, nil, &errMsg); err != nil {
				return err
			}
			sess.EventsFailed++
			continue
		}
		syncedAt := resp.ServerTimestamp
		if err := e.events.UpdateSyncStatus(ev.LocalID, models.SyncSynced, &syncedAt, nil); err != nil {
			return err
		}
		sess.EventsSynced++
	}

	if len(resp.Users) > 0 {
		if err := e.users.Upsert(resp.Users); err != nil {
			return err
		}
		sess.UsersReceived = len(resp.Users)
		log.Printf("👥 Roster updated: %d users", len(resp.Users))
	}

	if resp.Settings != nil {
		if err := e.applySettings(tc, resp.Settings); err != nil {
			return err
		}
	}

	for i := range resp.Conflicts {
		if err := e.resolver.Apply(&resp.Conflicts[i]); err != nil {
			return err
		}
		sess.ConflictsFound++
	}

	return nil
}

// applySettings overwrites local config with server-pushed values and, when
// the sync interval moved, resets the periodic timer.
func (e *Engine) applySettings(tc *models.TerminalConfig, s *Settings) error {
	intervalChanged := false

	if s.Name != nil {
		tc.Name = *s.Name
	}
	if s.SyncIntervalSec != nil && *s.SyncIntervalSec != tc.SyncIntervalSec {
		tc.SyncIntervalSec = *s.SyncIntervalSec
		intervalChanged = true
	}
	if len(s.Flags) > 0 {
		tc.Flags = datatypes.JSON(s.Flags)
	}

	if err := e.terminal.Save(tc); err != nil {
		return err
	}

	if intervalChanged {
		e.mu.RLock()
		running := e.isRunning
		e.mu.RUnlock()
		if running {
			select {
			case e.intervalChan <- tc.EffectiveSyncInterval():
			default:
			}
		}
	}
	return nil
}

func (e *Engine) setOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isOnline != online {
		if online {
			log.Println("🌐 Backend reachable, terminal online")
		} else {
			log.Println("📴 Backend unreachable, terminal offline")
		}
	}
	e.isOnline = online
}

func (e *Engine) envelope(tc *models.TerminalConfig) Envelope {
	ts := time.Now().UnixMilli()
	return Envelope{
		TerminalID: tc.TerminalID,
		APIKey:     tc.APIKey,
		Timestamp:  ts,
		Signature:  terminalauth.Sign(tc.TerminalID, ts, tc.APISecret),
	}
}
