package tracker

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stempelwerk/stempelgo/internal/database"
	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/store"
	"gorm.io/gorm"
)

// Tracker decides whether a stamp is a check-in or a check-out, appends the
// event and updates the user's daily status. Event append and status update
// run in one transaction: either both land or the caller retries the stamp.
type Tracker struct {
	db *database.DB

	// Online is consulted to snapshot connectivity into new events.
	// The sync engine owns the flag; nil means "assume offline".
	Online func() bool

	now func() time.Time
}

// New creates a new tracker
func New(db *database.DB) *Tracker {
	return &Tracker{
		db:  db,
		now: time.Now,
	}
}

// SetClock overrides the tracker's clock (tests)
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// RecordCheckIn stamps a check-in and opens a work session
func (t *Tracker) RecordCheckIn(userID, userName string, method models.AuthMethod, cardHash *string) (*models.AttendanceEvent, error) {
	return t.record(userID, userName, models.EventCheckIn, method, cardHash)
}

// RecordCheckOut stamps a check-out, closes the session and accumulates
// worked minutes
func (t *Tracker) RecordCheckOut(userID, userName string, method models.AuthMethod, cardHash *string) (*models.AttendanceEvent, error) {
	return t.record(userID, userName, models.EventCheckOut, method, cardHash)
}

// RecordBreakStart stamps the start of a break; session timing is untouched
func (t *Tracker) RecordBreakStart(userID, userName string, method models.AuthMethod, cardHash *string) (*models.AttendanceEvent, error) {
	return t.record(userID, userName, models.EventBreakStart, method, cardHash)
}

// RecordBreakEnd stamps the end of a break
func (t *Tracker) RecordBreakEnd(userID, userName string, method models.AuthMethod, cardHash *string) (*models.AttendanceEvent, error) {
	return t.record(userID, userName, models.EventBreakEnd, method, cardHash)
}

// Toggle performs the primary stamping action: not checked in -> check-in,
// otherwise check-out. The decision ignores break state on purpose: a user
// on break who toggles is checked out, not resumed.
func (t *Tracker) Toggle(userID, userName string, method models.AuthMethod, cardHash *string) (models.EventKind, *models.AttendanceEvent, error) {
	st, err := t.GetStatus(userID)
	if err != nil {
		return "", nil, err
	}

	if !st.IsCheckedIn {
		ev, err := t.RecordCheckIn(userID, userName, method, cardHash)
		return models.EventCheckIn, ev, err
	}
	ev, err := t.RecordCheckOut(userID, userName, method, cardHash)
	return models.EventCheckOut, ev, err
}

// GetStatus returns the user's daily status with the rollover rule applied
func (t *Tracker) GetStatus(userID string) (*models.DailyUserStatus, error) {
	return store.NewStatusStore(t.db.DB).Get(userID, t.now())
}

func (t *Tracker) record(userID, userName string, kind models.EventKind, method models.AuthMethod, cardHash *string) (*models.AttendanceEvent, error) {
	now := t.now()
	ts := now.UnixMilli()

	offline := true
	if t.Online != nil {
		offline = !t.Online()
	}

	ev := &models.AttendanceEvent{
		LocalID:        uuid.NewString(),
		UserID:         userID,
		UserName:       userName,
		Kind:           kind,
		Timestamp:      ts,
		AuthMethod:     method,
		CardHash:       cardHash,
		CreatedOffline: offline,
		SyncStatus:     models.SyncPending,
	}

	err := t.db.Transaction(func(tx *gorm.DB) error {
		statuses := store.NewStatusStore(tx)
		st, err := statuses.Get(userID, now)
		if err != nil {
			return err
		}

		switch kind {
		case models.EventCheckIn:
			st.IsCheckedIn = true
			st.LastCheckIn = &ts
			st.CurrentSessionStart = &ts
		case models.EventCheckOut:
			st.TotalMinutesToday += sessionMinutes(st.CurrentSessionStart, ts)
			st.IsCheckedIn = false
			st.IsOnBreak = false
			st.LastCheckOut = &ts
			st.CurrentSessionStart = nil
		case models.EventBreakStart:
			st.IsOnBreak = true
		case models.EventBreakEnd:
			st.IsOnBreak = false
		default:
			return fmt.Errorf("unknown event kind: %s", kind)
		}

		if err := store.NewEventStore(tx).Append(ev); err != nil {
			return err
		}
		return statuses.Save(st)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🕒 Stamped %s for %s (%s)", kind, userID, method)
	return ev, nil
}

// sessionMinutes rounds the open session length to whole minutes; 0 when no
// session is open
func sessionMinutes(start *int64, endMillis int64) int {
	if start == nil {
		return 0
	}
	return int(math.Round(float64(endMillis-*start) / 60000.0))
}
