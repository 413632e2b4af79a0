package sync

import (
	"fmt"
	"log"

	"github.com/stempelwerk/stempelgo/internal/models"
	"github.com/stempelwerk/stempelgo/internal/store"
)

// ConflictResolver applies server conflict directives to the local log.
// Whatever the resolution, the event row survives: the audit trail is never
// destroyed by conflict handling.
type ConflictResolver struct {
	events *store.EventStore
}

// NewConflictResolver creates a new conflict resolver
func NewConflictResolver(events *store.EventStore) *ConflictResolver {
	return &ConflictResolver{events: events}
}

// Apply settles one directive.
//   - use_server: the event becomes Conflict, annotated, never resubmitted
//   - use_local: the event returns to Pending and rides the next attempt
//   - manual: the event becomes Conflict awaiting an administrator
func (r *ConflictResolver) Apply(c *ConflictDirective) error {
	switch c.Resolution {
	case ResolutionUseServer:
		ann := fmt.Sprintf("conflict (%s): server version kept", c.Kind)
		if c.Detail != "" {
			ann += ": " + c.Detail
		}
		log.Printf("⚖️ Conflict on %s resolved for server (%s)", c.LocalID, c.Kind)
		return r.events.UpdateSyncStatus(c.LocalID, models.SyncConflict, nil, &ann)

	case ResolutionUseLocal:
		log.Printf("⚖️ Conflict on %s resolved for local copy, resubmitting", c.LocalID)
		return r.events.UpdateSyncStatus(c.LocalID, models.SyncPending, nil, nil)

	case ResolutionManual:
		ann := fmt.Sprintf("conflict (%s): manual resolution required", c.Kind)
		if c.Detail != "" {
			ann += ": " + c.Detail
		}
		log.Printf("⚖️ Conflict on %s needs manual resolution (%s)", c.LocalID, c.Kind)
		return r.events.UpdateSyncStatus(c.LocalID, models.SyncConflict, nil, &ann)

	default:
		return fmt.Errorf("unknown conflict resolution: %s", c.Resolution)
	}
}
