package history

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
)

// Recorder appends events for one pass. History is advisory: append failures
// are logged and never fail the pass. A nil store disables recording.
type Recorder struct {
	store   Store
	buildID string
}

// NewRecorder binds store to buildID.
func NewRecorder(store Store, buildID string) *Recorder {
	return &Recorder{store: store, buildID: buildID}
}

// Record appends one typed event.
func (r *Recorder) Record(ctx context.Context, eventType string, payload any) {
	if r == nil || r.store == nil {
		return
	}
	evt, err := NewEvent(r.buildID, eventType, payload)
	if err == nil {
		err = r.store.Append(ctx, evt)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to record history event",
			logfields.BuildID(r.buildID),
			logfields.Event(eventType),
			logfields.Error(err))
	}
}
