// Package history persists per-pass and per-file build events and folds them
// into summaries for the history command.
package history

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

// Event types.
const (
	TypeBuildStarted    = "build_started"
	TypeFileBuilt       = "file_built"
	TypeFileFailed      = "file_failed"
	TypeManifestWritten = "manifest_written"
	TypeBuildFinished   = "build_finished"
)

// Event is one stored history record.
type Event struct {
	ID        int64
	BuildID   string
	Type      string
	Timestamp time.Time
	Payload   json.RawMessage
}

// BuildStarted opens a pass.
type BuildStarted struct {
	Trigger  string `json:"trigger"`
	Revision string `json:"revision,omitempty"`
	Sources  int    `json:"sources"`
}

// FileBuilt records a deck that went through the whole pipeline.
type FileBuilt struct {
	SlideID    string `json:"slide_id"`
	Source     string `json:"source"`
	DurationMS int64  `json:"duration_ms"`
}

// FileFailed records a deck excluded from the manifest.
type FileFailed struct {
	SlideID string `json:"slide_id"`
	Source  string `json:"source"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// ManifestWritten records the catalog written by a pass.
type ManifestWritten struct {
	Entries int    `json:"entries"`
	Digest  string `json:"digest"`
}

// BuildFinished closes a pass.
type BuildFinished struct {
	Built      int    `json:"built"`
	Failed     int    `json:"failed"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewEvent encodes payload into an event of the given type.
func NewEvent(buildID, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal history payload").
			WithContext("build_id", buildID).
			WithContext("type", eventType).
			Build()
	}
	return Event{
		BuildID:   buildID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
