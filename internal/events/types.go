package events

import "time"

// Event is implemented by every event published on the bus.
type Event interface {
	EventName() string
}

// ArtifactChanged is published after the watch loop rebuilt or removed one
// deck and refreshed the manifest.
type ArtifactChanged struct {
	SlideID string
	Removed bool
	At      time.Time
}

// ManifestUpdated is published when a pass wrote a manifest whose content
// differs from the previous one.
type ManifestUpdated struct {
	BuildID string
	Entries int
	Digest  string
	At      time.Time
}

func (ArtifactChanged) EventName() string { return "artifact_changed" }
func (ManifestUpdated) EventName() string { return "manifest_updated" }
