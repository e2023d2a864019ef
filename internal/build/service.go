package build

import (
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/manifest"
)

// Status represents the outcome of a pass.
type Status string

const (
	// StatusSuccess indicates every discovered deck was built.
	StatusSuccess Status = "success"

	// StatusPartial indicates some decks failed and were left out of the manifest.
	StatusPartial Status = "partial"

	// StatusFailed indicates no deck was built or the manifest could not be written.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the pass was interrupted before the manifest was written.
	StatusCancelled Status = "cancelled"
)

// IsSuccess returns true if the manifest was written and lists every deck.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// Report contains the outcome of a full pass.
type Report struct {
	BuildID   string
	Status    Status
	StartTime time.Time
	Duration  time.Duration
	Built     int
	Failed    int
	Removed   []string
	Files     []FileResult
	Manifest  *manifest.Manifest
}

// FileResult is the outcome of one per-file pipeline.
type FileResult struct {
	Slug     string
	Source   string
	Record   manifest.Record
	Stage    string
	Err      error
	Duration time.Duration
}

// OK reports whether the deck made it into the manifest.
func (r FileResult) OK() bool { return r.Err == nil }

// Failures returns the failed per-file results in discovery order.
func (r *Report) Failures() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

func statusFor(built, failed int) Status {
	switch {
	case failed == 0:
		return StatusSuccess
	case built == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
