package history

import (
	"slices"
	"time"
)

// Summary is the read model of one pass.
type Summary struct {
	BuildID    string
	Trigger    string
	Revision   string
	StartedAt  time.Time
	FinishedAt time.Time
	Built      int
	Failed     int
	Entries    int
	Outcome    string
	Failures   []FileFailed
}

// Running reports whether no finish event was recorded.
func (s Summary) Running() bool {
	return s.FinishedAt.IsZero()
}

// Duration returns the pass duration, or zero while running.
func (s Summary) Duration() time.Duration {
	if s.Running() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summarize folds events into per-pass summaries, newest first. Events of
// passes without a start event are ignored.
func Summarize(evts []Event) []Summary {
	byID := map[string]*Summary{}
	var order []string

	for _, e := range evts {
		s := byID[e.BuildID]
		if e.Type == TypeBuildStarted {
			var p BuildStarted
			_ = e.Decode(&p)
			s = &Summary{BuildID: e.BuildID, Trigger: p.Trigger, Revision: p.Revision, StartedAt: e.Timestamp}
			byID[e.BuildID] = s
			order = append(order, e.BuildID)
			continue
		}
		if s == nil {
			continue
		}
		switch e.Type {
		case TypeFileFailed:
			var p FileFailed
			if e.Decode(&p) == nil {
				s.Failures = append(s.Failures, p)
			}
		case TypeManifestWritten:
			var p ManifestWritten
			if e.Decode(&p) == nil {
				s.Entries = p.Entries
			}
		case TypeBuildFinished:
			var p BuildFinished
			if e.Decode(&p) == nil {
				s.Built, s.Failed, s.Outcome = p.Built, p.Failed, p.Outcome
			}
			s.FinishedAt = e.Timestamp
		}
	}

	out := make([]Summary, 0, len(order))
	for _, id := range slices.Backward(order) {
		out = append(out, *byID[id])
	}
	return out
}
