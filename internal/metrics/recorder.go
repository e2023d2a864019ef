package metrics

import "time"

// ResultLabel enumerates per-file pipeline results.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// BuildOutcomeLabel enumerates batch pass outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess BuildOutcomeLabel = "success"
	BuildOutcomePartial BuildOutcomeLabel = "partial"
	BuildOutcomeFailed  BuildOutcomeLabel = "failed"
)

// Pipeline stage names used as label values.
const (
	StageConvert  = "convert"
	StageExtract  = "extract"
	StageInject   = "inject"
	StageManifest = "manifest"
	StageSync     = "sync"
)

// Recorder defines observability hooks for the deck pipeline.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncFileResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetManifestEntries(n int)
	IncWatchEvent(op string)
	SetLiveClients(n int)
	IncLiveBroadcast(dropped int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncFileResult(string, ResultLabel)          {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) SetManifestEntries(int)                     {}
func (NoopRecorder) IncWatchEvent(string)                       {}
func (NoopRecorder) SetLiveClients(int)                         {}
func (NoopRecorder) IncLiveBroadcast(int)                       {}

// OutcomeFor classifies a pass from its per-file counts.
func OutcomeFor(built, failed int) BuildOutcomeLabel {
	switch {
	case failed == 0:
		return BuildOutcomeSuccess
	case built > 0:
		return BuildOutcomePartial
	default:
		return BuildOutcomeFailed
	}
}
