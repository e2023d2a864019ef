package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration(StageConvert, 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncFileResult(StageInject, ResultFailed)
	pr.IncBuildOutcome(BuildOutcomePartial)
	pr.SetManifestEntries(3)
	pr.IncWatchEvent("write")
	pr.SetLiveClients(2)
	pr.IncLiveBroadcast(1)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["deckbuilder_stage_duration_seconds"])
	require.True(t, names["deckbuilder_file_results_total"])
	require.True(t, names["deckbuilder_manifest_entries"])
	require.True(t, names["deckbuilder_live_dropped_clients_total"])
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetManifestEntries(5)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "deckbuilder_manifest_entries 5")
}

func TestOutcomeFor(t *testing.T) {
	require.Equal(t, BuildOutcomeSuccess, OutcomeFor(3, 0))
	require.Equal(t, BuildOutcomeSuccess, OutcomeFor(0, 0))
	require.Equal(t, BuildOutcomePartial, OutcomeFor(2, 1))
	require.Equal(t, BuildOutcomeFailed, OutcomeFor(0, 2))
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncBuildOutcome(BuildOutcomeSuccess)
	r.IncLiveBroadcast(3)
}
