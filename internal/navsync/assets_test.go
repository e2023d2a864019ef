package navsync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerScript(t *testing.T) {
	js, err := TrackerScript("")
	require.NoError(t, err)
	s := string(js)
	require.Contains(t, s, `var TARGET_ORIGIN = "*"`)
	require.Contains(t, s, "var ANNOUNCE_DELAY_MS = 100")
	require.Contains(t, s, "slidechange")
	require.NotContains(t, s, "{{")
	require.NotContains(t, s, "</script>", "script must be embeddable inline")

	js, err = TrackerScript("https://host.example")
	require.NoError(t, err)
	require.Contains(t, string(js), `var TARGET_ORIGIN = "https://host.example"`)
}

func TestTrackerScript_EscapesOrigin(t *testing.T) {
	js, err := TrackerScript(`</script><script>alert(1)`)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(js), "</script>"))
}

func TestHostScript(t *testing.T) {
	js, err := HostScript(HostOptions{
		EventsURL:      "/events",
		AllowedOrigins: []string{"https://deck.example"},
	})
	require.NoError(t, err)
	s := string(js)
	require.Contains(t, s, `var EVENTS_URL = "/events"`)
	require.Contains(t, s, `var FRAME_PREFIX = "/slides/"`)
	require.Contains(t, s, `var ALLOWED_ORIGINS = ["https://deck.example"]`)
	require.Contains(t, s, "slide-content-update")
	require.Contains(t, s, "replaceState")
	require.NotContains(t, s, "{{")
}
