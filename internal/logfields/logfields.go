package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeySlideID    = "slide_id"
	KeySource     = "source"
	KeyArtifact   = "artifact"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyEvent      = "event"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyOrigin     = "origin"
	KeyIndex      = "index"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func SlideID(id string) slog.Attr      { return slog.String(KeySlideID, id) }
func Source(p string) slog.Attr        { return slog.String(KeySource, p) }
func Artifact(p string) slog.Attr      { return slog.String(KeyArtifact, p) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Event(name string) slog.Attr      { return slog.String(KeyEvent, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Origin(o string) slog.Attr        { return slog.String(KeyOrigin, o) }
func Index(i int) slog.Attr            { return slog.Int(KeyIndex, i) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
