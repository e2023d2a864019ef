package navsync

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed assets/*.js
var assetFS embed.FS

var (
	trackerTmpl = template.Must(template.ParseFS(assetFS, "assets/tracker.js"))
	hostTmpl    = template.Must(template.ParseFS(assetFS, "assets/host.js"))
)

// HostOptions parameterize the host controller script.
type HostOptions struct {
	EventsURL      string
	FramePrefix    string
	AllowedOrigins []string
}

// TrackerScript renders the script injected into every artifact. Messages are
// posted to targetOrigin ("*" when empty).
func TrackerScript(targetOrigin string) ([]byte, error) {
	if targetOrigin == "" {
		targetOrigin = AnyOrigin
	}
	return render(trackerTmpl, map[string]any{
		"TargetOrigin":    jsLiteral(targetOrigin),
		"AnnounceDelayMS": AnnounceDelay.Milliseconds(),
	})
}

// HostScript renders the reference host controller.
func HostScript(opts HostOptions) ([]byte, error) {
	if opts.FramePrefix == "" {
		opts.FramePrefix = "/slides/"
	}
	return render(hostTmpl, map[string]any{
		"EventsURL":      jsLiteral(opts.EventsURL),
		"FramePrefix":    jsLiteral(opts.FramePrefix),
		"AllowedOrigins": jsLiteral(NewOriginPolicy(opts.AllowedOrigins).Origins()),
	})
}

func render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

// jsLiteral encodes v as a JavaScript literal. encoding/json escapes '<', '>'
// and '&' so the result is safe inside a script element.
func jsLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
