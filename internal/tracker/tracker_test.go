package tracker

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
)

const script = "window.__deck=1;"

func TestInject_SingleMarker(t *testing.T) {
	content := []byte("<html><head></head><body><section>1</section></body></html>")

	out, err := Inject(content, []byte(script))
	require.NoError(t, err)
	require.Equal(t,
		"<html><head></head><body><section>1</section><script>window.__deck=1;</script></body></html>",
		string(out))

	// Removing the inserted element restores the input byte for byte.
	restored := bytes.Replace(out, []byte("<script>"+script+"</script>"), nil, 1)
	require.Equal(t, content, restored)
}

func TestInject_FirstMarkerOnly(t *testing.T) {
	content := []byte("<body>a</body><body>b</body>")
	out, err := Inject(content, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "<body>a<script>x</script></body><body>b</body>", string(out))
}

func TestInject_CaseSensitiveMarker(t *testing.T) {
	_, err := Inject([]byte("<HTML><BODY>deck</BODY></HTML>"), []byte(script))
	require.ErrorIs(t, err, ErrInjectionFailed)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryInjection))
}

func TestInject_NoMarker(t *testing.T) {
	_, err := Inject([]byte("<html><body>truncated"), []byte(script))
	require.ErrorIs(t, err, ErrInjectionFailed)
}

func TestInject_ScriptEndsUpInsideBody(t *testing.T) {
	content := []byte("<!DOCTYPE html><html><head><title>t</title></head><body><div>slide</div></body></html>")
	out, err := Inject(content, []byte(script))
	require.NoError(t, err)

	doc, err := html.Parse(bytes.NewReader(out))
	require.NoError(t, err)

	var scriptParent string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && n.Parent != nil {
			scriptParent = n.Parent.Data
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.Equal(t, "body", scriptParent)
}

func TestInjectFile(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, ".staging", "intro.html")
	final := filepath.Join(dir, "intro.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o750))
	require.NoError(t, os.WriteFile(staged, []byte("<body>deck</body>"), 0o600))

	require.NoError(t, InjectFile(staged, final, []byte(script)))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	require.Equal(t, "<body>deck<script>window.__deck=1;</script></body>", string(data))
	require.NoFileExists(t, staged)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestInjectFile_FailureLeavesPreviousArtifact(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "staged.html")
	final := filepath.Join(dir, "intro.html")
	require.NoError(t, os.WriteFile(final, []byte("previous"), 0o600))
	require.NoError(t, os.WriteFile(staged, []byte("<html>no body close"), 0o600))

	err := InjectFile(staged, final, []byte(script))
	require.ErrorIs(t, err, ErrInjectionFailed)

	data, readErr := os.ReadFile(final)
	require.NoError(t, readErr)
	require.Equal(t, "previous", string(data))
}

func TestInjectFile_MissingStaged(t *testing.T) {
	err := InjectFile(filepath.Join(t.TempDir(), "missing.html"), filepath.Join(t.TempDir(), "x.html"), nil)
	require.ErrorIs(t, err, ErrInjectionFailed)
}
