package converter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/retry"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
}

func shellConverter(script string, timeout time.Duration) *CommandConverter {
	return &CommandConverter{
		Command: []string{"/bin/sh", "-c", script, "renderer", PlaceholderInput, PlaceholderOutput},
		Timeout: timeout,
		Retry:   retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 1),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}
}

func newJob(t *testing.T) Job {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "intro.md")
	require.NoError(t, os.WriteFile(src, []byte("# Intro\n"), 0o600))
	return Job{Source: src, Output: filepath.Join(dir, "out", "intro.html")}
}

func TestCommandConverter_Success(t *testing.T) {
	requireShell(t)
	job := newJob(t)
	c := shellConverter(`printf '<html><body>%s</body></html>' "$(cat "$1")" > "$2"`, time.Minute)

	require.NoError(t, c.Convert(context.Background(), job))

	data, err := os.ReadFile(job.Output)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Intro")

	// Idempotent: a second run overwrites the artifact.
	require.NoError(t, c.Convert(context.Background(), job))
	again, err := os.ReadFile(job.Output)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestCommandConverter_FailureIsRetriedThenReported(t *testing.T) {
	requireShell(t)
	job := newJob(t)
	counter := filepath.Join(t.TempDir(), "attempts")
	c := shellConverter(`echo x >> "`+counter+`"; echo boom >&2; exit 3`, time.Minute)

	err := c.Convert(context.Background(), job)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConversionFailed)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConversion))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	src, _ := ce.Context().GetString("source")
	require.Equal(t, job.Source, src)

	attempts, err := os.ReadFile(counter)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(attempts), "x"))
	require.Contains(t, c.Stderr.(*bytes.Buffer).String(), "boom")
}

func TestCommandConverter_Timeout(t *testing.T) {
	requireShell(t)
	job := newJob(t)
	counter := filepath.Join(t.TempDir(), "attempts")
	c := shellConverter(`echo x >> "`+counter+`"; exec sleep 5`, 100*time.Millisecond)

	start := time.Now()
	err := c.Convert(context.Background(), job)
	require.ErrorIs(t, err, ErrConversionTimeout)
	require.NotErrorIs(t, err, ErrConversionFailed)
	require.Less(t, time.Since(start), 4*time.Second)

	attempts, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	require.Equal(t, 1, strings.Count(string(attempts), "x"), "timeouts are not retried")
}

func TestCommandConverter_ZeroExitWithoutArtifact(t *testing.T) {
	requireShell(t)
	job := newJob(t)
	c := shellConverter(`exit 0`, time.Minute)
	c.Retry = retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 0)

	err := c.Convert(context.Background(), job)
	require.ErrorIs(t, err, ErrConversionFailed)
}

func TestCommandConverter_RendererNotFound(t *testing.T) {
	job := newJob(t)
	c := &CommandConverter{
		Command: []string{"definitely-not-a-renderer-binary", PlaceholderInput, PlaceholderOutput},
		Retry:   retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3),
	}

	err := c.Convert(context.Background(), job)
	require.ErrorIs(t, err, ErrRendererNotFound)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConversion))
}

func TestNewCommandConverter_Defaults(t *testing.T) {
	c := NewCommandConverter(config.Default().Converter)
	require.Equal(t, config.DefaultConverterCommand(), c.Command)
	require.Equal(t, 2*time.Minute, c.Timeout)
	require.Equal(t, 1, c.Retry.MaxRetries)
}

func TestExpandArgs(t *testing.T) {
	tmpl := config.DefaultConverterCommand()

	t.Run("with style", func(t *testing.T) {
		got := ExpandArgs(tmpl, Job{Source: "slides/a.md", Output: "dist/a.html", Style: "theme.css"})
		require.Equal(t, []string{
			"npx", "@marp-team/marp-cli@latest", "slides/a.md",
			"--output", "dist/a.html", "--html", "--css", "theme.css", "--no-stdin",
		}, got)
	})

	t.Run("without style drops flag pair", func(t *testing.T) {
		got := ExpandArgs(tmpl, Job{Source: "slides/a.md", Output: "dist/a.html"})
		require.Equal(t, []string{
			"npx", "@marp-team/marp-cli@latest", "slides/a.md",
			"--output", "dist/a.html", "--html", "--no-stdin",
		}, got)
	})

	t.Run("inline style flag", func(t *testing.T) {
		custom := []string{"marp", "--theme={style}", "{input}", "-o", "{output}"}
		require.Equal(t, []string{"marp", "a.md", "-o", "a.html"},
			ExpandArgs(custom, Job{Source: "a.md", Output: "a.html"}))
		require.Equal(t, []string{"marp", "--theme=t.css", "a.md", "-o", "a.html"},
			ExpandArgs(custom, Job{Source: "a.md", Output: "a.html", Style: "t.css"}))
	})
}

func TestFuncAdapter(t *testing.T) {
	var got Job
	var c Converter = Func(func(_ context.Context, job Job) error {
		got = job
		return nil
	})
	require.NoError(t, c.Convert(context.Background(), Job{Source: "a.md"}))
	require.Equal(t, "a.md", got.Source)
}
