package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/retry"
)

// Placeholders substituted in the command template.
const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
	PlaceholderStyle  = "{style}"
)

// CommandConverter runs an external renderer as a subprocess.
//
// The subprocess inherits the standard streams so renderer diagnostics reach
// the operator directly. Each attempt is bounded by Timeout.
type CommandConverter struct {
	Command []string
	Timeout time.Duration
	Retry   retry.Policy

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewCommandConverter builds a converter from the converter config section.
func NewCommandConverter(cfg config.ConverterConfig) *CommandConverter {
	cmd := cfg.Command
	if len(cmd) == 0 {
		cmd = config.DefaultConverterCommand()
	}
	return &CommandConverter{
		Command: cmd,
		Timeout: cfg.Timeout,
		Retry:   retry.FromConfig(cfg.Retry),
	}
}

// Convert renders job.Source into job.Output, retrying transient failures.
func (c *CommandConverter) Convert(ctx context.Context, job Job) error {
	if len(c.Command) == 0 {
		return ferrors.ConfigError("converter command is empty").Build()
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create artifact directory").
			WithContext("path", filepath.Dir(job.Output)).
			Build()
	}

	return c.Retry.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying conversion", logfields.Source(job.Source), slog.Int("attempt", attempt))
		}
		return c.run(ctx, job)
	}, func(err error) bool {
		ce, ok := ferrors.AsClassified(err)
		return ok && ce.CanRetry() && ctx.Err() == nil
	})
}

func (c *CommandConverter) run(ctx context.Context, job Job) error {
	argv := ExpandArgs(c.Command, job)
	if _, err := exec.LookPath(argv[0]); err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrRendererNotFound, err), ferrors.CategoryConversion,
			"renderer executable not found").
			WithContext("source", job.Source).
			WithContext("executable", argv[0]).
			Build()
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	// #nosec G204 -- argv comes from operator configuration
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdout = c.stdout()
	cmd.Stderr = c.stderr()
	cmd.WaitDelay = time.Second

	slog.Debug("Invoking renderer", logfields.Source(job.Source), slog.String("command", strings.Join(argv, " ")))
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ferrors.WrapError(fmt.Errorf("%w after %s", ErrConversionTimeout, c.Timeout), ferrors.CategoryConversion,
				"renderer did not finish in time").
				WithContext("source", job.Source).
				WithContext("timeout", c.Timeout.String()).
				Build()
		}
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrConversionFailed, err), ferrors.CategoryConversion,
			"renderer failed").
			WithContext("source", job.Source).
			Retryable().
			Build()
	}

	if _, statErr := os.Stat(job.Output); statErr != nil {
		return ferrors.WrapError(fmt.Errorf("%w: no artifact at %s", ErrConversionFailed, job.Output), ferrors.CategoryConversion,
			"renderer produced no artifact").
			WithContext("source", job.Source).
			Retryable().
			Build()
	}

	slog.Debug("Renderer finished",
		logfields.Source(job.Source),
		logfields.Artifact(job.Output),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}

func (c *CommandConverter) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *CommandConverter) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}

// ExpandArgs substitutes job values into the command template.
//
// With an empty Style, arguments referencing {style} are dropped together
// with a directly preceding bare flag, so "--css {style}" disappears as a pair.
func ExpandArgs(template []string, job Job) []string {
	r := strings.NewReplacer(
		PlaceholderInput, job.Source,
		PlaceholderOutput, job.Output,
		PlaceholderStyle, job.Style,
	)
	out := make([]string, 0, len(template))
	prevFlag := false
	for _, arg := range template {
		if job.Style == "" && strings.Contains(arg, PlaceholderStyle) {
			if prevFlag {
				out = out[:len(out)-1]
			}
			prevFlag = false
			continue
		}
		prevFlag = strings.HasPrefix(arg, "-") && !strings.ContainsAny(arg, "={")
		out = append(out, r.Replace(arg))
	}
	return out
}
