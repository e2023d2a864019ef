package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the deckbuilder binary.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitConfig     = 7
	ExitNetwork    = 8
	ExitInternal   = 10
	ExitBuild      = 11
	ExitRuntime    = 12
	ExitNotFound   = 13
	ExitProtocol   = 14
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: ExitUsage,
	CategoryConfig:     ExitConfig,
	CategoryNetwork:    ExitNetwork,
	CategoryNotFound:   ExitNotFound,
	CategoryProtocol:   ExitProtocol,
	CategoryRuntime:    ExitRuntime,
	CategoryInternal:   ExitInternal,
}

// CLIErrorAdapter turns command errors into a stderr line and an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to the process exit code. Every pipeline stage shares
// ExitBuild; unclassified errors get ExitGeneral.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	ce, ok := AsClassified(err)
	if !ok {
		return ExitGeneral
	}
	if buildCategories[ce.category] {
		return ExitBuild
	}
	if code, ok := exitCodes[ce.category]; ok {
		return code
	}
	return ExitGeneral
}

// FormatError renders the one-line message printed to stderr. Internal and
// runtime details are hidden unless the adapter is verbose.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	ce, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return "Error: " + ce.Error()
	case ce.category == CategoryInternal || ce.category == CategoryRuntime:
		return "Internal error occurred (use -v for details)"
	default:
		return "Error: " + ce.message
	}
}

// HandleError logs err, prints it and terminates the process. A nil error is
// a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.log(err)
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) log(err error) {
	ce, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Command failed", slog.String("error", err.Error()))
		return
	}
	if !a.verbose && !ce.IsFatal() {
		return
	}
	attrs := []slog.Attr{slog.String("category", string(ce.category))}
	for k, v := range ce.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if ce.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	a.logger.LogAttrs(context.Background(), levelFor(ce.severity), ce.message, attrs...)
}

func levelFor(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
