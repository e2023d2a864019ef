package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/git"
	"git.home.luguber.info/inful/deckbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of passes to show" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return ferrors.ConfigError("build history is disabled (set history.enabled)").Build()
	}

	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open build history").
			WithContext("path", cfg.History.Path).
			Build()
	}
	defer func() { _ = store.Close() }()

	summaries, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to read build history").Build()
	}
	return writeHistory(os.Stdout, summaries)
}

func writeHistory(w io.Writer, summaries []history.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No builds recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tTRIGGER\tOUTCOME\tBUILT\tFAILED\tENTRIES\tDURATION\tREVISION")
	for _, s := range summaries {
		outcome := s.Outcome
		duration := s.Duration().Round(time.Millisecond).String()
		if s.Running() {
			outcome, duration = "running", "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			s.StartedAt.Format(time.DateTime), s.Trigger, outcome, s.Built, s.Failed, s.Entries, duration,
			git.ShortHash(s.Revision))
		for _, f := range s.Failures {
			_, _ = fmt.Fprintf(tw, "\t  %s\t%s\t%s\t\t\t\t\n", f.SlideID, f.Stage, f.Error)
		}
	}
	return tw.Flush()
}
