package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Publish     bool `short:"p" help:"Publish into the public directory after building (also enabled by publish.enabled)"`
	Concurrency int  `short:"j" help:"Override build.concurrency"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if b.Concurrency > 0 {
		cfg.Build.Concurrency = b.Concurrency
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.builder.Build(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}

	if b.Publish || cfg.Publish.Enabled {
		return p.publish(ctx)
	}
	return nil
}

// printReport writes the user-facing pass summary to stdout.
func printReport(r *build.Report) {
	fmt.Printf("Build %s: %s (%d built, %d failed, %s)\n",
		r.BuildID, r.Status, r.Built, r.Failed, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failures() {
		fmt.Printf("  failed %s at %s: %v\n", f.Source, f.Stage, f.Err)
	}
	for _, slug := range r.Removed {
		fmt.Printf("  removed orphan %s\n", slug)
	}
}
