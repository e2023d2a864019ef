package commands

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	Dir string `short:"d" help:"Override publish.dir"`
}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if s.Dir != "" {
		cfg.Publish.Dir = s.Dir
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	return p.publish(ctx)
}
