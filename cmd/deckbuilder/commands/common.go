package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/deckbuilder/internal/config"
)

// LogLevelEnv overrides the configured log level.
const LogLevelEnv = "DECKBUILDER_LOG_LEVEL"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"deckbuilder.yaml" env:"DECKBUILDER_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text|json); overrides logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build every deck, write the manifest and optionally publish"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild decks on change and push live updates"`
	Sync    SyncCmd    `cmd:"" help:"Publish built artifacts and the manifest into the public directory"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	History HistoryCmd `cmd:"" help:"Show recent build passes"`
}

// AfterApply runs after flag parsing; set up logging from flags and
// environment until the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = c.setupLogging(config.LoggingConfig{})
	return nil
}

// LoadConfig loads the configuration file, falling back to defaults when it
// does not exist, and applies its logging settings.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, found, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = c.setupLogging(cfg.Logging)
	if !found {
		g.Logger.Info("No configuration file, using defaults", slog.String("path", c.Config))
	}
	return cfg, nil
}

// setupLogging installs the default logger. Precedence for the level:
// --verbose, then DECKBUILDER_LOG_LEVEL, then logging.level.
func (c *CLI) setupLogging(lc config.LoggingConfig) *slog.Logger {
	level := config.NormalizeLogLevel(string(lc.Level))
	if env := os.Getenv(LogLevelEnv); env != "" {
		level = config.NormalizeLogLevel(env)
	}
	if c.Verbose {
		level = config.LogLevelDebug
	}
	format := config.NormalizeLogFormat(string(lc.Format))
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}

	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
