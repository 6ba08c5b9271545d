package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/batchmon/internal/config"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"batchmon.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Demo    DemoCmd    `cmd:"" help:"Run a monitored demo job"`
	History HistoryCmd `cmd:"" help:"List recent job executions from the run journal"`
}

// AfterApply runs after flag parsing; a text logger is used until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(observability.NewLogger(os.Stderr, level, false))
	return nil
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and reconfigures logging from it. found reports whether
// the file exists.
func loadConfig(g *Global, root *CLI) (cfg *config.Config, found bool, err error) {
	cfg, found, err = config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, false, err
	}
	applyLogging(g, cfg, root.Verbose)
	if !found {
		g.Logger.Debug("No configuration file, using defaults", slog.String("path", root.Config))
	}
	return cfg, found, nil
}

func applyLogging(g *Global, cfg *config.Config, verbose bool) {
	setLogger(g, loggerFor(cfg, verbose))
}

func loggerFor(cfg *config.Config, verbose bool) *slog.Logger {
	lg := cfg.Monitoring.Logging
	level := lg.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return observability.NewLogger(os.Stderr, level, lg.Format == config.LogFormatJSON)
}

func setLogger(g *Global, l *slog.Logger) {
	g.Logger = l
	slog.SetDefault(l)
}
