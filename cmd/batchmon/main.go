package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/batchmon/cmd/batchmon/commands"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("batchmon"),
		kong.Description("Monitoring for batch jobs: metrics, Pushgateway export and a local run journal."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	merrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
