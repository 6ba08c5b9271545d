package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/journal"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Job   string `short:"j" help:"Only list executions of this job"`
	Limit int    `short:"n" help:"Maximum number of executions to list" default:"20"`
	JSON  bool   `name:"json" help:"Print one JSON summary per line"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, _, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	jc := cfg.Monitoring.Journal
	if !jc.Enabled {
		return merrors.ConfigRequired("monitoring.journal.enabled")
	}

	store, err := journal.NewSQLiteStore(jc.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(context.Background(), h.Job, h.Limit)
	if err != nil {
		return err
	}
	return writeHistory(os.Stdout, entries, h.JSON)
}

func writeHistory(out io.Writer, entries []journal.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e.Summary); err != nil {
				return err
			}
		}
		return nil
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No job executions recorded")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RECORDED\tJOB\tEXECUTION\tSTATUS\tDURATION\tREAD\tWRITTEN\tSKIPPED\tFAILURES")
	for _, e := range entries {
		s := e.Summary
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			e.RecordedAt.Local().Format(time.DateTime), s.JobName, s.JobExecutionID, s.Status,
			time.Duration(s.DurationMS)*time.Millisecond, s.ItemsRead, s.ItemsWritten, s.ItemsSkipped, s.Failures)
	}
	return tw.Flush()
}
