package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/config"
	"git.home.luguber.info/inful/batchmon/internal/engine"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/metrics"
	"git.home.luguber.info/inful/batchmon/internal/monitor"
)

// DemoCmd implements the 'demo' command.
type DemoCmd struct {
	Runs       int           `help:"Number of job executions" default:"1"`
	Partitions int           `short:"p" help:"Parallel partitions of the load step" default:"4"`
	Items      int           `help:"Items per partition" default:"500"`
	ChunkSize  int           `name:"chunk-size" help:"Items per chunk" default:"50"`
	WriteDelay time.Duration `name:"write-delay" help:"Simulated sink latency per chunk" default:"2ms"`
	Fail       bool          `help:"Make one partition fail halfway"`
	Serve      string        `help:"Serve /metrics on this address until interrupted (e.g. :9102)"`
}

func (d *DemoCmd) Validate() error {
	switch {
	case d.Runs < 1:
		return merrors.ValidationFailed("runs", "must be at least 1")
	case d.Partitions < 1:
		return merrors.ValidationFailed("partitions", "must be at least 1")
	case d.Items < 0:
		return merrors.ValidationFailed("items", "must not be negative")
	case d.ChunkSize < 1:
		return merrors.ValidationFailed("chunk-size", "must be at least 1")
	}
	return nil
}

func (d *DemoCmd) Run(g *Global, root *CLI) error {
	cfg, found, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exporter settings are fixed once monitoring is attached; a long-running
	// demo only picks up logging changes, through the default logger.
	if d.Serve != "" && found {
		w, err := config.NewWatcher(root.Config, func(next *config.Config) {
			slog.SetDefault(loggerFor(next, root.Verbose))
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			slog.Warn("Configuration changes will not be picked up", logfields.Error(err))
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	backend := prom.NewRegistry()
	if err := metrics.RegisterRuntimeCollectors(backend); err != nil {
		return merrors.InternalError("failed to register runtime collectors", err)
	}

	mon, err := monitor.Setup(ctx, cfg, backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := mon.Close(); err != nil {
			slog.Warn("Failed to close monitoring", logfields.Error(err))
		}
	}()

	if d.Serve != "" {
		shutdown := serveMetrics(d.Serve, backend)
		defer shutdown()
	}

	job := newDemoJob(demoOptions{
		Partitions: d.Partitions,
		Items:      d.Items,
		ChunkSize:  d.ChunkSize,
		WriteDelay: d.WriteDelay,
		Fail:       d.Fail,
	})
	report := mon.AttachAll(ctx, job.Components())
	slog.Info("Monitoring attached",
		slog.Int("attached", report.Attached),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))

	runErr := runDemo(ctx, os.Stdout, engine.NewLauncher(), job, d.Runs)

	if d.Serve != "" && ctx.Err() == nil {
		fmt.Printf("Serving metrics on %s/metrics, press Ctrl+C to stop\n", d.Serve)
		<-ctx.Done()
	}
	return runErr
}

// runDemo launches job runs times and prints a summary per execution. It
// returns the error of the last failed execution.
func runDemo(ctx context.Context, out io.Writer, launcher *engine.Launcher, job *engine.Job, runs int) error {
	var runErr error
	for i := 0; i < runs && ctx.Err() == nil; i++ {
		exec, err := launcher.Run(ctx, job)
		if err != nil {
			runErr = err
		}
		printSummary(out, batch.Summarize(exec))
	}
	return runErr
}

func printSummary(out io.Writer, s batch.Summary) {
	_, _ = fmt.Fprintf(out, "%s #%d %s in %dms: read=%d written=%d skipped=%d filtered=%d failures=%d\n",
		s.JobName, s.JobExecutionID, s.Status, s.DurationMS,
		s.ItemsRead, s.ItemsWritten, s.ItemsSkipped, s.ItemsFiltered, s.Failures)
}

// serveMetrics exposes g on addr/metrics and returns a function that shuts
// the server down.
func serveMetrics(addr string, g prom.Gatherer) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Serving metrics", logfields.URL("http://"+addr+"/metrics"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}
}
