package monitor

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	"git.home.luguber.info/inful/batchmon/internal/config"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/export"
	"git.home.luguber.info/inful/batchmon/internal/journal"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/metrics"
	"git.home.luguber.info/inful/batchmon/internal/timing"
)

// Monitoring is the assembled monitoring stack of one pipeline.
type Monitoring struct {
	registry *metrics.Registry
	observer *Observer
	attacher *Attacher

	exporter *export.PushExporter
	flusher  *export.Flusher
	journal  journal.Store

	closers []func() error
}

// SetupOption customises Setup, mostly for tests.
type SetupOption func(*setupOptions)

type setupOptions struct {
	clock      clockwork.Clock
	pushClient push.HTTPDoer
	publisher  export.Publisher
}

// WithSessionClock sets the clock of the timing session store.
func WithSessionClock(c clockwork.Clock) SetupOption {
	return func(o *setupOptions) { o.clock = c }
}

// WithPushClient sets the HTTP client used for Pushgateway requests.
func WithPushClient(c push.HTTPDoer) SetupOption {
	return func(o *setupOptions) { o.pushClient = c }
}

// WithPublisher replaces the NATS connection for job summaries.
func WithPublisher(p export.Publisher) SetupOption {
	return func(o *setupOptions) { o.publisher = p }
}

// Setup builds the monitoring stack described by cfg on top of backend (a
// fresh registry when nil). Job listeners are attached in this order: the
// observer, the Pushgateway exporter, the in-flight flusher, the summary
// publisher and the journal.
//
// With monitoring disabled the returned stack attaches nothing. Exporters
// whose external system is unreachable at startup are left out with a
// warning.
func Setup(ctx context.Context, cfg *config.Config, backend prom.Registerer, opts ...SetupOption) (*Monitoring, error) {
	o := setupOptions{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	mc := cfg.Monitoring
	if !mc.Enabled {
		slog.InfoContext(ctx, "Batch monitoring disabled")
		return &Monitoring{attacher: disabledAttacher()}, nil
	}

	m := &Monitoring{registry: metrics.NewRegistry(backend)}
	observer, err := NewObserver(m.registry, timing.NewStore(timing.WithClock(o.clock)))
	if err != nil {
		return nil, merrors.InternalError("failed to define batch metrics", err)
	}
	m.observer = observer

	var listeners []batch.JobListener

	if pg := mc.Pushgateway; pg.Enabled {
		if _, ok := m.registry.Gatherer(); !ok {
			slog.WarnContext(ctx, "Metric registry is not push compatible, snapshots will not be pushed",
				logfields.URL(pg.URL))
		}
		m.exporter = export.NewPushExporter(m.registry, export.PushOptions{
			URL:      pg.URL,
			Job:      pg.Job,
			Instance: mc.ApplicationName,
			Timeout:  pg.Timeout,
			Client:   o.pushClient,
		})
		listeners = append(listeners, m.exporter)

		if pg.FlushInterval > 0 {
			f, err := export.NewFlusher(m.exporter, pg.FlushInterval)
			if err != nil {
				return nil, merrors.InternalError("failed to create metrics flusher", err)
			}
			f.Start()
			m.flusher = f
			m.closers = append(m.closers, f.Stop)
			listeners = append(listeners, f)
		}
	}

	if n := mc.NATS; n.Enabled {
		pub := o.publisher
		if pub == nil {
			conn, err := export.ConnectNATS(export.NATSOptions{URL: n.URL, Name: mc.ApplicationName, JetStream: n.JetStream})
			if err != nil {
				slog.WarnContext(ctx, "Job summaries disabled", logfields.Error(err))
			} else {
				pub = conn
				m.closers = append(m.closers, conn.Close)
			}
		}
		if pub != nil {
			listeners = append(listeners, export.NewSummaryPublisher(pub, n.Subject))
		}
	}

	if j := mc.Journal; j.Enabled {
		store, err := journal.NewSQLiteStore(j.Path)
		if err != nil {
			slog.WarnContext(ctx, "Run journal disabled", logfields.Path(j.Path), logfields.Error(err))
		} else {
			m.journal = store
			m.closers = append(m.closers, store.Close)
			listeners = append(listeners, journal.NewListener(store))
		}
	}

	m.attacher = NewAttacher(observer, listeners...)
	slog.InfoContext(ctx, "Batch monitoring enabled",
		slog.String("application", mc.ApplicationName),
		slog.Bool("pushgateway", m.exporter != nil),
		slog.Bool("flusher", m.flusher != nil),
		slog.Bool("journal", m.journal != nil))
	return m, nil
}

// Enabled reports whether components get instrumented.
func (m *Monitoring) Enabled() bool { return m.attacher.Enabled() }

// Registry is the metric registry facade; nil when monitoring is disabled.
func (m *Monitoring) Registry() *metrics.Registry { return m.registry }

// Observer is the lifecycle observer; nil when monitoring is disabled.
func (m *Monitoring) Observer() *Observer { return m.observer }

// Exporter is the Pushgateway exporter, if configured.
func (m *Monitoring) Exporter() *export.PushExporter { return m.exporter }

// Journal is the run journal, if configured.
func (m *Monitoring) Journal() journal.Store { return m.journal }

// Attach instruments a single component.
func (m *Monitoring) Attach(ctx context.Context, c batch.Component) (bool, error) {
	return m.attacher.Attach(ctx, c)
}

// AttachAll instruments every component it can.
func (m *Monitoring) AttachAll(ctx context.Context, components []batch.Component) AttachReport {
	return m.attacher.AttachAll(ctx, components)
}

// Close stops the flusher and releases external connections.
func (m *Monitoring) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return stderrors.Join(errs...)
}
