package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/batchmon/internal/batch"
	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
	"git.home.luguber.info/inful/batchmon/internal/logfields"
	"git.home.luguber.info/inful/batchmon/internal/observability"
)

// DefaultSubject is where job summaries are published unless configured otherwise.
const DefaultSubject = "batch.jobs.completed"

const natsPublishTimeout = 5 * time.Second

// Publisher sends a payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSOptions configures ConnectNATS.
type NATSOptions struct {
	URL string
	// Name identifies the connection on the server.
	Name string
	// JetStream publishes through JetStream and waits for the stream ack.
	// The subject must be bound to an existing stream.
	JetStream bool
}

// NATSConn is a Publisher over a NATS connection.
type NATSConn struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// ConnectNATS connects to the NATS server.
func ConnectNATS(opts NATSOptions) (*NATSConn, error) {
	conn, err := nats.Connect(opts.URL, nats.Name(opts.Name), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, merrors.NetworkError(opts.URL, fmt.Errorf("failed to connect to NATS: %w", err))
	}

	c := &NATSConn{conn: conn}
	if opts.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, merrors.NetworkError(opts.URL, fmt.Errorf("failed to create JetStream context: %w", err))
		}
		c.js = js
	}

	slog.Info("NATS client initialized for job summaries",
		logfields.URL(opts.URL),
		slog.Bool("jetstream", opts.JetStream))
	return c, nil
}

// Publish sends data and waits until the server has it.
func (c *NATSConn) Publish(ctx context.Context, subject string, data []byte) error {
	if c.js != nil {
		if _, err := c.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
		return nil
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return c.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (c *NATSConn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}

// SummaryPublisher publishes a batch.Summary for every finished job.
type SummaryPublisher struct {
	pub     Publisher
	subject string
}

// NewSummaryPublisher publishes through pub to subject (DefaultSubject when empty).
func NewSummaryPublisher(pub Publisher, subject string) *SummaryPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &SummaryPublisher{pub: pub, subject: subject}
}

// BeforeJob does nothing.
func (p *SummaryPublisher) BeforeJob(context.Context, *batch.JobExecution) {}

// AfterJob publishes the job summary. Failures are logged.
func (p *SummaryPublisher) AfterJob(ctx context.Context, job *batch.JobExecution) {
	data, err := json.Marshal(batch.Summarize(job))
	if err != nil {
		observability.ErrorContext(ctx, "Failed to marshal job summary", logfields.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), natsPublishTimeout)
	defer cancel()
	if err := p.pub.Publish(pubCtx, p.subject, data); err != nil {
		observability.ErrorContext(ctx, "Failed to publish job summary",
			logfields.Subject(p.subject),
			logfields.Error(err))
		return
	}
	observability.DebugContext(ctx, "Published job summary", logfields.Subject(p.subject))
}
