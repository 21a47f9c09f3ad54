package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/harun/relaycat/internal/metrics"
	"github.com/harun/relaycat/internal/tracing"
	"github.com/harun/relaycat/pkg/relay"
	"github.com/rs/zerolog"
)

const defaultChannelSize = 100

// Orchestrator runs one session per relay and merges their outcomes
type Orchestrator struct {
	dialer      relay.Dialer
	output      io.Writer
	diagnostics io.Writer
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	channelSize int
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Orchestrator)

// WithOutput sets where payload lines are written
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.output = w
	}
}

// WithDiagnostics sets where one line per failure is written
func WithDiagnostics(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.diagnostics = w
	}
}

// WithLogger sets the logger for the orchestrator and its sessions
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics records session and output metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithChannelSize sets the fan-in channel buffer
func WithChannelSize(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.channelSize = size
		}
	}
}

// New creates a new Orchestrator that connects through dialer
func New(dialer relay.Dialer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dialer:      dialer,
		output:      io.Discard,
		diagnostics: io.Discard,
		logger:      zerolog.Nop(),
		channelSize: defaultChannelSize,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Summary describes a finished run
type Summary struct {
	RunID      string
	Endpoints  int
	Sessions   int
	Payloads   int
	Duplicates int
	Failures   map[relay.FailureKind]int
	Duration   time.Duration

	// unreachable counts endpoints that never got a connection
	unreachable int
}

// FailureCount returns the total number of failure outcomes
func (s Summary) FailureCount() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// AllUnreachable reports whether no endpoint could be connected to at all
func (s Summary) AllUnreachable() bool {
	return s.Endpoints > 0 && s.unreachable == s.Endpoints
}

// Run sends batch to every endpoint and blocks until every session has
// finished. Per-endpoint failures are reported on the diagnostics writer and
// counted in the Summary; the returned error is only set when the output
// writer fails.
func (o *Orchestrator) Run(ctx context.Context, endpoints []string, batch relay.Batch, cfg relay.RunConfig) (Summary, error) {
	if o.dialer == nil {
		return Summary{}, fmt.Errorf("dialer is required")
	}

	ctx = tracing.NewRunContext(ctx)
	logger := tracing.PropagateToLogger(ctx, o.logger)
	startTime := time.Now()

	summary := Summary{
		RunID:     tracing.GetRunID(ctx),
		Endpoints: len(endpoints),
		Failures:  make(map[relay.FailureKind]int),
	}

	logger.Info().
		Int("endpoints", len(endpoints)).
		Int("lines", len(batch)).
		Bool("stream", cfg.Stream).
		Bool("unique", cfg.Unique).
		Msg("Starting relay sessions")

	out := make(chan relay.Outcome, o.channelSize)
	var wg sync.WaitGroup

	var invalid []relay.Outcome
	for _, raw := range endpoints {
		endpoint, err := relay.ParseEndpoint(raw)
		if err != nil {
			invalid = append(invalid, relay.Failure(raw, relay.FailureURLParse, err))
			continue
		}

		session, err := relay.NewSession(relay.SessionConfig{
			Endpoint: endpoint,
			Batch:    batch,
			Run:      cfg,
			Dialer:   o.dialer,
			Logger:   o.logger,
			Metrics:  o.metrics,
		})
		if err != nil {
			invalid = append(invalid, relay.Failure(raw, relay.FailureURLParse, err))
			continue
		}

		summary.Sessions++
		wg.Add(1)
		// The session takes run_id and endpoint for its logs from sessionCtx
		go func(sessionCtx context.Context) {
			defer wg.Done()
			session.Run(sessionCtx, out)
		}(tracing.WithEndpoint(ctx, raw))
	}

	// Rejected endpoints go through the channel like any other outcome so the
	// consumer stays the only writer.
	if len(invalid) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, outcome := range invalid {
				out <- outcome
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	err := o.consume(out, cfg.Unique, &summary, logger)

	summary.Duration = time.Since(startTime)
	logger.Info().
		Int("sessions", summary.Sessions).
		Int("payloads", summary.Payloads).
		Int("duplicates", summary.Duplicates).
		Int("failures", summary.FailureCount()).
		Dur("duration", summary.Duration).
		Msg("All relay sessions finished")

	if summary.AllUnreachable() {
		logger.Warn().Int("endpoints", summary.Endpoints).Msg("No relay could be reached")
	}

	return summary, err
}

// consume drains out until every producer is done. It keeps draining after an
// output error so no session blocks on a full channel.
func (o *Orchestrator) consume(out <-chan relay.Outcome, unique bool, summary *Summary, logger zerolog.Logger) error {
	var seen *seenSet
	if unique {
		seen = newSeenSet()
	}

	var writeErr error
	for outcome := range out {
		if outcome.Failed() {
			kind := outcome.Kind()
			summary.Failures[kind]++
			if kind == relay.FailureConnect || kind == relay.FailureURLParse {
				summary.unreachable++
			}
			fmt.Fprintln(o.diagnostics, outcome.Err.Error())
			continue
		}

		if seen != nil && !seen.Add(outcome.Payload) {
			summary.Duplicates++
			o.metrics.DuplicateDropped()
			logger.Debug().Str("endpoint", outcome.Endpoint).Msg("Dropped duplicate payload")
			continue
		}

		if writeErr != nil {
			continue
		}
		if _, err := fmt.Fprintln(o.output, outcome.Payload); err != nil {
			writeErr = fmt.Errorf("failed to write output: %w", err)
			logger.Error().Err(err).Msg("Output closed, discarding remaining payloads")
			continue
		}
		summary.Payloads++
		o.metrics.PayloadPrinted()
	}

	return writeErr
}
