package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/relaycat/internal/metrics"
	"github.com/harun/relaycat/internal/tracing"
	"github.com/harun/relaycat/pkg/envelope"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// maxLoggedPayload caps raw text copied into log lines and errors
const maxLoggedPayload = 256

// State is the lifecycle state of a session
type State int

const (
	StateConnecting State = iota
	StateSending
	StateListening
	StateClosing
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateListening:
		return "listening"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionConfig holds everything a session needs
type SessionConfig struct {
	Endpoint Endpoint
	Batch    Batch
	Run      RunConfig
	Dialer   Dialer
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Session owns one relay connection for its whole lifetime
type Session struct {
	id       string
	endpoint Endpoint
	batch    Batch
	cfg      RunConfig
	dialer   Dialer
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	state    State
}

// NewSession creates a session in the Connecting state
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if cfg.Endpoint.URL() == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	return &Session{
		id:       id,
		endpoint: cfg.Endpoint,
		batch:    cfg.Batch,
		cfg:      cfg.Run,
		dialer:   cfg.Dialer,
		logger:   cfg.Logger.With().Str("session_id", id).Logger(),
		metrics:  cfg.Metrics,
		state:    StateConnecting,
	}, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
// It is only safe to call from the goroutine running the session or after Run returns.
func (s *Session) State() State {
	return s.state
}

// Run drives the session to Closed, sending every outcome on out.
// ctx only bounds the dial; a live session runs to natural completion.
// The run id and endpoint carried by ctx are attached to every log line.
func (s *Session) Run(ctx context.Context, out chan<- Outcome) {
	if tracing.GetEndpoint(ctx) == "" {
		ctx = tracing.WithEndpoint(ctx, s.endpoint.String())
	}
	s.logger = tracing.PropagateToLogger(ctx, s.logger)

	start := time.Now()
	s.metrics.SessionStarted()
	defer func() {
		s.setState(StateClosed)
		s.metrics.SessionFinished(time.Since(start))
	}()

	s.setState(StateConnecting)
	conn, err := s.dialer.Dial(ctx, s.endpoint)
	if err != nil {
		s.fail(out, FailureConnect, err)
		return
	}
	defer conn.Close()

	s.setState(StateSending)
	for i, line := range s.batch {
		if err := conn.WriteText(line); err != nil {
			s.fail(out, FailureWrite, fmt.Errorf("line %d: %w", i+1, err))
			return
		}
		s.metrics.MessageSent()
		s.logger.Debug().Int("line", i+1).Msg("Sent outbound line")
	}

	s.setState(StateListening)
	if !s.listen(conn, out) {
		return
	}

	s.setState(StateClosing)
	if err := conn.WriteClose(); err != nil {
		s.logger.Debug().Err(err).Msg("Close frame not delivered")
	}
}

// listen reads until the session must end. It returns true when the
// connection is still usable and a close frame should be sent.
func (s *Session) listen(conn Conn, out chan<- Outcome) bool {
	for {
		msg, err := readWithDeadline(conn, s.cfg)
		if err != nil {
			if IsTimeout(err) {
				s.fail(out, FailureTimeout, fmt.Errorf("no message within %s: %w", s.cfg.ConnectTimeout, err))
				return false
			}
			s.fail(out, FailureTransport, err)
			return false
		}

		switch msg.Type {
		case MessagePing:
			s.metrics.PingAnswered()
			if err := conn.WritePong(msg.Data); err != nil {
				s.logger.Debug().Err(err).Msg("Pong not delivered")
			}
		case MessageText:
			if s.handleText(string(msg.Data), out) {
				return true
			}
		default:
			s.fail(out, FailureUnsupportedFrame, fmt.Errorf("received %s frame of %d bytes", msg.Type, len(msg.Data)))
			return false
		}
	}
}

// handleText classifies one text message, emits its outcome and reports
// whether the termination policy moves the session to Closing.
func (s *Session) handleText(raw string, out chan<- Outcome) bool {
	env := envelope.Parse(raw)
	s.metrics.EnvelopeReceived(env.Kind.String())

	s.logger.Debug().
		Str("kind", env.Kind.String()).
		Str("data", truncate(raw)).
		Msg("Received envelope")

	switch env.Kind {
	case envelope.KindUnsupported:
		s.fail(out, FailureUnsupportedEnvelope, fmt.Errorf("unrecognized message %q", truncate(raw)))
		return false
	case envelope.KindEOSE:
		if !s.cfg.OmitEOSE {
			s.succeed(out, raw)
		}
	default:
		s.succeed(out, raw)
	}

	return !s.cfg.Stream && env.Kind.Terminal()
}

func (s *Session) succeed(out chan<- Outcome, payload string) {
	s.metrics.OutcomeEmitted("success")
	out <- Success(s.endpoint.String(), payload)
}

func (s *Session) fail(out chan<- Outcome, kind FailureKind, err error) {
	s.metrics.OutcomeEmitted(kind.String())
	s.logger.Debug().
		Err(err).
		Str("kind", kind.String()).
		Str("state", s.state.String()).
		Msg("Session failed")
	out <- Failure(s.endpoint.String(), kind, err)
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug().
		Str("from", s.state.String()).
		Str("to", state.String()).
		Msg("Session state change")
	s.state = state
}

func truncate(raw string) string {
	if len(raw) <= maxLoggedPayload {
		return raw
	}
	return raw[:maxLoggedPayload] + "..."
}
