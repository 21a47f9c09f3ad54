package relay

import "time"

// DefaultConnectTimeout bounds the handshake and each non-streaming read
const DefaultConnectTimeout = 10 * time.Second

// Batch is the ordered list of outbound lines every session sends
type Batch []string

// RunConfig is resolved once per invocation and shared by every session
type RunConfig struct {
	// Stream keeps sessions open after terminal envelopes and disables read deadlines
	Stream bool
	// ConnectTimeout is the handshake timeout and the per-read deadline when not streaming
	ConnectTimeout time.Duration
	// OmitEOSE suppresses EOSE envelopes from the output
	OmitEOSE bool
	// Unique drops payloads already written to the output
	Unique bool
}

// DefaultRunConfig returns request/response defaults
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Stream:         false,
		ConnectTimeout: DefaultConnectTimeout,
		OmitEOSE:       true,
		Unique:         false,
	}
}

// readTimeout returns the deadline applied to each read, zero when none applies
func (c RunConfig) readTimeout() time.Duration {
	if c.Stream || c.ConnectTimeout <= 0 {
		return 0
	}
	return c.ConnectTimeout
}
