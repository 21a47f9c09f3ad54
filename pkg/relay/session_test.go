package relay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/relaycat/internal/metrics"
	"github.com/harun/relaycat/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeoutError mimics the error returned by an expired socket deadline
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errScriptDone = errors.New("script exhausted")

type readStep struct {
	msg Message
	err error
}

func text(raw string) readStep {
	return readStep{msg: Message{Type: MessageText, Data: []byte(raw)}}
}

// fakeConn replays a scripted inbound sequence and records writes
type fakeConn struct {
	mu         sync.Mutex
	script     []readStep
	reads      int
	writes     []string
	pongs      [][]byte
	deadlines  int
	closeSent  bool
	closed     bool
	writeErr   error
	writeErrAt int
}

func (c *fakeConn) WriteText(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil && len(c.writes) == c.writeErrAt {
		return c.writeErr
	}
	c.writes = append(c.writes, line)
	return nil
}

func (c *fakeConn) ReadMessage() (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if len(c.script) == 0 {
		return Message{}, errScriptDone
	}
	step := c.script[0]
	c.script = c.script[1:]
	return step.msg, step.err
}

func (c *fakeConn) SetReadDeadline(time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines++
	return nil
}

func (c *fakeConn) WritePong(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongs = append(c.pongs, data)
	return nil
}

func (c *fakeConn) WriteClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSent = true
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context, Endpoint) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func mustEndpoint(t *testing.T, raw string) Endpoint {
	t.Helper()
	ep, err := ParseEndpoint(raw)
	require.NoError(t, err)
	return ep
}

// runScripted runs a session against dialer and collects every outcome
func runScripted(t *testing.T, dialer Dialer, batch Batch, cfg RunConfig) (*Session, []Outcome) {
	t.Helper()

	session, err := NewSession(SessionConfig{
		Endpoint: mustEndpoint(t, "wss://relay.example.com"),
		Batch:    batch,
		Run:      cfg,
		Dialer:   dialer,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	out := make(chan Outcome, 64)
	session.Run(context.Background(), out)
	close(out)

	var outcomes []Outcome
	for o := range out {
		outcomes = append(outcomes, o)
	}
	return session, outcomes
}

func requestConfig() RunConfig {
	return RunConfig{ConnectTimeout: time.Second, OmitEOSE: true}
}

func streamConfig() RunConfig {
	return RunConfig{Stream: true, ConnectTimeout: time.Second, OmitEOSE: true}
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(SessionConfig{Endpoint: mustEndpoint(t, "ws://a")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dialer is required")

	_, err = NewSession(SessionConfig{Dialer: &fakeDialer{}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")

	s, err := NewSession(SessionConfig{Endpoint: mustEndpoint(t, "ws://a"), Dialer: &fakeDialer{}})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, StateConnecting, s.State())
}

func TestSession_LogsCarryTraceContext(t *testing.T) {
	t.Run("run id and endpoint from context", func(t *testing.T) {
		var buf bytes.Buffer
		session, err := NewSession(SessionConfig{
			Endpoint: mustEndpoint(t, "ws://relay"),
			Run:      requestConfig(),
			Dialer:   &fakeDialer{conn: &fakeConn{script: []readStep{text(`["EOSE","s"]`)}}},
			Logger:   zerolog.New(&buf).Level(zerolog.DebugLevel),
		})
		require.NoError(t, err)

		ctx := tracing.WithEndpoint(tracing.WithRunID(context.Background(), "run-7"), "ws://relay")
		session.Run(ctx, make(chan Outcome, 4))

		require.NotEmpty(t, buf.String())
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			assert.Contains(t, line, `"run_id":"run-7"`)
			assert.Contains(t, line, `"endpoint":"ws://relay"`)
			assert.Contains(t, line, `"session_id":"`+session.ID()+`"`)
			assert.Equal(t, 1, strings.Count(line, `"endpoint"`))
		}
	})

	t.Run("endpoint filled in without context", func(t *testing.T) {
		var buf bytes.Buffer
		session, err := NewSession(SessionConfig{
			Endpoint: mustEndpoint(t, "ws://relay"),
			Run:      requestConfig(),
			Dialer:   &fakeDialer{err: errors.New("connection refused")},
			Logger:   zerolog.New(&buf).Level(zerolog.DebugLevel),
		})
		require.NoError(t, err)

		session.Run(context.Background(), make(chan Outcome, 4))

		assert.Contains(t, buf.String(), `"endpoint":"ws://relay"`)
		assert.NotContains(t, buf.String(), `"run_id"`)
	})
}

func TestSession_ConnectFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}

	session, outcomes := runScripted(t, dialer, Batch{`["REQ","s",{}]`}, requestConfig())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Failed())
	assert.Equal(t, FailureConnect, outcomes[0].Kind())
	assert.Equal(t, "wss://relay.example.com", outcomes[0].Endpoint)
	assert.Contains(t, outcomes[0].Err.Error(), "ConnectError")
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_SendsBatchInOrder(t *testing.T) {
	conn := &fakeConn{script: []readStep{text(`["EOSE","a"]`)}}
	batch := Batch{`["REQ","a",{}]`, `["REQ","b",{}]`, `["CLOSE","a"]`}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, batch, requestConfig())

	assert.Empty(t, outcomes)
	assert.Equal(t, []string(batch), conn.writes)
}

func TestSession_WriteFailureAbortsBatch(t *testing.T) {
	conn := &fakeConn{
		script:     []readStep{text(`["EOSE","a"]`)},
		writeErr:   errors.New("broken pipe"),
		writeErrAt: 1,
	}
	batch := Batch{"one", "two", "three"}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, batch, requestConfig())

	require.Len(t, outcomes, 1)
	assert.Equal(t, FailureWrite, outcomes[0].Kind())
	assert.Contains(t, outcomes[0].Err.Error(), "line 2")
	assert.Equal(t, []string{"one"}, conn.writes)
	assert.Equal(t, 0, conn.reads, "no reads after a write failure")
	assert.True(t, conn.closed)
	assert.False(t, conn.closeSent)
}

func TestSession_TerminationPolicy(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		stream      bool
		omitEOSE    bool
		wantOutputs int
		wantClose   bool
		wantFailure FailureKind
	}{
		{"eose closes request", `["EOSE","s"]`, false, true, 0, true, FailureNone},
		{"eose shown when wanted", `["EOSE","s"]`, false, false, 1, true, FailureNone},
		{"ok closes request", `["OK","e1",true,""]`, false, true, 1, true, FailureNone},
		{"notice closes request", `["NOTICE","rate limited"]`, false, true, 1, true, FailureNone},
		{"count closes request", `["COUNT","s",{"count":2}]`, false, true, 1, true, FailureNone},
		{"event keeps request open", `["EVENT","s",{}]`, false, true, 1, false, FailureNone},
		{"unsupported keeps request open", `["AUTH","challenge"]`, false, true, 1, false, FailureUnsupportedEnvelope},
		{"eose keeps stream open", `["EOSE","s"]`, true, true, 0, false, FailureNone},
		{"ok keeps stream open", `["OK","e1",true,""]`, true, true, 1, false, FailureNone},
		{"notice keeps stream open", `["NOTICE","x"]`, true, true, 1, false, FailureNone},
		{"count keeps stream open", `["COUNT","s",{"count":2}]`, true, true, 1, false, FailureNone},
		{"unsupported keeps stream open", `["CLOSED","s","bye"]`, true, true, 1, false, FailureUnsupportedEnvelope},
		{"event keeps stream open", `["EVENT","s",{}]`, true, true, 1, false, FailureNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{script: []readStep{text(tt.raw)}}
			cfg := RunConfig{Stream: tt.stream, ConnectTimeout: time.Second, OmitEOSE: tt.omitEOSE}

			_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, cfg)

			// Sessions that keep listening end on the exhausted script
			wantTotal := tt.wantOutputs
			if !tt.wantClose {
				wantTotal++
			}
			require.Len(t, outcomes, wantTotal)
			if tt.wantOutputs == 1 {
				assert.Equal(t, tt.wantFailure, outcomes[0].Kind())
				if tt.wantFailure == FailureNone {
					assert.Equal(t, tt.raw, outcomes[0].Payload)
				}
			}

			assert.Equal(t, tt.wantClose, conn.closeSent)
			if tt.wantClose {
				assert.Equal(t, 1, conn.reads, "no reads after a terminal envelope")
			} else {
				assert.Equal(t, 2, conn.reads)
				last := outcomes[len(outcomes)-1]
				assert.Equal(t, FailureTransport, last.Kind())
			}
			assert.True(t, conn.closed)
		})
	}
}

func TestSession_OKTerminatesWithOneSuccess(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		text(`["EVENT","s",{"id":"e1"}]`),
		text(`["OK","e1",true,""]`),
		text(`["EVENT","s",{"id":"never"}]`),
	}}

	session, outcomes := runScripted(t, &fakeDialer{conn: conn}, Batch{`["EVENT",{}]`}, requestConfig())

	require.Len(t, outcomes, 2)
	assert.Equal(t, `["EVENT","s",{"id":"e1"}]`, outcomes[0].Payload)
	assert.Equal(t, `["OK","e1",true,""]`, outcomes[1].Payload)
	assert.Equal(t, 2, conn.reads)
	assert.True(t, conn.closeSent)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_StreamingContinuesPastOK(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		text(`["OK","e1",true,""]`),
		text(`["NOTICE","still here"]`),
		text(`["EVENT","s",{"id":"e2"}]`),
	}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, streamConfig())

	require.Len(t, outcomes, 4)
	assert.Equal(t, `["OK","e1",true,""]`, outcomes[0].Payload)
	assert.Equal(t, `["NOTICE","still here"]`, outcomes[1].Payload)
	assert.Equal(t, `["EVENT","s",{"id":"e2"}]`, outcomes[2].Payload)
	assert.Equal(t, FailureTransport, outcomes[3].Kind())
	assert.Equal(t, 0, conn.deadlines, "streaming never sets a read deadline")
	assert.False(t, conn.closeSent)
}

func TestSession_Timeout(t *testing.T) {
	conn := &fakeConn{script: []readStep{{err: timeoutError{}}}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, Batch{`["REQ","s",{}]`}, requestConfig())

	require.Len(t, outcomes, 1)
	assert.Equal(t, FailureTimeout, outcomes[0].Kind())
	assert.Equal(t, 1, conn.deadlines)
	assert.False(t, conn.closeSent, "no close handshake after a timeout")
	assert.True(t, conn.closed)
}

func TestSession_DeadlinePerRead(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		text(`["EVENT","s",{}]`),
		text(`["EVENT","s",{}]`),
		text(`["EOSE","s"]`),
	}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, requestConfig())

	assert.Len(t, outcomes, 2)
	assert.Equal(t, 3, conn.deadlines)
}

func TestSession_TransportError(t *testing.T) {
	conn := &fakeConn{script: []readStep{{err: errors.New("connection reset by peer")}}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, requestConfig())

	require.Len(t, outcomes, 1)
	assert.Equal(t, FailureTransport, outcomes[0].Kind())
	assert.Contains(t, outcomes[0].Err.Error(), "connection reset by peer")
	assert.False(t, conn.closeSent)
}

func TestSession_BinaryFrame(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		{msg: Message{Type: MessageBinary, Data: []byte{0x1, 0x2}}},
		text(`["EOSE","s"]`),
	}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, requestConfig())

	require.Len(t, outcomes, 1)
	assert.Equal(t, FailureUnsupportedFrame, outcomes[0].Kind())
	assert.Equal(t, 1, conn.reads)
	assert.False(t, conn.closeSent)
}

func TestSession_PingAnsweredWithoutOutput(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		{msg: Message{Type: MessagePing, Data: []byte("hb")}},
		text(`["EVENT","s",{}]`),
		{msg: Message{Type: MessagePing, Data: []byte("hb2")}},
		text(`["EOSE","s"]`),
	}}

	session, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, requestConfig())

	require.Len(t, outcomes, 1)
	assert.Equal(t, `["EVENT","s",{}]`, outcomes[0].Payload)
	assert.Equal(t, [][]byte{[]byte("hb"), []byte("hb2")}, conn.pongs)
	assert.True(t, conn.closeSent)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_UnsupportedEnvelopeKeepsListening(t *testing.T) {
	conn := &fakeConn{script: []readStep{
		text(`["AUTH","challenge-string"]`),
		text(`["NOTICE","done"]`),
	}}

	_, outcomes := runScripted(t, &fakeDialer{conn: conn}, nil, requestConfig())

	require.Len(t, outcomes, 2)
	assert.Equal(t, FailureUnsupportedEnvelope, outcomes[0].Kind())
	assert.Contains(t, outcomes[0].Err.Error(), "AUTH")
	assert.Equal(t, `["NOTICE","done"]`, outcomes[1].Payload)
	assert.True(t, conn.closeSent)
}

func TestSession_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	conn := &fakeConn{script: []readStep{
		text(`["EVENT","s",{}]`),
		text(`["EOSE","s"]`),
	}}

	session, err := NewSession(SessionConfig{
		Endpoint: mustEndpoint(t, "ws://relay"),
		Batch:    Batch{"a", "b"},
		Run:      requestConfig(),
		Dialer:   &fakeDialer{conn: conn},
		Logger:   zerolog.Nop(),
		Metrics:  m,
	})
	require.NoError(t, err)

	out := make(chan Outcome, 8)
	session.Run(context.Background(), out)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() != nil {
				values[mf.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, float64(1), values["relay_sessions_total"])
	assert.Equal(t, float64(2), values["relay_messages_sent_total"])
	assert.Equal(t, float64(2), values["relay_envelopes_received_total"])
	assert.Equal(t, float64(1), values["relay_outcomes_total"])
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(timeoutError{}))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("boom")))
	assert.False(t, IsTimeout(nil))
}

func TestRunConfig_ReadTimeout(t *testing.T) {
	assert.Equal(t, time.Second, requestConfig().readTimeout())
	assert.Zero(t, streamConfig().readTimeout())
	assert.Zero(t, RunConfig{}.readTimeout())

	def := DefaultRunConfig()
	assert.False(t, def.Stream)
	assert.True(t, def.OmitEOSE)
	assert.Equal(t, DefaultConnectTimeout, def.ConnectTimeout)
}
