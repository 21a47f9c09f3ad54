package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/relaycat/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultWriteTimeout = 10 * time.Second
	closeGracePeriod    = time.Second
)

// MessageType identifies the frame type of an inbound message
type MessageType int

const (
	MessageText MessageType = iota
	MessageBinary
	MessagePing
)

// String returns a readable frame type name
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessagePing:
		return "ping"
	default:
		return fmt.Sprintf("frame(%d)", int(t))
	}
}

// Message is one inbound frame
type Message struct {
	Type MessageType
	Data []byte
}

// Conn is a live relay connection owned by a single session
type Conn interface {
	WriteText(line string) error
	ReadMessage() (Message, error)
	SetReadDeadline(t time.Time) error
	WritePong(data []byte) error
	WriteClose() error
	Close() error
}

// Dialer opens connections to relay endpoints
type Dialer interface {
	Dial(ctx context.Context, endpoint Endpoint) (Conn, error)
}

// WSDialer dials relays over WebSocket
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// NewWSDialer creates a dialer whose handshake is bounded by cfg.ConnectTimeout
func NewWSDialer(cfg RunConfig, logger zerolog.Logger, m *metrics.Metrics) *WSDialer {
	return &WSDialer{
		HandshakeTimeout: cfg.ConnectTimeout,
		WriteTimeout:     defaultWriteTimeout,
		Logger:           logger,
		Metrics:          m,
	}
}

// Dial performs the WebSocket handshake with the endpoint
func (d *WSDialer) Dial(ctx context.Context, endpoint Endpoint) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint.URL(), d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	d.Logger.Debug().
		Str("endpoint", endpoint.String()).
		Int("status", resp.StatusCode).
		Msg("Connected to relay")

	c := &wsConn{
		conn:         conn,
		writeTimeout: d.WriteTimeout,
		logger:       d.Logger.With().Str("endpoint", endpoint.String()).Logger(),
		metrics:      d.Metrics,
	}
	conn.SetPingHandler(c.handlePing)

	return c, nil
}

// wsConn adapts a gorilla connection to Conn
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

func (c *wsConn) WriteText(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// ReadMessage returns the next data frame. Pings are answered inside the
// gorilla read loop by handlePing and never surface here.
func (c *wsConn) ReadMessage() (Message, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	switch mt {
	case websocket.TextMessage:
		return Message{Type: MessageText, Data: data}, nil
	default:
		return Message{Type: MessageBinary, Data: data}, nil
	}
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) WritePong(data []byte) error {
	return c.conn.WriteControl(websocket.PongMessage, data, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) WriteClose() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// handlePing mirrors gorilla's default handler: reply with the same payload
// and ignore errors caused by a closing or timed out connection.
func (c *wsConn) handlePing(appData string) error {
	c.logger.Debug().Int("bytes", len(appData)).Msg("Received ping")
	c.metrics.PingAnswered()

	err := c.WritePong([]byte(appData))
	if err == websocket.ErrCloseSent {
		return nil
	} else if _, ok := err.(net.Error); ok {
		return nil
	}
	return err
}
