package relay

import (
	"errors"
	"net"
	"os"
	"time"
)

// readWithDeadline performs one Listening read. When the run is not
// streaming, the read must complete within ConnectTimeout.
func readWithDeadline(conn Conn, cfg RunConfig) (Message, error) {
	if timeout := cfg.readTimeout(); timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Message{}, err
		}
	}
	return conn.ReadMessage()
}

// IsTimeout reports whether err is an expired read deadline
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
