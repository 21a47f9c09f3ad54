package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidEndpoint is returned for relay addresses that cannot be dialed
var ErrInvalidEndpoint = errors.New("invalid relay endpoint")

// Endpoint is a validated relay address
type Endpoint struct {
	raw string
	url *url.URL
}

// ParseEndpoint validates raw as a ws:// or wss:// URL
func ParseEndpoint(raw string) (Endpoint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Endpoint{}, fmt.Errorf("%w: empty address", ErrInvalidEndpoint)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q (must be ws or wss)", ErrInvalidEndpoint, u.Scheme)
	}

	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, trimmed)
	}

	return Endpoint{raw: raw, url: u}, nil
}

// String returns the address as the user supplied it
func (e Endpoint) String() string {
	return e.raw
}

// URL returns the dialable form of the address
func (e Endpoint) URL() string {
	if e.url == nil {
		return ""
	}
	return e.url.String()
}
