package relay

import "fmt"

// FailureKind classifies why a session reported a failure
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureURLParse
	FailureConnect
	FailureWrite
	FailureTransport
	FailureTimeout
	FailureUnsupportedFrame
	FailureUnsupportedEnvelope
)

// String returns the taxonomy name used in diagnostics and metrics
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "None"
	case FailureURLParse:
		return "UrlParseError"
	case FailureConnect:
		return "ConnectError"
	case FailureWrite:
		return "WriteError"
	case FailureTransport:
		return "TransportError"
	case FailureTimeout:
		return "TimeoutError"
	case FailureUnsupportedFrame:
		return "UnsupportedFrame"
	case FailureUnsupportedEnvelope:
		return "UnsupportedEnvelope"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// SessionError is a failure tagged with its endpoint and kind
type SessionError struct {
	Endpoint string
	Kind     FailureKind
	Err      error
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("relay %s: %s", e.Endpoint, e.Kind)
	}
	return fmt.Sprintf("relay %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *SessionError) Unwrap() error {
	return e.Err
}

// Outcome is one result emitted by a session: a payload or a failure
type Outcome struct {
	Endpoint string
	Payload  string
	Err      *SessionError
}

// Success builds a payload outcome
func Success(endpoint, payload string) Outcome {
	return Outcome{Endpoint: endpoint, Payload: payload}
}

// Failure builds a failure outcome
func Failure(endpoint string, kind FailureKind, err error) Outcome {
	return Outcome{
		Endpoint: endpoint,
		Err:      &SessionError{Endpoint: endpoint, Kind: kind, Err: err},
	}
}

// Failed reports whether the outcome carries a failure
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Kind returns the failure kind, or FailureNone for a payload
func (o Outcome) Kind() FailureKind {
	if o.Err == nil {
		return FailureNone
	}
	return o.Err.Kind
}
