package envelope

import "strings"

// Kind identifies the envelope tag of an inbound relay message
type Kind int

const (
	KindUnsupported Kind = iota
	KindEvent
	KindNotice
	KindOK
	KindEOSE
	KindCount
)

// prefixes maps each known kind to the literal opening of its JSON array.
var prefixes = []struct {
	kind   Kind
	prefix string
}{
	{KindEvent, `["EVENT"`},
	{KindNotice, `["NOTICE"`},
	{KindOK, `["OK"`},
	{KindEOSE, `["EOSE"`},
	{KindCount, `["COUNT"`},
}

// String returns the wire tag for known kinds
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "EVENT"
	case KindNotice:
		return "NOTICE"
	case KindOK:
		return "OK"
	case KindEOSE:
		return "EOSE"
	case KindCount:
		return "COUNT"
	default:
		return "UNSUPPORTED"
	}
}

// Terminal reports whether the kind ends a request/response exchange.
// EVENT never does; a subscription may keep delivering them.
func (k Kind) Terminal() bool {
	switch k {
	case KindNotice, KindOK, KindEOSE, KindCount:
		return true
	default:
		return false
	}
}

// Envelope is one classified inbound message
type Envelope struct {
	Kind Kind
	Raw  string
}

// Classify returns the kind of raw by matching its literal tag prefix
func Classify(raw string) Kind {
	for _, p := range prefixes {
		if strings.HasPrefix(raw, p.prefix) {
			return p.kind
		}
	}
	return KindUnsupported
}

// Parse classifies raw and keeps the original text
func Parse(raw string) Envelope {
	return Envelope{Kind: Classify(raw), Raw: raw}
}
