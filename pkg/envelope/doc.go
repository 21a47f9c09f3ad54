// Package envelope classifies inbound relay messages by their leading tag.
//
// Invariants:
// - Classification is a literal prefix check; no JSON is parsed.
// - Every input maps to exactly one Kind. Unknown shapes are KindUnsupported.
//
// Usage:
//
//	env := envelope.Parse(`["EOSE","sub1"]`)
//	if env.Kind.Terminal() {
//		// request/response usage expects no more replies
//	}
package envelope
