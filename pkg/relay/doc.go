// Package relay runs one client session against one relay endpoint.
//
// A Session dials the endpoint, writes every line of the outbound Batch as a
// text message, then reads inbound messages until a terminal envelope, a read
// deadline, or a transport error ends it. Each result is sent as an Outcome on
// the channel passed to Run.
//
// Invariants:
// - Outcomes of one session are sent in read order.
// - A session closes its connection before Run returns.
// - Read deadlines only apply when RunConfig.Stream is false.
// - Failures never escape as panics or returned errors; they become Outcomes.
package relay
