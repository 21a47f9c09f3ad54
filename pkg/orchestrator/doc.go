// Package orchestrator fans one outbound batch out to many relays and fans
// their outcomes back into a single output stream.
//
// Invariants:
// - Exactly one session goroutine per valid endpoint; all share the batch and RunConfig.
// - All sessions publish into one channel; it is closed once every session returns.
// - The goroutine calling Run is the only consumer: it alone touches the seen set
//   and writes to the output and diagnostics writers.
// - A failing endpoint never stops the others; failures become diagnostic lines.
//
// Usage:
//
//	orch := orchestrator.New(relay.NewWSDialer(cfg, logger, nil),
//		orchestrator.WithOutput(os.Stdout),
//		orchestrator.WithDiagnostics(os.Stderr))
//	summary, err := orch.Run(ctx, []string{"wss://relay.example.com"}, batch, cfg)
package orchestrator
