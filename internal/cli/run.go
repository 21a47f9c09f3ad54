package cli

import (
	"fmt"

	"github.com/harun/relaycat/internal/config"
	"github.com/harun/relaycat/internal/logger"
	"github.com/harun/relaycat/internal/metrics"
	"github.com/harun/relaycat/pkg/envelope"
	"github.com/harun/relaycat/pkg/orchestrator"
	"github.com/harun/relaycat/pkg/relay"
	"github.com/spf13/cobra"
)

// run resolves configuration, reads the batch and drives one orchestrator run.
// Per-relay failures never make it return an error.
func run(cmd *cobra.Command, cfgFile string, endpoints []string) error {
	cfg, err := config.NewLoader(cfgFile).WithFlags(cmd.Flags()).Load()
	if err != nil {
		return err
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	batch, err := readBatch(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if cfg.ValidateInput {
		validator, err := envelope.NewOutboundValidator()
		if err != nil {
			return err
		}
		if err := validator.ValidateBatch(batch); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}

	m := metrics.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(cfg.MetricsAddr, m, zl)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(); err != nil {
				zl.Warn().Err(err).Msg("Metrics server did not stop cleanly")
			}
		}()
	}

	runCfg := cfg.RunConfig()
	zl.Debug().
		Str("config", cfg.String()).
		Int("lines", len(batch)).
		Msg("Configuration resolved")

	orch := orchestrator.New(
		relay.NewWSDialer(runCfg, zl, m),
		orchestrator.WithOutput(cmd.OutOrStdout()),
		orchestrator.WithDiagnostics(cmd.ErrOrStderr()),
		orchestrator.WithLogger(zl),
		orchestrator.WithMetrics(m),
	)

	// An unreachable set of relays is reported by the orchestrator and still exits 0
	if _, err := orch.Run(cmd.Context(), endpoints, batch, runCfg); err != nil {
		return err
	}

	return nil
}
