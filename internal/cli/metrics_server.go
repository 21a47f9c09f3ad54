package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/harun/relaycat/internal/metrics"
	"github.com/rs/zerolog"
)

// metricsServer exposes the run's Prometheus registry while sessions are live
type metricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// startMetricsServer binds addr before returning so a bad address fails the run early
func startMetricsServer(addr string, m *metrics.Metrics, logger zerolog.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s := &metricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting metrics server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return s, nil
}

// Addr returns the bound address
func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Stop gracefully stops the metrics server
func (s *metricsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	s.logger.Info().Msg("Metrics server stopped")
	return nil
}
