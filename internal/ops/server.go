// Package ops serves the operational HTTP endpoints: Prometheus metrics and
// a health check reporting the NPS circuit breaker. It listens on its own
// address and never touches stdout, which belongs to the MCP stream.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olgasafonova/nps-mcp-server/internal/infra"
)

// ShutdownTimeout bounds graceful shutdown of the ops listener
const ShutdownTimeout = 5 * time.Second

// HealthSource reports upstream health
type HealthSource interface {
	CircuitBreakerStats() infra.CircuitBreakerStats
}

// Health is the /healthz response body
type Health struct {
	Status   string                    `json:"status"`
	Version  string                    `json:"version"`
	Upstream infra.CircuitBreakerStats `json:"upstream"`
}

// NewRouter creates the ops router
func NewRouter(health HealthSource, version string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	// 503 while the breaker is open so orchestrators see the upstream outage
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := health.CircuitBreakerStats()
		body := Health{Status: "ok", Version: version, Upstream: stats}
		code := http.StatusOK
		if stats.State == infra.CircuitOpen.String() {
			body.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})

	return r
}

// Serve runs handler on addr until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Ops server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Ops server stopped")
	return nil
}
