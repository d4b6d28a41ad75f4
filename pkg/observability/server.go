package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StatusFunc supplies the fleet snapshot served at /status.
type StatusFunc func() any

// Server serves the operational endpoints: health probes, Prometheus
// metrics and the agent status snapshot.
type Server struct {
	httpServer *http.Server
	port       int
	checker    *HealthChecker
	statusFn   StatusFunc
}

// NewServer creates an observability server on the given port.
func NewServer(port int, checker *HealthChecker, statusFn StatusFunc) *Server {
	return &Server{port: port, checker: checker, statusFn: statusFn}
}

// Start serves until Shutdown. It blocks, so run it from a goroutine
// or an errgroup.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.checker.HealthHandler())
	mux.HandleFunc("/health/live", s.checker.LivenessHandler())
	mux.HandleFunc("/health/ready", s.checker.ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.statusFn())
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
