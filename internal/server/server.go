// Package server hosts generated identity artifacts over HTTP so token URIs
// resolve to the stored metadata and images.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/civicid/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Generator runs the identity pipeline for one address.
type Generator interface {
	Process(ctx context.Context, raw string) batch.Outcome
}

// Server serves the artifacts of one store.
type Server struct {
	// Generator enables POST /identities/{address} when set.
	Generator Generator

	artifacts Artifacts
	urls      metadata.URLs
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New returns a server. m and logger may be nil.
func New(artifacts Artifacts, urls metadata.URLs, m *metrics.Metrics, logger *slog.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{artifacts: artifacts, urls: urls, metrics: m, logger: logger}
}

// Handler wires every route with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery(s.logger))
	r.Use(RequestID)
	r.Use(AccessLog(s.logger, s.metrics))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/metadata/{file}", s.handleMetadata)
	r.Get("/images/{file}", s.handleImage)
	r.Get("/profile/{address}", s.handleProfile)
	r.Get("/did/{address}", s.handleDID)

	if s.Generator != nil {
		r.Post("/identities/{address}", s.handleGenerate)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// best effort, the status is already sent
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
