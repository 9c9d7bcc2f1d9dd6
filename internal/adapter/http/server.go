package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ronanmccormack-ca/areacheck-service/internal/domain"
	"github.com/ronanmccormack-ca/areacheck-service/internal/insight"
)

// Lookuper is the insight surface the server exposes.
type Lookuper interface {
	Lookup(ctx context.Context, q insight.LookupQuery) (insight.LookupResult, error)
	Streets(ctx context.Context, civicNumber string) ([]string, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the lookup API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	service    Lookuper
	logger     *slog.Logger
}

// NewServer creates the API server.
func NewServer(addr string, service Lookuper, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		service: service,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/property", s.handleProperty)
	mux.HandleFunc("GET /api/streets", s.handleStreets)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleProperty serves the full lookup bundle:
// GET /api/property?number=2725&street=Main+St&unit=101
func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	q := insight.LookupQuery{
		CivicNumber: r.URL.Query().Get("number"),
		StreetName:  r.URL.Query().Get("street"),
		Unit:        r.URL.Query().Get("unit"),
	}

	result, err := s.service.Lookup(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStreets serves street-name typeahead:
// GET /api/streets?number=2725
func (s *Server) handleStreets(w http.ResponseWriter, r *http.Request) {
	streets, err := s.service.Streets(r.Context(), r.URL.Query().Get("number"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"streets": streets})
}

// writeError maps the domain failure taxonomy to HTTP statuses. None of
// these are server faults except the remote provider being unreachable.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ambiguous *domain.AmbiguousError
	var remote *domain.RemoteUnavailableError

	switch {
	case errors.Is(err, insight.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyResult):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no property found for this address"})
	case errors.As(err, &ambiguous):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":         "this address requires a unit number",
			"unit_required": true,
			"matches":       ambiguous.Matches,
		})
	case errors.As(err, &remote):
		s.logger.Error("open data provider unavailable", "dataset", remote.Dataset, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "property data source unavailable, try again"})
	default:
		s.logger.Error("lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
