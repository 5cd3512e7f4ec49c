// Package api exposes the slotwise scheduling engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

// Server is the HTTP API server for the scheduling engine.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *SchedulingHandler
	health  *observability.HealthRegistry
	metrics http.Handler
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new scheduling API server. health and metrics are optional.
func NewServer(cfg ServerConfig, handler *SchedulingHandler, health *observability.HealthRegistry, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		handler: handler,
		health:  health,
		metrics: metrics,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withCorrelation(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	// Entities
	s.mux.HandleFunc("GET /api/v1/entities", s.handler.ListEntities)
	s.mux.HandleFunc("POST /api/v1/entities", s.handler.AddEntity)
	s.mux.HandleFunc("DELETE /api/v1/entities/{entityID}", s.handler.RemoveEntity)
	s.mux.HandleFunc("POST /api/v1/calendar/import", s.handler.ImportCalendar)

	// Placement
	s.mux.HandleFunc("GET /api/v1/slots", s.handler.FindSlots)
	s.mux.HandleFunc("POST /api/v1/suggestions", s.handler.Suggest)

	// Conflicts and remediation
	s.mux.HandleFunc("GET /api/v1/conflicts", s.handler.DetectConflicts)
	s.mux.HandleFunc("GET /api/v1/solutions", s.handler.ProposeSolutions)
	s.mux.HandleFunc("POST /api/v1/solutions/apply", s.handler.ApplySolution)
	s.mux.HandleFunc("GET /api/v1/tokens", s.handler.ListTokens)
	s.mux.HandleFunc("POST /api/v1/tokens/{tokenID}/undo", s.handler.UndoSolution)
}

// handleHealth reports the aggregated backend probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithCorrelationID(r.Context(), r.Header.Get(CorrelationHeader))
		w.Header().Set(CorrelationHeader, observability.CorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting scheduling API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down scheduling API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// writeAPIError writes one of the predefined API errors.
func writeAPIError(w http.ResponseWriter, apiErr *APIError, detail string) {
	body := *apiErr
	if detail != "" {
		body.Message = detail
	}
	writeJSON(w, body.Status, body)
}

// APIError represents an API error.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common API errors
var (
	ErrBadRequest = &APIError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: "Invalid request",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "Resource not found",
	}
	ErrConflict = &APIError{
		Status:  http.StatusConflict,
		Code:    "conflict",
		Message: "Request conflicts with the current schedule",
	}
	ErrInternalServer = &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)
