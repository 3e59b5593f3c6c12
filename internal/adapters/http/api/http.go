// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/judgeflow/internal/adapters/repository"
	service "github.com/okian/judgeflow/internal/app"
	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	GenerateDependencies
	AssignmentDependencies
	CoverageDependencies
}

// GenerateDependencies covers committing and previewing plans.
type GenerateDependencies interface {
	Generate(ctx context.Context, requestID string, req model.GenerateRequest) (service.GenerateResult, error)
	Preview(ctx context.Context, req model.GenerateRequest) (model.GeneratePlan, error)
}

// AssignmentDependencies covers the assignment lifecycle after generation.
type AssignmentDependencies interface {
	Submit(ctx context.Context, assignmentID string, scores map[string]int) (model.Assignment, error)
	Cancel(ctx context.Context, assignmentID string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	generateHandler   *GenerateHandler
	coverageHandler   *CoverageHandler
	assignmentHandler *AssignmentHandler
	auth              *Authenticator
	logger            logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator guards admin routes with auth.
func WithAuthenticator(auth *Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.generateHandler = NewGenerateHandler(deps, s.logger)
	s.coverageHandler = NewCoverageHandler(deps)
	s.assignmentHandler = NewAssignmentHandler(deps, s.logger)
	return s
}

// Router builds a chi router with the standard middleware stack and every
// API route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/floors/{floorID}", func(r chi.Router) {
		r.Post("/preview", MetricsMiddleware(s.generateHandler.HandlePreview, "preview"))
		r.Get("/coverage", MetricsMiddleware(s.coverageHandler.HandleCoverage, "coverage"))
		r.With(s.auth.RequireAdmin).
			Post("/generate", MetricsMiddleware(s.generateHandler.HandleGenerate, "generate"))
	})

	r.Route("/assignments/{assignmentID}", func(r chi.Router) {
		r.Use(s.auth.RequireAdmin)
		r.Post("/submit", MetricsMiddleware(s.assignmentHandler.HandleSubmit, "submit"))
		r.Delete("/", MetricsMiddleware(s.assignmentHandler.HandleCancel, "cancel"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor translates service and store errors into an HTTP status and
// a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, allocation.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrCommitConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func failWith(l logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", chimiddleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
