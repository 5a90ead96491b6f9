// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/biasaudit/internal/app"
	"github.com/okian/biasaudit/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	Submit(ctx context.Context, req service.EvaluationRequest) (service.SubmitResult, error)
	Evaluate(ctx context.Context, req service.EvaluationRequest) (model.Report, error)
	Report(ctx context.Context, id string) (model.Report, error)
	Reports(ctx context.Context, limit int) ([]model.Report, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	evaluationsHandler *EvaluationsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		evaluationsHandler: NewEvaluationsHandler(deps, opts...),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /evaluations", MetricsMiddleware(s.evaluationsHandler.HandleSubmit, "evaluations_submit"))
	mux.HandleFunc("POST /evaluations/sync", MetricsMiddleware(s.evaluationsHandler.HandleEvaluate, "evaluations_sync"))
	mux.HandleFunc("GET /evaluations", MetricsMiddleware(s.evaluationsHandler.HandleList, "evaluations_list"))
	mux.HandleFunc("GET /evaluations/{id}", MetricsMiddleware(s.evaluationsHandler.HandleGet, "evaluations_get"))
}
