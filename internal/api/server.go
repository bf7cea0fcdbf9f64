// Package api is the HTTP surface of the local runner: a chi router
// exposing health probes and on-demand discovery sweeps. It is mounted by
// cmd/local only; the Lambda workers have no HTTP surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"servicehealth/internal/types"
)

// SweepSummary describes a completed sweep.
type SweepSummary struct {
	Sweep     types.SweepKind `json:"sweep"`
	Impacts   int             `json:"impacts"`
	Outputs   int             `json:"outputs"`
	ReportKey string          `json:"reportKey,omitempty"`
}

// SweepRunner runs a sweep and flushes its outputs.
type SweepRunner interface {
	RunSweep(ctx context.Context, kind types.SweepKind) (SweepSummary, error)
}

// Scheduler reports the next activation of a scheduled sweep.
// scheduler.LocalScheduler implements it.
type Scheduler interface {
	Next(kind types.SweepKind) time.Time
}

// Server holds the dependencies of the ops API.
type Server struct {
	Logger         *slog.Logger
	Sweeps         SweepRunner
	Scheduler      Scheduler
	HealthProbes   []HealthProbe
	RequestTimeout time.Duration

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted by MountRoutes.
func NewServer(sweeps SweepRunner, logger *slog.Logger) (*Server, error) {
	if sweeps == nil {
		return nil, fmt.Errorf("sweep runner must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Logger:         logger,
		Sweeps:         sweeps,
		RequestTimeout: defaultRequestTimeout,
		router:         chi.NewRouter(),
	}, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}
