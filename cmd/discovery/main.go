// Package main is the entrypoint for the Discovery Lambda function.
//
// EventBridge invokes it with {"sweep": "maintenance"} every five minutes
// and {"sweep": "health"} daily. Each invocation queries Resource Graph,
// enqueues one notifications message per HealthImpact and, for the health
// sweep, writes the consolidated report blob that triggers the report
// worker.
package main

import (
	"context"
	"encoding/json"
	"os"

	"servicehealth/internal/app"
	"servicehealth/internal/inventory"
	"servicehealth/internal/scheduler"
	"servicehealth/internal/types"
	"servicehealth/internal/worker"
)

const serviceName = "discovery"

// Response summarizes a sweep for the Lambda caller.
type Response struct {
	Sweep     types.SweepKind `json:"sweep"`
	Impacts   int             `json:"impacts"`
	Outputs   int             `json:"outputs"`
	ReportKey string          `json:"reportKey,omitempty"`
}

// Handler runs the requested sweep and flushes its outputs.
type Handler struct {
	sweeper *inventory.Sweeper
	flusher worker.OutputFlusher
	logger  types.Logger
}

// Handle processes one EventBridge payload. Outputs are flushed only after
// the sweep completed, so a failed query enqueues nothing.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (Response, error) {
	payload, err := scheduler.ParseSweepPayload(event)
	if err != nil {
		h.logger.Error("rejected sweep payload", "error", err.Error())
		return Response{}, err
	}

	invocationID := types.UUIDGenerator{}.NewID()
	logger := h.logger.With("sweep", string(payload.Sweep), "request_id", invocationID)
	ctx = types.WithLogger(types.WithRequestID(ctx, invocationID), logger)

	result, err := h.sweeper.Run(ctx, payload.Sweep)
	if err != nil {
		logger.Error("sweep failed", "error", err.Error())
		return Response{}, err
	}
	if err := h.flusher.Flush(ctx, result.Outputs); err != nil {
		return Response{}, err
	}

	logger.Info("sweep completed", "impacts", len(result.Impacts), "outputs", len(result.Outputs))
	return Response{
		Sweep:     payload.Sweep,
		Impacts:   len(result.Impacts),
		Outputs:   len(result.Outputs),
		ReportKey: result.ReportKey,
	}, nil
}

func main() {
	ctx := context.Background()
	rt, err := app.Bootstrap(ctx, serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	graph, err := rt.Clients.RequireGraph()
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}
	client := inventory.NewClient(graph, rt.Log.With("component", "inventory"))
	discoverer := inventory.NewDiscoverer(client, rt.Log.With("component", "discoverer"))

	handler := &Handler{
		sweeper: inventory.NewSweeper(discoverer, rt.Config.Dispatch.ArchiveCompression, rt.Clock, rt.IDs, rt.Log.With("component", "sweeper")),
		flusher: rt.Flusher(),
		logger:  rt.Log,
	}

	rt.Logger.Info("discovery initialized", "subscriptions", len(rt.Config.Azure.Subscriptions))
	app.Start(rt, handler.Handle)
}
