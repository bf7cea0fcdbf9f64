package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"servicehealth/internal/storage"
	"servicehealth/internal/types"
)

// SweepResult is the outcome of one discovery sweep.
type SweepResult struct {
	Impacts []types.HealthImpact
	Outputs []types.Output
	// ReportKey is the report blob key, empty when no report was written.
	ReportKey string
}

// Sweeper runs a discovery sweep and turns its impacts into outputs: one
// notifications message per impact, plus the consolidated report blob for
// sweeps that write one.
type Sweeper struct {
	discoverer  *Discoverer
	compression string
	clock       types.Clock
	ids         types.IDGenerator
	logger      types.Logger
}

// NewSweeper creates a Sweeper. compression ("none" or "zstd") applies to the
// report blob, which then carries the compressed key suffix.
func NewSweeper(discoverer *Discoverer, compression string, clock types.Clock, ids types.IDGenerator, logger types.Logger) *Sweeper {
	return &Sweeper{discoverer: discoverer, compression: compression, clock: clock, ids: ids, logger: logger}
}

// Run executes sweep. Nothing is produced when no issue is active.
func (s *Sweeper) Run(ctx context.Context, sweep types.SweepKind) (SweepResult, error) {
	if sweep.EventTypes() == nil {
		return SweepResult{}, types.NewAppError(types.ErrCodeMalformedInput, fmt.Sprintf("unknown sweep %q", sweep), nil)
	}

	impacts, err := s.discoverer.Discover(ctx, sweep)
	if err != nil {
		return SweepResult{}, err
	}
	result := SweepResult{Impacts: impacts}
	if len(impacts) == 0 {
		return result, nil
	}

	for _, impact := range impacts {
		payload, err := json.Marshal(impact)
		if err != nil {
			return SweepResult{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode health impact", err)
		}
		result.Outputs = append(result.Outputs, types.QueueOutput(types.QueueNotifications, payload, 0))
	}

	if sweep.WritesReport() {
		report, err := json.Marshal(impacts)
		if err != nil {
			return SweepResult{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode report", err)
		}
		key := storage.BlobKey(types.PrefixReports, "r", s.clock.Now(), s.ids.NewID(), "json")
		key, body := storage.Encode(s.compression, key, report)
		result.ReportKey = key
		result.Outputs = append(result.Outputs, types.BlobOutput(key, body, "application/json"))
	}

	s.logger.Info("sweep produced outputs",
		"sweep", string(sweep),
		"impacts", len(impacts),
		"report_key", result.ReportKey,
	)
	return result, nil
}
