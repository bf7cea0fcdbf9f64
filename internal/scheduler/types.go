// Package scheduler triggers discovery sweeps.
//
// In AWS the trigger is an EventBridge rule whose payload is a SweepPayload;
// locally a LocalScheduler fires the same sweeps from cron expressions.
package scheduler

import (
	"encoding/json"
	"fmt"

	"servicehealth/internal/types"
)

// SweepPayload is the JSON sent by EventBridge to the discovery function:
//
//	{"sweep": "maintenance"}
type SweepPayload struct {
	Sweep types.SweepKind `json:"sweep"`
}

// ParseSweepPayload decodes and validates an EventBridge payload.
func ParseSweepPayload(raw []byte) (SweepPayload, error) {
	var p SweepPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, types.NewAppError(types.ErrCodeMalformedInput, "invalid sweep payload: "+err.Error(), err)
	}
	if err := ValidateSweep(p.Sweep); err != nil {
		return p, err
	}
	return p, nil
}

// ValidateSweep rejects unknown sweep kinds.
func ValidateSweep(kind types.SweepKind) error {
	switch kind {
	case types.SweepMaintenance, types.SweepHealth:
		return nil
	}
	return types.NewAppError(types.ErrCodeMalformedInput, fmt.Sprintf("unknown sweep %q", kind), nil)
}
