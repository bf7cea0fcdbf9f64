package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"servicehealth/internal/scheduler"
	"servicehealth/internal/types"
)

type scheduleStatus struct {
	Sweep   types.SweepKind `json:"sweep"`
	NextRun *time.Time      `json:"nextRun,omitempty"`
}

// HandleListSweeps reports the known sweeps and, when a scheduler is
// attached, their next activation.
func (s *Server) HandleListSweeps(w http.ResponseWriter, r *http.Request) {
	kinds := []types.SweepKind{types.SweepMaintenance, types.SweepHealth}
	out := make([]scheduleStatus, 0, len(kinds))
	for _, kind := range kinds {
		st := scheduleStatus{Sweep: kind}
		if s.Scheduler != nil {
			if next := s.Scheduler.Next(kind); !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	JSON(w, r, http.StatusOK, out)
}

// HandleRunSweep runs the sweep named in the path synchronously.
func (s *Server) HandleRunSweep(w http.ResponseWriter, r *http.Request) {
	kind := types.SweepKind(chi.URLParam(r, "kind"))
	if err := scheduler.ValidateSweep(kind); err != nil {
		Error(w, r, err)
		return
	}

	summary, err := s.Sweeps.RunSweep(r.Context(), kind)
	if err != nil {
		s.Logger.Error("manual sweep failed",
			"sweep", string(kind),
			"request_id", types.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, summary)
}
