package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehealth/internal/inventory"
	"servicehealth/internal/types"
)

type fakeSource struct {
	issues []types.HealthIssue
	err    error
}

func (f *fakeSource) ActiveIssues(context.Context, []types.EventType) ([]types.HealthIssue, error) {
	return f.issues, f.err
}

func (f *fakeSource) AdvisoryImpactedResources(_ context.Context, ids []string) ([]types.ImpactedResource, error) {
	return nil, nil
}

func (f *fakeSource) MaintenanceImpactedResources(_ context.Context, ids []string) ([]types.ImpactedResource, error) {
	out := make([]types.ImpactedResource, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.ImpactedResource{ResourceID: "/r/" + id, Name: "vm", TrackingID: id})
	}
	return out, nil
}

func (f *fakeSource) ImpactedSubscriptions(context.Context, []string) ([]types.ImpactedSubscription, error) {
	return nil, nil
}

type recordingFlusher struct {
	outputs []types.Output
	err     error
}

func (r *recordingFlusher) Flush(_ context.Context, outputs []types.Output) error {
	r.outputs = append(r.outputs, outputs...)
	return r.err
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC) }

type fixedID struct{}

func (fixedID) NewID() string { return "id" }

func newTestHandler(source inventory.Source, flusher *recordingFlusher) *Handler {
	discoverer := inventory.NewDiscoverer(source, types.NopLogger{})
	return &Handler{
		sweeper: inventory.NewSweeper(discoverer, "none", fixedClock{}, fixedID{}, types.NopLogger{}),
		flusher: flusher,
		logger:  types.NopLogger{},
	}
}

func maintenanceIssue(id string) types.HealthIssue {
	return types.HealthIssue{TrackingID: id, EventType: types.EventPlannedMaintenance, Summary: "window"}
}

func TestHandle_HealthSweepFlushesNotificationsAndReport(t *testing.T) {
	flusher := &recordingFlusher{}
	h := newTestHandler(&fakeSource{issues: []types.HealthIssue{maintenanceIssue("A"), maintenanceIssue("B")}}, flusher)

	resp, err := h.Handle(context.Background(), json.RawMessage(`{"sweep":"health"}`))
	require.NoError(t, err)

	assert.Equal(t, types.SweepHealth, resp.Sweep)
	assert.Equal(t, 2, resp.Impacts)
	assert.Equal(t, 3, resp.Outputs)
	assert.Equal(t, types.PrefixReports+"r-20240305T235900Z-id.json", resp.ReportKey)

	require.Len(t, flusher.outputs, 3)
	assert.Equal(t, types.QueueNotifications, flusher.outputs[0].Destination)
	assert.Equal(t, types.OutputBlob, flusher.outputs[2].Kind)
}

func TestHandle_MaintenanceSweepWritesNoReport(t *testing.T) {
	flusher := &recordingFlusher{}
	h := newTestHandler(&fakeSource{issues: []types.HealthIssue{maintenanceIssue("A")}}, flusher)

	resp, err := h.Handle(context.Background(), json.RawMessage(`{"sweep":"maintenance"}`))
	require.NoError(t, err)
	assert.Empty(t, resp.ReportKey)
	assert.Len(t, flusher.outputs, 1)
}

func TestHandle_QueryFailureFlushesNothing(t *testing.T) {
	flusher := &recordingFlusher{}
	h := newTestHandler(&fakeSource{err: types.NewAppError(types.ErrCodeUpstreamQueryFailed, "bad kql", nil)}, flusher)

	_, err := h.Handle(context.Background(), json.RawMessage(`{"sweep":"health"}`))
	assert.Equal(t, types.ErrCodeUpstreamQueryFailed, types.CodeOf(err))
	assert.Empty(t, flusher.outputs)
}

func TestHandle_FlushFailureIsReturned(t *testing.T) {
	flusher := &recordingFlusher{err: errors.New("sqs down")}
	h := newTestHandler(&fakeSource{issues: []types.HealthIssue{maintenanceIssue("A")}}, flusher)

	_, err := h.Handle(context.Background(), json.RawMessage(`{"sweep":"maintenance"}`))
	assert.EqualError(t, err, "sqs down")
}

func TestHandle_UnknownSweep(t *testing.T) {
	h := newTestHandler(&fakeSource{}, &recordingFlusher{})

	_, err := h.Handle(context.Background(), json.RawMessage(`{"sweep":"weekly"}`))
	assert.True(t, types.IsMalformedInput(err))
}
