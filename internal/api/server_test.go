package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehealth/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSweeps struct {
	kinds   []types.SweepKind
	summary SweepSummary
	err     error
	panics  bool
}

func (f *fakeSweeps) RunSweep(ctx context.Context, kind types.SweepKind) (SweepSummary, error) {
	if f.panics {
		panic("boom")
	}
	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return SweepSummary{}, f.err
	}
	s := f.summary
	s.Sweep = kind
	return s, nil
}

type fakeScheduler map[types.SweepKind]time.Time

func (f fakeScheduler) Next(kind types.SweepKind) time.Time { return f[kind] }

func newTestServer(t *testing.T, sweeps *fakeSweeps) *Server {
	t.Helper()
	srv, err := NewServer(sweeps, discardLogger())
	require.NoError(t, err)
	srv.MountRoutes()
	return srv
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, discardLogger())
	assert.Error(t, err)

	_, err = NewServer(&fakeSweeps{}, nil)
	assert.Error(t, err)
}

func TestRunSweep_Success(t *testing.T) {
	sweeps := &fakeSweeps{summary: SweepSummary{Impacts: 2, Outputs: 3, ReportKey: "health-reports/r-1.json"}}
	srv := newTestServer(t, sweeps)

	rec := do(srv, http.MethodPost, "/sweeps/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SweepSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, SweepSummary{Sweep: types.SweepHealth, Impacts: 2, Outputs: 3, ReportKey: "health-reports/r-1.json"}, got)
	assert.Equal(t, []types.SweepKind{types.SweepHealth}, sweeps.kinds)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRunSweep_UnknownKind(t *testing.T) {
	sweeps := &fakeSweeps{}
	srv := newTestServer(t, sweeps)

	rec := do(srv, http.MethodPost, "/sweeps/weekly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sweeps.kinds)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeMalformedInput), body.Error.Code)
}

func TestRunSweep_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"upstream", types.NewAppError(types.ErrCodeUpstreamQueryFailed, "kql rejected", nil), http.StatusBadGateway},
		{"config", types.NewAppError(types.ErrCodeConfigurationMissing, "no azure", nil), http.StatusServiceUnavailable},
		{"generic", errors.New("secret detail"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, &fakeSweeps{err: tt.err}), http.MethodPost, "/sweeps/maintenance")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}

func TestRecoverer(t *testing.T) {
	rec := do(newTestServer(t, &fakeSweeps{panics: true}), http.MethodPost, "/sweeps/health")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeInternalUnexpected))
}

func TestRequestID_Propagated(t *testing.T) {
	srv := newTestServer(t, &fakeSweeps{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestListSweeps(t *testing.T) {
	next := time.Date(2024, 3, 5, 14, 35, 0, 0, time.UTC)
	srv := newTestServer(t, &fakeSweeps{})
	srv.Scheduler = fakeScheduler{types.SweepMaintenance: next}

	rec := do(srv, http.MethodGet, "/sweeps")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []scheduleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, types.SweepMaintenance, got[0].Sweep)
	require.NotNil(t, got[0].NextRun)
	assert.True(t, next.Equal(*got[0].NextRun))
	assert.Nil(t, got[1].NextRun)
}

// --- health ---

type countingProbe struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (p *countingProbe) Name() string { return p.name }

func (p *countingProbe) Check(ctx context.Context) error {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func healthBody(t *testing.T, rec *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec := do(newTestServer(t, &fakeSweeps{}), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", healthBody(t, rec).Status)
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newTestServer(t, &fakeSweeps{})
	a, b := &countingProbe{name: "graph"}, &countingProbe{name: "archive"}
	srv.HealthProbes = []HealthProbe{a, b}

	rec := do(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := healthBody(t, rec)
	assert.Equal(t, "healthy", body.Components["graph"].Status)
	assert.Equal(t, "healthy", body.Components["archive"].Status)
	assert.Equal(t, int32(1), a.calls.Load())
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	srv := newTestServer(t, &fakeSweeps{})
	srv.HealthProbes = []HealthProbe{
		&countingProbe{name: "graph"},
		ProbeFunc{ProbeName: "mail", Fn: func(context.Context) error { return errors.New("relay unreachable") }},
	}

	rec := do(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := healthBody(t, rec)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "relay unreachable", body.Components["mail"].Message)
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	srv := newTestServer(t, &fakeSweeps{})
	srv.HealthProbes = []HealthProbe{ProbeFunc{ProbeName: "bad", Fn: func(context.Context) error { panic("nil map") }}}

	rec := do(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, healthBody(t, rec).Components["bad"].Message, "probe panicked")
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	srv := newTestServer(t, &fakeSweeps{})
	srv.HealthProbes = []HealthProbe{&countingProbe{name: "slow", delay: 10 * time.Second}}

	start := time.Now()
	rec := do(srv, http.MethodGet, "/health")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
