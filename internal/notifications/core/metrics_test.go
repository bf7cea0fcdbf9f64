package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"servicehealth/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// mockLogger counts error logs.
type mockLogger struct {
	errors []string
}

func (m *mockLogger) Info(string, ...any)        {}
func (m *mockLogger) Warn(string, ...any)        {}
func (m *mockLogger) Error(msg string, _ ...any) { m.errors = append(m.errors, msg) }
func (m *mockLogger) With(...any) types.Logger   { return m }

const testNamespace = "ServiceHealth/Test"

func TestCloudWatchMetrics_RecordDelivery(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, testNamespace, &mockLogger{})

	metrics.RecordDelivery(context.Background(), types.ChannelEmail, MetricRateLimited)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != testNamespace {
		t.Errorf("expected namespace %q, got %q", testNamespace, *input.Namespace)
	}
	if len(input.MetricData) != 1 {
		t.Fatalf("expected 1 metric datum, got %d", len(input.MetricData))
	}

	datum := input.MetricData[0]
	if *datum.MetricName != MetricDeliveryAttempt {
		t.Errorf("expected metric name %q, got %q", MetricDeliveryAttempt, *datum.MetricName)
	}
	if *datum.Value != 1.0 {
		t.Errorf("expected value 1.0, got %f", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", datum.Unit)
	}
	assertDimension(t, datum.Dimensions, DimChannel, string(types.ChannelEmail))
	assertDimension(t, datum.Dimensions, DimResult, string(MetricRateLimited))
}

func TestCloudWatchMetrics_RecordDispatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, testNamespace, &mockLogger{})

	metrics.RecordDispatch(context.Background(), types.ChannelDevOps)

	datum := cw.calls[0].MetricData[0]
	if *datum.MetricName != MetricDispatchCount {
		t.Errorf("expected metric name %q, got %q", MetricDispatchCount, *datum.MetricName)
	}
	if len(datum.Dimensions) != 1 {
		t.Fatalf("expected 1 dimension, got %d", len(datum.Dimensions))
	}
	assertDimension(t, datum.Dimensions, DimChannel, string(types.ChannelDevOps))
}

func TestCloudWatchMetrics_RecordRetryScheduled(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, testNamespace, &mockLogger{})

	metrics.RecordRetryScheduled(context.Background(), 90*time.Second)

	datum := cw.calls[0].MetricData[0]
	if *datum.MetricName != MetricRetryScheduled {
		t.Errorf("expected metric name %q, got %q", MetricRetryScheduled, *datum.MetricName)
	}
	if *datum.Value != 90 {
		t.Errorf("expected value 90, got %f", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitSeconds {
		t.Errorf("expected unit Seconds, got %s", datum.Unit)
	}
	if len(datum.Dimensions) != 0 {
		t.Errorf("expected no dimensions, got %d", len(datum.Dimensions))
	}
}

func TestCloudWatchMetrics_ErrorIsLoggedNotReturned(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	logger := &mockLogger{}
	metrics := NewCloudWatchMetrics(cw, testNamespace, logger)

	metrics.RecordDeadLettered(context.Background(), types.ChannelEmail)

	if len(logger.errors) != 1 {
		t.Fatalf("expected 1 error log, got %d", len(logger.errors))
	}
}

func TestResultFor(t *testing.T) {
	tests := []struct {
		state types.DeliveryState
		want  MetricResult
	}{
		{types.DeliverySent, MetricSuccess},
		{types.DeliverySkipped, MetricSkipped},
		{types.DeliveryRateLimited, MetricRateLimited},
		{types.DeliveryFailed, MetricFailed},
		{types.DeliveryPending, MetricFailed},
	}
	for _, tt := range tests {
		if got := resultFor(tt.state); got != tt.want {
			t.Errorf("resultFor(%s) = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, value string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != value {
				t.Errorf("dimension %s = %q, want %q", name, *d.Value, value)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}
