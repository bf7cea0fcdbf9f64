package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"servicehealth/internal/types"
)

// Metric names and dimensions.
const (
	MetricDispatchCount   = "DispatchCount"
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricRetryScheduled  = "RetryScheduled"
	MetricDeadLettered    = "DeadLettered"

	DimChannel = "Channel"
	DimResult  = "Result"
)

// MetricResult is the Result dimension of DeliveryAttempt.
type MetricResult string

const (
	MetricSuccess     MetricResult = "success"
	MetricSkipped     MetricResult = "skipped"
	MetricRateLimited MetricResult = "rate_limited"
	MetricFailed      MetricResult = "failed"
)

// resultFor maps a delivery state to its metric result.
func resultFor(state types.DeliveryState) MetricResult {
	switch state {
	case types.DeliverySent:
		return MetricSuccess
	case types.DeliverySkipped:
		return MetricSkipped
	case types.DeliveryRateLimited:
		return MetricRateLimited
	}
	return MetricFailed
}

// Metrics records pipeline telemetry. Implementations never fail the
// caller.
type Metrics interface {
	RecordDispatch(ctx context.Context, channel types.ChannelType)
	RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult)
	RecordRetryScheduled(ctx context.Context, delay time.Duration)
	RecordDeadLettered(ctx context.Context, channel types.ChannelType)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits metrics to AWS CloudWatch:
//
//   - DispatchCount: Dims {Channel} -- one per channel message fanned out
//   - DeliveryAttempt: Dims {Channel, Result} -- on every delivery outcome
//   - RetryScheduled: no dims, value is the delay in seconds
//   - DeadLettered: Dims {Channel}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, channel types.ChannelType) {
	m.put(ctx, MetricDispatchCount, 1, cwtypes.StandardUnitCount, dim(DimChannel, string(channel)))
}

// RecordDelivery emits DeliveryAttempt, e.g. {Channel: "email", Result: "rate_limited"}.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult) {
	m.put(ctx, MetricDeliveryAttempt, 1, cwtypes.StandardUnitCount,
		dim(DimChannel, string(channel)),
		dim(DimResult, string(result)),
	)
}

func (m *CloudWatchMetrics) RecordRetryScheduled(ctx context.Context, delay time.Duration) {
	m.put(ctx, MetricRetryScheduled, delay.Seconds(), cwtypes.StandardUnitSeconds)
}

func (m *CloudWatchMetrics) RecordDeadLettered(ctx context.Context, channel types.ChannelType) {
	m.put(ctx, MetricDeadLettered, 1, cwtypes.StandardUnitCount, dim(DimChannel, string(channel)))
}

func (m *CloudWatchMetrics) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Dimensions: dims,
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"metric", name,
			"error", err.Error(),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NopMetrics discards everything. Used in local mode and when metrics are
// disabled.
type NopMetrics struct{}

func (NopMetrics) RecordDispatch(context.Context, types.ChannelType)               {}
func (NopMetrics) RecordDelivery(context.Context, types.ChannelType, MetricResult) {}
func (NopMetrics) RecordRetryScheduled(context.Context, time.Duration)             {}
func (NopMetrics) RecordDeadLettered(context.Context, types.ChannelType)           {}

var (
	_ Metrics = (*CloudWatchMetrics)(nil)
	_ Metrics = NopMetrics{}
)
