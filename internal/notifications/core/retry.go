package core

import (
	"context"
	"encoding/json"
	"errors"

	"servicehealth/internal/queue"
	"servicehealth/internal/types"
)

// Outcome is the resolved delivery state and the outputs it implies.
type Outcome struct {
	State   types.DeliveryState
	Outputs []types.Output
}

// RetryOrchestrator maps a send outcome onto the delivery state machine:
//
//	PENDING -> SENT          send succeeded (or mail is disabled: SKIPPED)
//	PENDING -> RATE_LIMITED  notification requeued on retry-email after retry-after
//	PENDING -> FAILED        failure message written to failed-email
//
// There is no attempt cap; the queue's max receive count bounds redelivery.
type RetryOrchestrator struct {
	metrics Metrics
	logger  types.Logger
}

// NewRetryOrchestrator creates a RetryOrchestrator.
func NewRetryOrchestrator(metrics Metrics, logger types.Logger) *RetryOrchestrator {
	return &RetryOrchestrator{metrics: metrics, logger: logger}
}

// Resolve classifies sendErr. Errors that are neither rate limits nor
// delivery failures are returned so the trigger retries the source message.
func (r *RetryOrchestrator) Resolve(ctx context.Context, n types.EmailNotification, result types.SendResult, sendErr error) (Outcome, error) {
	logger := types.LoggerFromContext(ctx, r.logger).With("tracking_id", n.TrackingID)

	if sendErr == nil {
		state := types.DeliverySent
		if result.State == types.DeliverySkipped {
			state = types.DeliverySkipped
		}
		r.metrics.RecordDelivery(ctx, types.ChannelEmail, resultFor(state))
		return Outcome{State: state}, nil
	}

	if info, ok := types.IsRateLimited(sendErr); ok {
		payload, err := json.Marshal(n)
		if err != nil {
			return Outcome{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode retry notification", err)
		}
		delay := min(info.Delay(), queue.MaxDelay)

		r.metrics.RecordDelivery(ctx, types.ChannelEmail, MetricRateLimited)
		r.metrics.RecordRetryScheduled(ctx, delay)
		logger.Info("email delivery retry scheduled",
			"status", info.Status,
			"delay_seconds", int(delay.Seconds()),
		)
		return Outcome{
			State:   types.DeliveryRateLimited,
			Outputs: []types.Output{types.QueueOutput(types.QueueRetryEmail, payload, delay)},
		}, nil
	}

	if types.IsDeliveryFailed(sendErr) {
		message := sendErr.Error()
		var appErr *types.AppError
		if errors.As(sendErr, &appErr) {
			message = appErr.Message
		}

		r.metrics.RecordDelivery(ctx, types.ChannelEmail, MetricFailed)
		r.metrics.RecordDeadLettered(ctx, types.ChannelEmail)
		logger.Error("email delivery permanently failed", "reason", message)
		return Outcome{
			State:   types.DeliveryFailed,
			Outputs: []types.Output{types.QueueOutput(types.QueueFailedEmail, []byte(message), 0)},
		}, nil
	}

	logger.Error("email delivery raised an unexpected error", "error", sendErr.Error())
	return Outcome{State: types.DeliveryPending}, sendErr
}
