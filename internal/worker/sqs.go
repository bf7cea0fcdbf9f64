// Package worker adapts Lambda triggers to pipeline handlers. Handlers
// return deferred outputs; the adapters flush them only after the handler
// succeeds and report failures back to the trigger.
package worker

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"servicehealth/internal/queue"
	"servicehealth/internal/types"
)

// OutputFlusher writes handler outputs.
type OutputFlusher interface {
	Flush(ctx context.Context, outputs []types.Output) error
}

// SQSBatch processes an SQS batch record by record using partial batch
// responses: a record whose handler or flush fails is returned in
// BatchItemFailures so SQS redelivers only that record.
type SQSBatch struct {
	name    string
	handle  queue.MessageHandler
	flusher OutputFlusher
	logger  types.Logger
}

// NewSQSBatch creates an SQSBatch. name labels log lines.
func NewSQSBatch(name string, handle queue.MessageHandler, flusher OutputFlusher, logger types.Logger) *SQSBatch {
	return &SQSBatch{name: name, handle: handle, flusher: flusher, logger: logger.With("worker", name)}
}

// Handle is the Lambda entry point.
func (b *SQSBatch) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := b.processRecord(ctx, record); err != nil {
			b.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	if n := len(response.BatchItemFailures); n > 0 {
		b.logger.Warn("batch completed with failures", "records", len(sqsEvent.Records), "failures", n)
	}
	return response, nil
}

func (b *SQSBatch) processRecord(ctx context.Context, record events.SQSMessage) error {
	start := time.Now()
	requestID := record.MessageId
	if attr, ok := record.MessageAttributes["request_id"]; ok && attr.StringValue != nil && *attr.StringValue != "" {
		requestID = *attr.StringValue
	}
	logger := b.logger.With("message_id", record.MessageId, "request_id", requestID)
	ctx = types.WithLogger(types.WithRequestID(ctx, requestID), logger)

	outputs, err := b.handle(ctx, []byte(record.Body))
	if err != nil {
		if types.IsMalformedInput(err) {
			// Redelivery cannot fix the payload, so it is acknowledged.
			logger.Warn("discarding malformed message", "error", err.Error())
			return nil
		}
		return err
	}

	if err := b.flusher.Flush(ctx, outputs); err != nil {
		return err
	}

	logger.Info("message processed",
		"outputs", len(outputs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
