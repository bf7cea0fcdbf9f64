package queue

import (
	"context"
	"fmt"
	"time"

	"servicehealth/internal/types"
)

// MessagePublisher sends a payload to a logical queue.
type MessagePublisher interface {
	Publish(ctx context.Context, queueName string, payload []byte, delay time.Duration) error
}

// BlobWriter stores a blob under key.
type BlobWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Flusher writes handler outputs to their destinations. Callers flush only
// after the handler returned without error, so a failed handler writes
// nothing.
type Flusher struct {
	queues MessagePublisher
	blobs  BlobWriter
	logger types.Logger
}

// NewFlusher creates a Flusher.
func NewFlusher(queues MessagePublisher, blobs BlobWriter, logger types.Logger) *Flusher {
	return &Flusher{queues: queues, blobs: blobs, logger: logger}
}

// Flush writes outputs in order and stops at the first failure. Outputs
// already written stay written; redelivery of the source message may
// duplicate them, which downstream consumers tolerate.
func (f *Flusher) Flush(ctx context.Context, outputs []types.Output) error {
	for i, out := range outputs {
		var err error
		switch out.Kind {
		case types.OutputQueue:
			err = f.queues.Publish(ctx, out.Destination, out.Payload, out.Delay)
		case types.OutputBlob:
			err = f.blobs.Put(ctx, out.Key, out.Payload, out.ContentType)
		default:
			err = types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("unknown output kind %q", out.Kind), nil)
		}
		if err != nil {
			f.logger.Error("failed to flush output",
				"index", i,
				"kind", string(out.Kind),
				"destination", out.Destination,
				"key", out.Key,
				"error", err.Error(),
			)
			return fmt.Errorf("flush output %d of %d: %w", i+1, len(outputs), err)
		}
	}
	return nil
}
