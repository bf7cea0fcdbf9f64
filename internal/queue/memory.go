package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"servicehealth/internal/types"
)

// MessageHandler consumes one queue message and returns the outputs to
// flush.
type MessageHandler func(ctx context.Context, payload []byte) ([]types.Output, error)

// MemoryBus is an in-process MessagePublisher for local runs. Publishing to
// a queue with a registered handler runs the handler synchronously and
// flushes its outputs back through the bus. Delays are logged, not waited.
type MemoryBus struct {
	logger types.Logger
	blobs  BlobWriter

	mu       sync.Mutex
	handlers map[string]MessageHandler
	messages map[string][][]byte
}

// NewMemoryBus creates a MemoryBus writing blob outputs to blobs.
func NewMemoryBus(blobs BlobWriter, logger types.Logger) *MemoryBus {
	return &MemoryBus{
		logger:   logger,
		blobs:    blobs,
		handlers: make(map[string]MessageHandler),
		messages: make(map[string][][]byte),
	}
}

// Handle registers the consumer of queueName.
func (b *MemoryBus) Handle(queueName string, h MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[queueName] = h
}

// Publish records the message and, when a consumer is registered, delivers
// it immediately.
func (b *MemoryBus) Publish(ctx context.Context, queueName string, payload []byte, delay time.Duration) error {
	b.mu.Lock()
	b.messages[queueName] = append(b.messages[queueName], append([]byte(nil), payload...))
	h := b.handlers[queueName]
	b.mu.Unlock()

	if h == nil {
		b.logger.Info("local queue message parked", "queue", queueName, "delay_seconds", ClampDelay(delay))
		return nil
	}
	if delay > 0 {
		b.logger.Info("local queue ignoring visibility delay", "queue", queueName, "delay_seconds", ClampDelay(delay))
	}

	outputs, err := h(ctx, payload)
	if err != nil {
		return fmt.Errorf("local consumer %s: %w", queueName, err)
	}
	return NewFlusher(b, b.blobs, b.logger).Flush(ctx, outputs)
}

// Messages returns every payload published to queueName.
func (b *MemoryBus) Messages(queueName string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.messages[queueName]...)
}
