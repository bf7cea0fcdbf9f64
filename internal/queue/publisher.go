// Package queue publishes pipeline messages to SQS and flushes handler
// outputs once a handler has returned successfully.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"servicehealth/internal/types"
)

// maxDelaySeconds is the SQS DelaySeconds ceiling.
const maxDelaySeconds = 900

// MaxDelay is the longest visibility delay a message can be published with.
const MaxDelay = maxDelaySeconds * time.Second

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends payloads to queues addressed by logical name
// (types.QueueNotifications, types.QueueRetryEmail, ...).
type Publisher struct {
	client SQSSender
	urls   map[string]string
	logger types.Logger
}

// NewPublisher creates a Publisher. urls maps logical queue names to SQS
// queue URLs; see config.QueueConfig.URLs.
func NewPublisher(client SQSSender, urls map[string]string, logger types.Logger) *Publisher {
	return &Publisher{client: client, urls: urls, logger: logger}
}

// ClampDelay converts delay to SQS DelaySeconds, bounded to [0, 900].
func ClampDelay(delay time.Duration) int32 {
	seconds := int64(delay / time.Second)
	if seconds < 0 {
		return 0
	}
	if seconds > maxDelaySeconds {
		return maxDelaySeconds
	}
	return int32(seconds)
}

// Publish sends payload to the named queue. The message stays invisible to
// consumers for delay. An unmapped queue name is configuration_missing.
func (p *Publisher) Publish(ctx context.Context, queueName string, payload []byte, delay time.Duration) error {
	queueURL, ok := p.urls[queueName]
	if !ok || queueURL == "" {
		return types.NewAppError(
			types.ErrCodeConfigurationMissing,
			fmt.Sprintf("no queue url configured for %q", queueName),
			nil,
		)
	}

	delaySec := ClampDelay(delay)
	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(string(payload)),
		DelaySeconds: delaySec,
	}
	if requestID := types.GetRequestID(ctx); requestID != "" {
		input.MessageAttributes = map[string]sqsTypes.MessageAttributeValue{
			"request_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(requestID),
			},
		}
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send message to %s: %w", queueName, err)
	}

	p.logger.Info("queue message published",
		"queue", queueName,
		"delay_seconds", delaySec,
		"bytes", len(payload),
	)
	return nil
}
