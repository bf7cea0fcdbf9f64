package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"servicehealth/internal/types"
)

// ObjectHandler consumes one created blob.
type ObjectHandler func(ctx context.Context, key string) ([]types.Output, error)

// S3Objects handles S3 object-created notifications for keys under prefix.
// S3 invokes Lambda asynchronously, so any failed record fails the whole
// invocation and the platform retries it.
type S3Objects struct {
	prefix  string
	handle  ObjectHandler
	flusher OutputFlusher
	logger  types.Logger
}

// NewS3Objects creates an S3Objects adapter.
func NewS3Objects(prefix string, handle ObjectHandler, flusher OutputFlusher, logger types.Logger) *S3Objects {
	return &S3Objects{prefix: prefix, handle: handle, flusher: flusher, logger: logger}
}

// Handle is the Lambda entry point.
func (s *S3Objects) Handle(ctx context.Context, s3Event events.S3Event) error {
	var errs []error
	for _, record := range s3Event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			s.logger.Warn("skipping undecodable object key", "key", record.S3.Object.Key, "error", err.Error())
			continue
		}
		if !strings.HasPrefix(key, s.prefix) {
			s.logger.Info("ignoring object outside prefix", "key", key, "prefix", s.prefix)
			continue
		}
		if err := s.HandleKey(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// HandleKey runs the handler for one key and flushes its outputs. Malformed
// blobs are logged and acknowledged.
func (s *S3Objects) HandleKey(ctx context.Context, key string) error {
	logger := s.logger.With("key", key)
	requestID := types.GetRequestID(ctx)
	if requestID == "" {
		requestID = key
		ctx = types.WithRequestID(ctx, requestID)
	}
	ctx = types.WithLogger(ctx, logger.With("request_id", requestID))

	outputs, err := s.handle(ctx, key)
	if err != nil {
		if types.IsMalformedInput(err) {
			logger.Warn("discarding malformed blob", "error", err.Error())
			return nil
		}
		logger.Error("failed to process blob", "error", err.Error())
		return err
	}
	if err := s.flusher.Flush(ctx, outputs); err != nil {
		return err
	}
	logger.Info("blob processed", "outputs", len(outputs))
	return nil
}
