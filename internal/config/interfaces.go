package config

import "context"

// SecretProvider abstracts secret retrieval so the same callers work against
// AWS SSM Parameter Store and plain environment variables.
type SecretProvider interface {
	// GetParametersBatch resolves keys and returns key -> plaintext value for
	// every key that exists. Missing keys are omitted, not reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
