package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider over process environment
// variables.
type EnvVarProvider struct {
	lookup envLookup
}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

// GetParametersBatch looks each key up as an environment variable. Empty
// values are treated as unset.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := lookup(key); ok && val != "" {
			result[key] = val
		}
	}
	return result, nil
}
