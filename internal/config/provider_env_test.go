package config

import (
	"context"
	"testing"
)

func TestEnvVarProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = NewEnvVarProvider()
}

func TestEnvVarProviderResolves(t *testing.T) {
	t.Setenv("SERVICEHEALTH_TEST_SET", "value")
	t.Setenv("SERVICEHEALTH_TEST_EMPTY", "")

	p := NewEnvVarProvider()
	got, err := p.GetParametersBatch(context.Background(), []string{
		"SERVICEHEALTH_TEST_SET",
		"SERVICEHEALTH_TEST_EMPTY",
		"SERVICEHEALTH_TEST_MISSING",
	})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 resolved key, got %v", got)
	}
	if got["SERVICEHEALTH_TEST_SET"] != "value" {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestEnvVarProviderEmptyKeys(t *testing.T) {
	got, err := NewEnvVarProvider().GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}
}
