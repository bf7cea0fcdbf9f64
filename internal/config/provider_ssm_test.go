package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSMClient struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("decryption not requested")
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		if v, ok := f.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = NewSSMProvider("us-east-1")
}

func TestSSMProviderBatchesAndOmitsInvalid(t *testing.T) {
	values := make(map[string]string)
	var keys []string
	for i := 0; i < 23; i++ {
		key := fmt.Sprintf("/servicehealth/key-%02d", i)
		keys = append(keys, key)
		if i%2 == 0 {
			values[key] = fmt.Sprintf("v%d", i)
		}
	}
	client := &fakeSSMClient{values: values}
	p := NewSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(client.batches) != 3 {
		t.Errorf("expected 3 batches, got %d", len(client.batches))
	}
	for _, b := range client.batches {
		if len(b) > ssmMaxBatchSize {
			t.Errorf("batch exceeds limit: %d", len(b))
		}
	}
	if len(got) != 12 {
		t.Errorf("expected 12 resolved values, got %d", len(got))
	}
	if got["/servicehealth/key-04"] != "v4" {
		t.Errorf("unexpected value for key-04: %q", got["/servicehealth/key-04"])
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	client := &fakeSSMClient{}
	got, err := NewSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || len(client.batches) != 0 {
		t.Errorf("expected no calls and empty result, got %v / %d calls", got, len(client.batches))
	}
}

func TestSSMProviderClientError(t *testing.T) {
	client := &fakeSSMClient{err: errors.New("AccessDenied")}
	_, err := NewSSMProviderWithClient("us-east-1", client).GetParametersBatch(context.Background(), []string{"/a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSSMProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &fakeSSMClient{values: map[string]string{"/a": "1"}}
	_, err := NewSSMProviderWithClient("us-east-1", client).GetParametersBatch(ctx, []string{"/a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
