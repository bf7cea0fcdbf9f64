package worker

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLocal(t *testing.T) {
	in := strings.NewReader(`{"Records":[{"messageId":"1","body":"{}"},{"messageId":"2","body":"{}"}]}`)
	var out bytes.Buffer

	handler := func(_ context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		return events.SQSEventResponse{
			BatchItemFailures: []events.SQSBatchItemFailure{{ItemIdentifier: ev.Records[1].MessageId}},
		}, nil
	}

	resp, err := RunLocal(context.Background(), in, &out, handler)
	require.NoError(t, err)
	assert.Equal(t, "2", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Contains(t, out.String(), `"itemIdentifier": "2"`)
}

func TestRunLocal_EmptyInput(t *testing.T) {
	handler := func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
		t.Fatal("handler must not run")
		return events.SQSEventResponse{}, nil
	}
	_, err := RunLocal(context.Background(), strings.NewReader(""), nil, handler)
	assert.Error(t, err)
}
