package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RunLocal reads one JSON Lambda event from in, invokes handler and writes
// the indented response to out. It backs APP_ENV=local, e.g.
//
//	echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/email-worker
func RunLocal[E, R any](ctx context.Context, in io.Reader, out io.Writer, handler func(context.Context, E) (R, error)) (R, error) {
	var zero R
	payload, err := io.ReadAll(in)
	if err != nil {
		return zero, fmt.Errorf("read event: %w", err)
	}
	if len(payload) == 0 {
		return zero, errors.New("no event received on stdin")
	}

	var event E
	if err := json.Unmarshal(payload, &event); err != nil {
		return zero, fmt.Errorf("parse event: %w", err)
	}

	resp, err := handler(ctx, event)
	if err != nil {
		return resp, err
	}

	if out != nil {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return resp, fmt.Errorf("encode response: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return resp, nil
}
