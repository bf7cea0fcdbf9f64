package types

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeDeliveryFailed,
		Message: "mailbox unavailable",
	}

	expected := "delivery_failed: mailbox unavailable"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeUpstreamQueryFailed, "query failed", underlying)

	if !errors.Is(appErr, underlying) {
		t.Errorf("errors.Is should find the underlying error")
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewRateLimitedError("slow down", 429, 30*time.Second, nil)
	withDetails := orig.WithDetails(map[string]any{"provider": "sendgrid"})

	if orig.Details != nil {
		t.Errorf("original details mutated: %v", orig.Details)
	}
	if withDetails.Details["provider"] != "sendgrid" {
		t.Errorf("details not merged: %v", withDetails.Details)
	}
	if withDetails.Retry != orig.Retry {
		t.Errorf("retry info should be carried over")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantOK    bool
		wantDelay time.Duration
	}{
		{
			name:      "explicit retry-after",
			err:       NewRateLimitedError("throttled", 429, 30*time.Second, nil),
			wantOK:    true,
			wantDelay: 30 * time.Second,
		},
		{
			name:      "wrapped",
			err:       fmt.Errorf("send: %w", NewRateLimitedError("throttled", 429, 5*time.Second, nil)),
			wantOK:    true,
			wantDelay: 5 * time.Second,
		},
		{
			name:      "explicit zero retry-after is immediate",
			err:       NewRateLimitedError("throttled", 429, 0, nil),
			wantOK:    true,
			wantDelay: 0,
		},
		{
			name:      "missing retry-after uses default",
			err:       NewRateLimitedError("throttled", 429, NoRetryAfter, nil),
			wantOK:    true,
			wantDelay: DefaultRetryAfter,
		},
		{
			name:      "negative retry-after uses default",
			err:       NewRateLimitedError("throttled", 429, -4*time.Second, nil),
			wantOK:    true,
			wantDelay: DefaultRetryAfter,
		},
		{
			name:      "code without retry payload",
			err:       NewAppError(ErrCodeRateLimited, "throttled", nil),
			wantOK:    true,
			wantDelay: DefaultRetryAfter,
		},
		{
			name:   "delivery failure",
			err:    NewAppError(ErrCodeDeliveryFailed, "rejected", nil),
			wantOK: false,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := IsRateLimited(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("IsRateLimited ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := info.Delay(); got != tt.wantDelay {
				t.Errorf("Delay() = %v, want %v", got, tt.wantDelay)
			}
		})
	}
}

func TestClassifiers(t *testing.T) {
	failed := fmt.Errorf("wrap: %w", NewAppError(ErrCodeDeliveryFailed, "x", nil))
	malformed := NewAppError(ErrCodeMalformedInput, "truncated", nil)

	if !IsDeliveryFailed(failed) {
		t.Error("expected IsDeliveryFailed to be true")
	}
	if IsDeliveryFailed(malformed) {
		t.Error("malformed input is not a delivery failure")
	}
	if !IsMalformedInput(malformed) {
		t.Error("expected IsMalformedInput to be true")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf on a plain error should be empty")
	}
}
