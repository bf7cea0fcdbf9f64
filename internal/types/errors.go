package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is a typed string for categorizing pipeline errors.
type ErrorCode string

// Error codes used across the pipeline.
// Handlers MUST use these constants instead of hardcoded strings.
const (
	// Delivery
	ErrCodeRateLimited    ErrorCode = "delivery_rate_limited"
	ErrCodeDeliveryFailed ErrorCode = "delivery_failed"

	// Upstream
	ErrCodeUpstreamQueryFailed ErrorCode = "upstream_query_failed"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"

	// Configuration / input
	ErrCodeConfigurationMissing ErrorCode = "configuration_missing"
	ErrCodeMalformedInput       ErrorCode = "malformed_input"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// DefaultRetryAfter is applied when a rate-limited response carries no usable
// retry-after value.
const DefaultRetryAfter = 60 * time.Second

// NoRetryAfter tells NewRateLimitedError the upstream gave no usable
// retry-after value.
const NoRetryAfter time.Duration = -1

// RetryInfo is attached to rate-limited failures and drives the requeue delay.
type RetryInfo struct {
	Message    string        `json:"message"`
	Status     int           `json:"status"`
	RetryAfter time.Duration `json:"retryAfter"`
	// HasRetryAfter is false when the upstream sent no usable value; an
	// explicit zero is a valid immediate retry.
	HasRetryAfter bool `json:"hasRetryAfter"`
}

// Delay returns the requeue delay, substituting DefaultRetryAfter only when
// the upstream gave no value.
func (r *RetryInfo) Delay() time.Duration {
	if r == nil || !r.HasRetryAfter || r.RetryAfter < 0 {
		return DefaultRetryAfter
	}
	return r.RetryAfter
}

// AppError is the standard error type used throughout the pipeline.
// The Code field is the discriminator; Retry is only populated for
// ErrCodeRateLimited.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Retry   *RetryInfo     `json:"retry,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Retry:   e.Retry,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError builds the rate-limited variant. A negative
// retryAfter (NoRetryAfter) marks the value as absent; zero is kept.
func NewRateLimitedError(message string, status int, retryAfter time.Duration, err error) *AppError {
	info := &RetryInfo{Message: message, Status: status}
	if retryAfter >= 0 {
		info.RetryAfter = retryAfter
		info.HasRetryAfter = true
	}
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
		Err:     err,
		Retry:   info,
	}
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or the
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRateLimited reports whether err is a rate-limited delivery failure and
// returns its retry information.
func IsRateLimited(err error) (*RetryInfo, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != ErrCodeRateLimited {
		return nil, false
	}
	if appErr.Retry == nil {
		return &RetryInfo{Message: appErr.Message, Status: 429}, true
	}
	return appErr.Retry, true
}

// IsDeliveryFailed reports whether err is a permanent delivery failure.
func IsDeliveryFailed(err error) bool {
	return CodeOf(err) == ErrCodeDeliveryFailed
}

// IsMalformedInput reports whether err is an ignorable malformed-input error.
func IsMalformedInput(err error) bool {
	return CodeOf(err) == ErrCodeMalformedInput
}
