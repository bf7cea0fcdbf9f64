package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"servicehealth/internal/types"
)

// ResendConfig holds the configuration for creating a ResendTransport.
type ResendConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for tests.
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// ResendTransport implements MailTransport using the Resend API.
type ResendTransport struct {
	client *resend.Client
	logger *slog.Logger
}

// NewResendTransport creates a ResendTransport. The HTTP client records the
// status and Retry-After of each response so rate limits can be classified
// without depending on the SDK's error strings.
func NewResendTransport(cfg ResendConfig) (*ResendTransport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &statusRecorder{next: http.DefaultTransport},
	}

	client := resend.NewCustomClient(httpClient, cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeConfigurationMissing, "invalid resend endpoint", err)
		}
		client.BaseURL = u
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendTransport{client: client, logger: logger}, nil
}

// Send delivers msg as a single email with every recipient in To.
func (r *ResendTransport) Send(ctx context.Context, msg MailMessage) (string, error) {
	capture := &responseCapture{}
	ctx = context.WithValue(ctx, responseCaptureKey{}, capture)

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.Reference != "" {
		params.Headers = map[string]string{"X-Tracking-Id": msg.Reference}
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", classifyResendError(err, capture)
	}
	return sent.Id, nil
}

func classifyResendError(err error, capture *responseCapture) error {
	lower := strings.ToLower(err.Error())
	if capture.status == http.StatusTooManyRequests ||
		strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") {
		retryAfter, ok := ParseRetryAfter(capture.retryAfter, time.Now())
		if !ok {
			retryAfter = types.NoRetryAfter
		}
		return types.NewRateLimitedError(fmt.Sprintf("resend rate limit exceeded: %v", err), http.StatusTooManyRequests, retryAfter, err)
	}
	if capture.status >= 500 || capture.status == 0 {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("resend request failed: %v", err), err)
	}
	return types.NewAppError(types.ErrCodeDeliveryFailed, fmt.Sprintf("resend rejected message (%d): %v", capture.status, err), err)
}

type responseCaptureKey struct{}

type responseCapture struct {
	status     int
	retryAfter string
}

// statusRecorder copies response metadata into the request's capture, when
// one is present.
type statusRecorder struct {
	next http.RoundTripper
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if resp != nil {
		if capture, ok := req.Context().Value(responseCaptureKey{}).(*responseCapture); ok {
			capture.status = resp.StatusCode
			capture.retryAfter = resp.Header.Get("Retry-After")
		}
	}
	return resp, err
}

var _ MailTransport = (*ResendTransport)(nil)
