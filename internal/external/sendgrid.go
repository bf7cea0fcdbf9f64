package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"servicehealth/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
// Overridable in tests via SendGridConfig.BaseURL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridConfig holds the configuration for creating a SendGridTransport.
type SendGridConfig struct {
	APIKey  string
	BaseURL string // defaults to sendGridAPIBase
	Logger  *slog.Logger
}

// SendGridTransport implements MailTransport over the SendGrid v3 Mail Send
// API. Requests go through BaseClient with retries disabled: a 429 must reach
// the retry orchestrator instead of being absorbed in-process.
type SendGridTransport struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewSendGridTransport creates a SendGridTransport.
func NewSendGridTransport(httpClient *http.Client, cfg SendGridConfig) *SendGridTransport {
	base := NewBaseClient(
		httpClient,
		"sendgrid",
		RetryPolicy{MaxRetries: 0, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
		"ServiceHealth/1.0",
	)
	return NewSendGridTransportWithBase(base, cfg)
}

// NewSendGridTransportWithBase creates a SendGridTransport with a
// pre-configured BaseClient.
func NewSendGridTransportWithBase(base *BaseClient, cfg SendGridConfig) *SendGridTransport {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SendGridTransport{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Send posts the message to /v3/mail/send and returns the X-Message-Id
// header.
//
// Error mapping:
//   - 429 -> handled by BaseClient (ErrCodeRateLimited with Retry-After)
//   - 5xx, network, open breaker -> handled by BaseClient (ErrCodeUpstreamUnavailable)
//   - other 4xx -> ErrCodeDeliveryFailed
func (s *SendGridTransport) Send(ctx context.Context, msg MailMessage) (string, error) {
	body, err := json.Marshal(buildSendGridPayload(msg))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal SendGrid mail payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create SendGrid mail send request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}

	return "", s.handleErrorResponse(resp)
}

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// buildSendGridPayload puts every recipient in a single personalization so
// SendGrid sends one message. text/plain must precede text/html.
func buildSendGridPayload(msg MailMessage) sendGridMailPayload {
	to := make([]sendGridAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sendGridAddress{Email: addr})
	}

	var content []sendGridContent
	if msg.Text != "" {
		content = append(content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{{To: to}},
		From:             sendGridAddress{Email: msg.From},
		Subject:          msg.Subject,
		Content:          content,
	}
	if msg.Reference != "" {
		payload.CustomArgs = map[string]string{"tracking_id": msg.Reference}
	}
	return payload
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func (s *SendGridTransport) handleErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeDeliveryFailed,
			fmt.Sprintf("SendGrid returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	errMsg := strings.TrimSpace(string(body))
	var sgErr sendGridErrorResponse
	if json.Unmarshal(body, &sgErr) == nil && len(sgErr.Errors) > 0 {
		errMsg = sgErr.Errors[0].Message
	}

	s.logger.Warn("SendGrid rejected message", "status", resp.StatusCode, "error", errMsg)
	return types.NewAppError(
		types.ErrCodeDeliveryFailed,
		fmt.Sprintf("SendGrid error (%d): %s", resp.StatusCode, errMsg),
		nil,
	)
}

var _ MailTransport = (*SendGridTransport)(nil)
