package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"servicehealth/internal/security"
	"servicehealth/internal/types"
)

// WebhookClient implements WebhookPoster for the itsm, devops and other
// channels. 429 and 5xx responses are retried by BaseClient; any other
// non-2xx response is a delivery failure, as is a connection refused by
// the egress guard.
type WebhookClient struct {
	base  *BaseClient
	token string
}

// NewWebhookClient creates a WebhookClient. A non-empty token is sent as a
// bearer credential.
func NewWebhookClient(httpClient *http.Client, token string) *WebhookClient {
	base := NewBaseClient(
		httpClient,
		"channel-webhook",
		RetryPolicy{MaxRetries: 2, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
		"ServiceHealth/1.0",
	)
	return NewWebhookClientWithBase(base, token)
}

// NewWebhookClientWithBase creates a WebhookClient with a pre-configured
// BaseClient.
func NewWebhookClientWithBase(base *BaseClient, token string) *WebhookClient {
	return &WebhookClient{base: base, token: token}
}

// Post sends payload as application/json.
func (c *WebhookClient) Post(ctx context.Context, url string, payload []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NewAppError(types.ErrCodeConfigurationMissing, fmt.Sprintf("invalid webhook url %q", url), err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		if errors.Is(err, security.ErrBlocked) {
			return types.NewAppError(types.ErrCodeDeliveryFailed, "webhook target is in a blocked network", err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return types.NewAppError(
		types.ErrCodeDeliveryFailed,
		fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		nil,
	)
}

var _ WebhookPoster = (*WebhookClient)(nil)
