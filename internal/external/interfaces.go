package external

import (
	"context"
	"encoding/json"
)

// ---------------------------------------------------------------------------
// Mail Transports
// ---------------------------------------------------------------------------

// MailMessage is one outbound message. All recipients share a single send.
type MailMessage struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
	// Reference correlates the message with a tracking ID. Transports that
	// support tags or custom args attach it.
	Reference string
}

// MailTransport delivers a rendered message and returns the provider's
// message ID.
//
// Rate limits surface as types.ErrCodeRateLimited with RetryInfo attached.
// Permanent rejections surface as types.ErrCodeDeliveryFailed.
type MailTransport interface {
	Send(ctx context.Context, msg MailMessage) (providerMsgID string, err error)
}

// ---------------------------------------------------------------------------
// Inventory (Azure Resource Graph)
// ---------------------------------------------------------------------------

// GraphQuerier runs a Resource Graph query and returns every row across all
// result pages.
type GraphQuerier interface {
	Query(ctx context.Context, query string) ([]json.RawMessage, error)
}

// ---------------------------------------------------------------------------
// Channel webhooks
// ---------------------------------------------------------------------------

// WebhookPoster posts a JSON document to a channel endpoint. headers are
// added to the request, e.g. a payload signature.
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload []byte, headers map[string]string) error
}
