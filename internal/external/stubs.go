package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stubs let the workers boot in local/test mode without provider
// credentials. They log every call and return predictable values.
// ---------------------------------------------------------------------------

// StubMailTransport implements MailTransport by logging calls and returning
// a fake message ID.
type StubMailTransport struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []MailMessage
}

// NewStubMailTransport creates a new StubMailTransport.
func NewStubMailTransport(logger *slog.Logger) *StubMailTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubMailTransport{logger: logger}
}

func (s *StubMailTransport) Send(ctx context.Context, msg MailMessage) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send email called",
		"recipients", len(msg.To),
		"subject", msg.Subject,
		"from", msg.From,
	)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return fmt.Sprintf("msg_stub_%s", msg.Reference), nil
}

// Sent returns the messages passed to Send so far.
func (s *StubMailTransport) Sent() []MailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MailMessage(nil), s.sent...)
}

// StubGraphQuerier implements GraphQuerier with canned rows keyed by a
// substring of the query. Unmatched queries return no rows.
type StubGraphQuerier struct {
	logger *slog.Logger
	rows   map[string][]json.RawMessage
}

// NewStubGraphQuerier creates a StubGraphQuerier.
func NewStubGraphQuerier(logger *slog.Logger, rows map[string][]json.RawMessage) *StubGraphQuerier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubGraphQuerier{logger: logger, rows: rows}
}

func (s *StubGraphQuerier) Query(ctx context.Context, query string) ([]json.RawMessage, error) {
	s.logger.InfoContext(ctx, "stub: Resource Graph query called", "query_len", len(query))
	markers := make([]string, 0, len(s.rows))
	for marker := range s.rows {
		markers = append(markers, marker)
	}
	sort.Strings(markers)
	for _, marker := range markers {
		if strings.Contains(strings.ToLower(query), strings.ToLower(marker)) {
			return s.rows[marker], nil
		}
	}
	return nil, nil
}

// StubWebhookPoster implements WebhookPoster by logging the payload size.
type StubWebhookPoster struct {
	logger *slog.Logger
}

// NewStubWebhookPoster creates a StubWebhookPoster.
func NewStubWebhookPoster(logger *slog.Logger) *StubWebhookPoster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubWebhookPoster{logger: logger}
}

func (s *StubWebhookPoster) Post(ctx context.Context, url string, payload []byte, headers map[string]string) error {
	s.logger.InfoContext(ctx, "stub: webhook Post called", "url", url, "payload_len", len(payload), "headers", len(headers))
	return nil
}

var _ MailTransport = (*StubMailTransport)(nil)
var _ GraphQuerier = (*StubGraphQuerier)(nil)
var _ WebhookPoster = (*StubWebhookPoster)(nil)
