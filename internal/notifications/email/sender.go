// Package email delivers rendered notifications through the configured
// mail transport and classifies the outcome for the retry orchestrator.
package email

import (
	"context"
	"fmt"
	"strings"

	"servicehealth/internal/config"
	"servicehealth/internal/external"
	"servicehealth/internal/types"
)

// TransportFactory builds a mail transport from settings resolved for the
// current invocation. external.ClientRegistry implements it.
type TransportFactory interface {
	MailTransport(settings config.MailSettings) (external.MailTransport, error)
}

// Sender sends one EmailNotification as a single message to all of its
// recipients.
type Sender struct {
	transports TransportFactory
	sendMail   bool
	logger     types.Logger
}

// SenderConfig holds the dependencies needed to create a Sender.
type SenderConfig struct {
	Transports TransportFactory
	// SendMail gates outbound mail; when false Send reports Skipped.
	SendMail bool
	Logger   types.Logger
}

// NewSender creates a Sender.
func NewSender(cfg SenderConfig) *Sender {
	return &Sender{transports: cfg.Transports, sendMail: cfg.SendMail, logger: cfg.Logger}
}

// Send delivers n. Outcomes:
//
//   - success: SendResult{State: SENT}
//   - mail disabled: SendResult{State: SKIPPED}, transport untouched
//   - rate limited: the transport's delivery_rate_limited error, unchanged
//   - no recipients or any other transport failure: delivery_failed
//
// Errors raised before the transport is reached (building it from
// settings) are returned as-is so the trigger retries the message.
func (s *Sender) Send(ctx context.Context, settings config.MailSettings, n types.EmailNotification) (types.SendResult, error) {
	logger := types.LoggerFromContext(ctx, s.logger).With("tracking_id", n.TrackingID)

	recipients := MergeRecipients(n.Recipients)
	if len(recipients) == 0 {
		return types.SendResult{State: types.DeliveryFailed},
			types.NewAppError(types.ErrCodeDeliveryFailed, fmt.Sprintf("no recipients for %q", n.Subject), nil)
	}

	if !s.sendMail {
		logger.Info("outbound mail disabled, skipping send",
			"recipients", RedactAll(recipients),
			"subject", n.Subject,
		)
		return types.SendResult{State: types.DeliverySkipped}, nil
	}

	transport, err := s.transports.MailTransport(settings)
	if err != nil {
		return types.SendResult{}, err
	}

	from := n.SenderAddress
	if from == "" {
		from = settings.SenderAddress
	}

	logger.Info("attempting email delivery", "dest", RedactAll(recipients))
	providerID, err := transport.Send(ctx, external.MailMessage{
		From:      from,
		To:        recipients,
		Subject:   n.Subject,
		HTML:      n.Notification.BodyHTML,
		Text:      n.Notification.BodyText,
		Reference: n.TrackingID,
	})
	if err != nil {
		if info, ok := types.IsRateLimited(err); ok {
			logger.Warn("email delivery rate limited",
				"status", info.Status,
				"retry_after_seconds", int(info.Delay().Seconds()),
			)
			return types.SendResult{State: types.DeliveryRateLimited}, err
		}
		logger.Error("email delivery failed", "error", err.Error())
		return types.SendResult{State: types.DeliveryFailed}, types.NewAppError(
			types.ErrCodeDeliveryFailed,
			fmt.Sprintf("unable to send email to '%s' with error: %v", strings.Join(RedactAll(recipients), ","), err),
			err,
		)
	}

	logger.Info("email delivery succeeded", "provider_message_id", providerID)
	return types.SendResult{State: types.DeliverySent, ProviderID: providerID}, nil
}

// MergeRecipients flattens lists into one trimmed recipient set. Duplicates
// (compared case-insensitively) keep their first position.
func MergeRecipients(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, r := range list {
			r = strings.TrimSpace(r)
			key := strings.ToLower(r)
			if r == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}
	return out
}
