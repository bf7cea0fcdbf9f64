package core

import (
	"context"
	"encoding/json"

	"servicehealth/internal/config"
	"servicehealth/internal/notifications/email"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// MailDeps are the collaborators shared by every consumer that sends mail.
type MailDeps struct {
	Settings   config.MailResolver
	Recipients email.RecipientResolver
	Sender     MailSender
	Retry      *RetryOrchestrator
}

// EmailHandler consumes notifications-email: it renders the impact, sends
// it to the application recipients and resolves the outcome.
type EmailHandler struct {
	formatter *format.Formatter
	mail      MailDeps
	logger    types.Logger
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(formatter *format.Formatter, mail MailDeps, logger types.Logger) *EmailHandler {
	return &EmailHandler{formatter: formatter, mail: mail, logger: logger}
}

// Handle processes one notifications-email message.
func (h *EmailHandler) Handle(ctx context.Context, payload []byte) ([]types.Output, error) {
	impact, err := decodeImpact(payload)
	if err != nil {
		return nil, err
	}

	rendered, err := h.formatter.Format(impact)
	if err != nil {
		return nil, err
	}

	settings, err := h.mail.Settings.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	recipients, err := h.mail.Recipients.AppRecipients(ctx, impact, []string{settings.TestRecipient})
	if err != nil {
		return nil, err
	}

	n := types.EmailNotification{
		SenderAddress: settings.SenderAddress,
		Recipients:    recipients,
		Subject:       format.Subject(impact),
		Notification:  rendered,
		TrackingID:    impact.TrackingID(),
	}
	result, sendErr := h.mail.Sender.Send(ctx, settings, n)
	outcome, err := h.mail.Retry.Resolve(ctx, n, result, sendErr)
	if err != nil {
		return nil, err
	}

	types.LoggerFromContext(ctx, h.logger).Info("email notification resolved",
		"tracking_id", n.TrackingID,
		"state", string(outcome.State),
	)
	return outcome.Outputs, nil
}

// RetryHandler consumes retry-email: it resends the stored notification
// unchanged and archives it once sent.
type RetryHandler struct {
	mail        MailDeps
	compression string
	clock       types.Clock
	ids         types.IDGenerator
	logger      types.Logger
}

// NewRetryHandler creates a RetryHandler. compression is the archive
// encoding ("none" or "zstd").
func NewRetryHandler(mail MailDeps, compression string, clock types.Clock, ids types.IDGenerator, logger types.Logger) *RetryHandler {
	return &RetryHandler{mail: mail, compression: compression, clock: clock, ids: ids, logger: logger}
}

// Handle processes one retry-email message.
func (h *RetryHandler) Handle(ctx context.Context, payload []byte) ([]types.Output, error) {
	var n types.EmailNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, types.NewAppError(types.ErrCodeMalformedInput, "invalid retry notification payload: "+err.Error(), err)
	}

	settings, err := h.mail.Settings.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	result, sendErr := h.mail.Sender.Send(ctx, settings, n)
	outcome, err := h.mail.Retry.Resolve(ctx, n, result, sendErr)
	if err != nil {
		return nil, err
	}

	outputs := outcome.Outputs
	if outcome.State == types.DeliverySent {
		outputs = append(outputs, archiveOutput(
			types.PrefixNotificationHistory, "n", n.Notification.BodyHTML,
			h.compression, h.clock.Now(), h.ids.NewID(),
		))
	}

	types.LoggerFromContext(ctx, h.logger).Info("retried email resolved",
		"tracking_id", n.TrackingID,
		"state", string(outcome.State),
	)
	return outputs, nil
}
