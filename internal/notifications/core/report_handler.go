package core

import (
	"context"
	"encoding/json"
	"strings"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/storage"
	"servicehealth/internal/types"
)

// ReportHandler consumes consolidated report blobs written under
// health-reports/. It renders the report, mails it to operators when the
// email channel is enabled, and archives the HTML.
type ReportHandler struct {
	blobs        BlobReader
	formatter    *format.Formatter
	mail         MailDeps
	emailEnabled bool
	compression  string
	clock        types.Clock
	ids          types.IDGenerator
	logger       types.Logger
}

// ReportHandlerConfig holds the dependencies needed to create a ReportHandler.
type ReportHandlerConfig struct {
	Blobs        BlobReader
	Formatter    *format.Formatter
	Mail         MailDeps
	EmailEnabled bool
	Compression  string
	Clock        types.Clock
	IDs          types.IDGenerator
	Logger       types.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(cfg ReportHandlerConfig) *ReportHandler {
	return &ReportHandler{
		blobs:        cfg.Blobs,
		formatter:    cfg.Formatter,
		mail:         cfg.Mail,
		emailEnabled: cfg.EmailEnabled,
		compression:  cfg.Compression,
		clock:        cfg.Clock,
		ids:          cfg.IDs,
		logger:       cfg.Logger,
	}
}

// Handle processes the report blob at key. A blob that is still being
// written (truncated JSON or zstd frame) is malformed input.
func (h *ReportHandler) Handle(ctx context.Context, key string) ([]types.Output, error) {
	logger := types.LoggerFromContext(ctx, h.logger).With("key", key)

	raw, err := h.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := storage.Decode(key, raw)
	if err != nil {
		return nil, err
	}
	impacts, err := parseReport(data)
	if err != nil {
		return nil, err
	}

	generatedAt := h.clock.Now()
	report, err := h.formatter.FormatReport(impacts, generatedAt)
	if err != nil {
		return nil, err
	}

	var outputs []types.Output
	if h.emailEnabled {
		settings, err := h.mail.Settings.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		recipients, err := h.mail.Recipients.OperatorRecipients(ctx, []string{settings.TestRecipient})
		if err != nil {
			return nil, err
		}

		n := types.EmailNotification{
			SenderAddress: settings.SenderAddress,
			Recipients:    recipients,
			Subject:       format.ReportSubject,
			Notification:  report,
		}
		result, sendErr := h.mail.Sender.Send(ctx, settings, n)
		outcome, err := h.mail.Retry.Resolve(ctx, n, result, sendErr)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, outcome.Outputs...)
		logger.Info("report email resolved", "state", string(outcome.State))
	}

	outputs = append(outputs, archiveOutput(
		types.PrefixReportHistory, "r", report.BodyHTML,
		h.compression, generatedAt, h.ids.NewID(),
	))

	logger.Info("report processed", "impacts", len(impacts), "emailed", h.emailEnabled)
	return outputs, nil
}

// truncatedJSON is the decoder message for input that ends mid-document.
const truncatedJSON = "unexpected end of JSON input"

func parseReport(data []byte) ([]types.HealthImpact, error) {
	var impacts []types.HealthImpact
	if err := json.Unmarshal(data, &impacts); err != nil {
		if strings.Contains(err.Error(), truncatedJSON) {
			return nil, types.NewAppError(types.ErrCodeMalformedInput, "report blob is incomplete: "+err.Error(), err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to parse report blob: "+err.Error(), err)
	}
	return impacts, nil
}
