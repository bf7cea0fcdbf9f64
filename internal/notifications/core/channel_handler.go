package core

import (
	"context"

	"servicehealth/internal/external"
	"servicehealth/internal/notifications/webhook"
	"servicehealth/internal/types"
)

// ChannelHandlerConfig configures a ChannelHandler.
type ChannelHandlerConfig struct {
	Channel types.ChannelType
	// URL is the channel webhook. Empty disables forwarding.
	URL      string
	Poster   external.WebhookPoster
	Renderer *webhook.Renderer
	Metrics  Metrics
	Logger   types.Logger
}

// ChannelHandler consumes a non-email channel queue (itsm, devops, other).
// With a webhook configured the impact is rendered for the receiving
// platform and posted; without one the message is logged and acknowledged.
type ChannelHandler struct {
	channel  types.ChannelType
	url      string
	poster   external.WebhookPoster
	renderer *webhook.Renderer
	metrics  Metrics
	logger   types.Logger
}

// NewChannelHandler creates a ChannelHandler. A nil Renderer renders
// unsigned payloads with URL-based platform detection.
func NewChannelHandler(cfg ChannelHandlerConfig) *ChannelHandler {
	h := &ChannelHandler{
		channel:  cfg.Channel,
		url:      cfg.URL,
		poster:   cfg.Poster,
		renderer: cfg.Renderer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if h.renderer == nil {
		h.renderer = webhook.NewRenderer(webhook.RendererConfig{})
	}
	if h.metrics == nil {
		h.metrics = NopMetrics{}
	}
	if h.logger == nil {
		h.logger = types.NopLogger{}
	}
	return h
}

// Handle processes one channel message. Rejections by the receiver are
// logged and dropped; rate limits and outages are returned for redelivery.
func (h *ChannelHandler) Handle(ctx context.Context, payload []byte) ([]types.Output, error) {
	impact, err := decodeImpact(payload)
	if err != nil {
		return nil, err
	}
	logger := types.LoggerFromContext(ctx, h.logger).With(
		"channel", string(h.channel),
		"tracking_id", impact.TrackingID(),
	)

	if h.url == "" {
		logger.Info("no webhook configured for channel, acknowledging",
			"resources", len(impact.Resources),
		)
		h.metrics.RecordDelivery(ctx, h.channel, MetricSkipped)
		return nil, nil
	}

	req, err := h.renderer.Render(h.url, impact)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "render channel payload", err)
	}
	logger = logger.With("platform", string(req.Platform))

	if err := h.poster.Post(ctx, h.url, req.Body, req.Headers); err != nil {
		if types.IsDeliveryFailed(err) {
			logger.Error("channel webhook rejected notification", "error", err.Error())
			h.metrics.RecordDelivery(ctx, h.channel, MetricFailed)
			h.metrics.RecordDeadLettered(ctx, h.channel)
			return nil, nil
		}
		if _, limited := types.IsRateLimited(err); limited {
			h.metrics.RecordDelivery(ctx, h.channel, MetricRateLimited)
		}
		return nil, err
	}

	logger.Info("channel webhook delivered")
	h.metrics.RecordDelivery(ctx, h.channel, MetricSuccess)
	return nil, nil
}
