package core

import (
	"context"
	"encoding/json"

	"servicehealth/internal/config"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// Dispatcher fans one HealthImpact out to the enabled channel queues and
// archives its rendered HTML.
type Dispatcher struct {
	formatter *format.Formatter
	cfg       config.DispatchConfig
	clock     types.Clock
	ids       types.IDGenerator
	logger    types.Logger
}

// DispatcherConfig holds the dependencies needed to create a Dispatcher.
type DispatcherConfig struct {
	Formatter *format.Formatter
	Dispatch  config.DispatchConfig
	Clock     types.Clock
	IDs       types.IDGenerator
	Logger    types.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		formatter: cfg.Formatter,
		cfg:       cfg.Dispatch,
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		logger:    cfg.Logger,
	}
}

// Dispatch returns one queue output per enabled channel, carrying the
// impact, followed by exactly one archive blob. A formatting failure
// produces no outputs.
func (d *Dispatcher) Dispatch(ctx context.Context, impact types.HealthImpact) ([]types.Output, error) {
	logger := types.LoggerFromContext(ctx, d.logger).With("tracking_id", impact.TrackingID())

	rendered, err := d.formatter.Format(impact)
	if err != nil {
		logger.Error("failed to format notification", "error", err.Error())
		return nil, err
	}

	payload, err := json.Marshal(impact)
	if err != nil {
		logger.Error("failed to encode health impact", "error", err.Error())
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode health impact", err)
	}

	channels := d.cfg.EnabledChannels()
	outputs := make([]types.Output, 0, len(channels)+1)
	for _, ch := range channels {
		outputs = append(outputs, types.QueueOutput(ch.QueueFor(), payload, 0))
	}
	outputs = append(outputs, archiveOutput(
		types.PrefixNotificationHistory, "n", rendered.BodyHTML,
		d.cfg.ArchiveCompression, d.clock.Now(), d.ids.NewID(),
	))

	logger.Info("notification dispatched",
		"channels", len(channels),
		"resources", len(impact.Resources),
		"subscriptions", len(impact.Subscriptions),
	)
	return outputs, nil
}

// Handle decodes a notifications message and dispatches it.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) ([]types.Output, error) {
	impact, err := decodeImpact(payload)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, impact)
}

func decodeImpact(payload []byte) (types.HealthImpact, error) {
	var impact types.HealthImpact
	if err := json.Unmarshal(payload, &impact); err != nil {
		return impact, types.NewAppError(types.ErrCodeMalformedInput, "invalid health impact payload: "+err.Error(), err)
	}
	if impact.TrackingID() == "" {
		return impact, types.NewAppError(types.ErrCodeMalformedInput, "health impact has no tracking id", nil)
	}
	return impact, nil
}

// OutputFlusher writes handler outputs.
type OutputFlusher interface {
	Flush(ctx context.Context, outputs []types.Output) error
}

// DispatchFlusher counts channel fan-out once the dispatcher's outputs are
// written. A failed flush records nothing, so a redelivered message is only
// counted when it finally goes through.
type DispatchFlusher struct {
	next    OutputFlusher
	metrics Metrics
}

// NewDispatchFlusher wraps next.
func NewDispatchFlusher(next OutputFlusher, metrics Metrics) *DispatchFlusher {
	return &DispatchFlusher{next: next, metrics: metrics}
}

// Flush writes outputs through the wrapped flusher and records one dispatch
// per channel queue output on success.
func (f *DispatchFlusher) Flush(ctx context.Context, outputs []types.Output) error {
	if err := f.next.Flush(ctx, outputs); err != nil {
		return err
	}
	for _, out := range outputs {
		if out.Kind != types.OutputQueue {
			continue
		}
		if ch, ok := types.ChannelForQueue(out.Destination); ok {
			f.metrics.RecordDispatch(ctx, ch)
		}
	}
	return nil
}
