package main

import (
	"context"

	"servicehealth/internal/api"
	"servicehealth/internal/config"
	"servicehealth/internal/external"
	"servicehealth/internal/inventory"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/notifications/webhook"
	"servicehealth/internal/queue"
	"servicehealth/internal/storage"
	"servicehealth/internal/types"
	"servicehealth/internal/worker"
)

// pipelineDeps holds what the in-process pipeline needs from the runtime.
type pipelineDeps struct {
	Config   *config.Config
	Source   inventory.Source
	Mail     core.MailDeps
	Webhooks external.WebhookPoster
	Metrics  core.Metrics
	Clock    types.Clock
	IDs      types.IDGenerator
	Logger   types.Logger
}

// pipeline runs every stage in one process. Queues are a MemoryBus whose
// consumers run synchronously on publish, and the report blob trigger is a
// MemoryStore put hook, so one sweep drives the whole chain to completion.
type pipeline struct {
	sweeper *inventory.Sweeper
	bus     *queue.MemoryBus
	store   *storage.MemoryStore
	flusher *queue.Flusher
	logger  types.Logger
}

func newPipeline(d pipelineDeps) (*pipeline, error) {
	formatter, err := format.New()
	if err != nil {
		return nil, err
	}

	store := storage.NewMemoryStore()
	bus := queue.NewMemoryBus(store, d.Logger.With("component", "bus"))
	flusher := queue.NewFlusher(bus, store, d.Logger.With("component", "flusher"))
	compression := d.Config.Dispatch.ArchiveCompression

	dispatcher := core.NewDispatcher(core.DispatcherConfig{
		Formatter: formatter,
		Dispatch:  d.Config.Dispatch,
		Clock:     d.Clock,
		IDs:       d.IDs,
		Logger:    d.Logger.With("component", "dispatcher"),
	})
	dispatchFlusher := core.NewDispatchFlusher(flusher, d.Metrics)
	bus.Handle(types.QueueNotifications, func(ctx context.Context, payload []byte) ([]types.Output, error) {
		outputs, err := dispatcher.Handle(ctx, payload)
		if err != nil {
			return nil, err
		}
		return nil, dispatchFlusher.Flush(ctx, outputs)
	})

	emailHandler := core.NewEmailHandler(formatter, d.Mail, d.Logger.With("component", "email"))
	bus.Handle(types.QueueNotificationsEmail, emailHandler.Handle)

	retryHandler := core.NewRetryHandler(d.Mail, compression, d.Clock, d.IDs, d.Logger.With("component", "retry"))
	bus.Handle(types.QueueRetryEmail, retryHandler.Handle)

	renderer := webhook.NewRendererFromConfig(d.Config.Channels, d.Clock)
	for _, ch := range []types.ChannelType{types.ChannelITSM, types.ChannelDevOps, types.ChannelOther} {
		h := core.NewChannelHandler(core.ChannelHandlerConfig{
			Channel:  ch,
			URL:      d.Config.Channels.WebhookFor(ch),
			Poster:   d.Webhooks,
			Renderer: renderer,
			Metrics:  d.Metrics,
			Logger:   d.Logger.With("component", "channel"),
		})
		bus.Handle(ch.QueueFor(), h.Handle)
	}

	reports := core.NewReportHandler(core.ReportHandlerConfig{
		Blobs:        store,
		Formatter:    formatter,
		Mail:         d.Mail,
		EmailEnabled: d.Config.Dispatch.ChannelEnabled(types.ChannelEmail),
		Compression:  compression,
		Clock:        d.Clock,
		IDs:          d.IDs,
		Logger:       d.Logger.With("component", "report"),
	})
	objects := worker.NewS3Objects(types.PrefixReports, reports.Handle, flusher, d.Logger.With("worker", "report"))
	store.OnPut(types.PrefixReports, objects.HandleKey)

	discoverer := inventory.NewDiscoverer(d.Source, d.Logger.With("component", "discoverer"))
	return &pipeline{
		sweeper: inventory.NewSweeper(discoverer, compression, d.Clock, d.IDs, d.Logger.With("component", "sweeper")),
		bus:     bus,
		store:   store,
		flusher: flusher,
		logger:  d.Logger,
	}, nil
}

// RunSweep runs a discovery sweep and flushes its outputs through the bus.
func (p *pipeline) RunSweep(ctx context.Context, kind types.SweepKind) (api.SweepSummary, error) {
	result, err := p.sweeper.Run(ctx, kind)
	if err != nil {
		return api.SweepSummary{}, err
	}
	if err := p.flusher.Flush(ctx, result.Outputs); err != nil {
		return api.SweepSummary{}, err
	}
	p.logger.Info("local sweep drained", "sweep", string(kind), "impacts", len(result.Impacts))
	return api.SweepSummary{
		Sweep:     kind,
		Impacts:   len(result.Impacts),
		Outputs:   len(result.Outputs),
		ReportKey: result.ReportKey,
	}, nil
}

// run adapts RunSweep to scheduler.SweepRunner.
func (p *pipeline) run(ctx context.Context, kind types.SweepKind) error {
	_, err := p.RunSweep(ctx, kind)
	return err
}
