// Package main is the entrypoint for the Channel Worker Lambda function.
//
// One deployment runs per non-email channel; CHANNEL_CONSUMER selects which
// (itsm, devops or other). The worker forwards each HealthImpact to the
// channel's webhook, or logs and acknowledges it when none is configured.
package main

import (
	"context"
	"os"

	"servicehealth/internal/app"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/webhook"
	"servicehealth/internal/types"
	"servicehealth/internal/worker"
)

const serviceName = "channel-worker"

func main() {
	rt, err := app.Bootstrap(context.Background(), serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	channel := types.ChannelType(rt.Config.Channels.Consumer)
	url := rt.Config.Channels.WebhookFor(channel)
	renderer := webhook.NewRendererFromConfig(rt.Config.Channels, rt.Clock)
	handler := core.NewChannelHandler(core.ChannelHandlerConfig{
		Channel:  channel,
		URL:      url,
		Poster:   rt.Clients.Webhooks,
		Renderer: renderer,
		Metrics:  rt.Metrics,
		Logger:   rt.Log.With("component", "channel"),
	})
	batch := worker.NewSQSBatch(serviceName+"-"+string(channel), handler.Handle, rt.Flusher(), rt.Log)

	rt.Logger.Info("channel worker initialized",
		"channel", string(channel),
		"queue", channel.QueueFor(),
		"webhook_configured", url != "",
		"platform", string(renderer.Platform(url)),
		"signed", !rt.Config.Channels.SigningSecret.IsEmpty(),
	)
	app.Start(rt, batch.Handle)
}
