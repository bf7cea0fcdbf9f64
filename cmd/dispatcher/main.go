// Package main is the entrypoint for the Dispatcher Lambda function.
//
// The Dispatcher consumes the notifications queue. Each message is one
// HealthImpact written by discovery; it is rendered once, copied onto the
// queue of every channel listed in NOTIFICATION_SENDERS and archived under
// health-notifications-history/. Records are processed independently and
// failures are reported as partial batch failures.
package main

import (
	"context"
	"os"

	"servicehealth/internal/app"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/worker"
)

const serviceName = "dispatcher"

func main() {
	rt, err := app.Bootstrap(context.Background(), serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	formatter, err := format.New()
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	dispatcher := core.NewDispatcher(core.DispatcherConfig{
		Formatter: formatter,
		Dispatch:  rt.Config.Dispatch,
		Clock:     rt.Clock,
		IDs:       rt.IDs,
		Logger:    rt.Log.With("component", "dispatcher"),
	})
	flusher := core.NewDispatchFlusher(rt.Flusher(), rt.Metrics)
	batch := worker.NewSQSBatch(serviceName, dispatcher.Handle, flusher, rt.Log)

	rt.Logger.Info("dispatcher initialized",
		"channels", rt.Config.Dispatch.Senders,
		"archive_compression", rt.Config.Dispatch.ArchiveCompression,
	)
	app.Start(rt, batch.Handle)
}
