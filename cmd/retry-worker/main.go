// Package main is the entrypoint for the Retry Worker Lambda function.
//
// The Retry Worker consumes retry-email. Messages become visible only after
// the delay chosen when they were requeued, so each invocation simply
// resends the stored EmailNotification to its full recipient set. A further
// rate limit requeues it again; there is no attempt cap beyond the queue's
// max receive count. Sent notifications are archived.
package main

import (
	"context"
	"os"

	"servicehealth/internal/app"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/worker"
)

const serviceName = "retry-worker"

func main() {
	rt, err := app.Bootstrap(context.Background(), serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	handler := core.NewRetryHandler(
		rt.MailDeps(),
		rt.Config.Dispatch.ArchiveCompression,
		rt.Clock,
		rt.IDs,
		rt.Log.With("component", "retry"),
	)
	batch := worker.NewSQSBatch(serviceName, handler.Handle, rt.Flusher(), rt.Log)

	rt.Logger.Info("retry worker initialized", "provider", rt.Config.Email.Provider)
	app.Start(rt, batch.Handle)
}
