// Package main is the entrypoint for the Email Worker Lambda function.
//
// The Email Worker consumes notifications-email. For each HealthImpact it
// renders the notification, resolves mail settings for the invocation,
// resolves the application recipients and sends one message to all of them.
// A rate-limited send is requeued on retry-email after the server-supplied
// retry-after; any other delivery failure is written to failed-email.
package main

import (
	"context"
	"os"

	"servicehealth/internal/app"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/worker"
)

const serviceName = "email-worker"

func main() {
	rt, err := app.Bootstrap(context.Background(), serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	formatter, err := format.New()
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	handler := core.NewEmailHandler(formatter, rt.MailDeps(), rt.Log.With("component", "email"))
	batch := worker.NewSQSBatch(serviceName, handler.Handle, rt.Flusher(), rt.Log)

	rt.Logger.Info("email worker initialized",
		"provider", rt.Config.Email.Provider,
		"secret_source", rt.Config.Email.SecretSource,
		"send_mail", rt.Config.Dispatch.SendMail,
	)
	app.Start(rt, batch.Handle)
}
