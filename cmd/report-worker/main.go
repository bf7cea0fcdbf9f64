// Package main is the entrypoint for the Report Worker Lambda function.
//
// S3 invokes the Report Worker when the daily health sweep writes a
// consolidated report under health-reports/. The worker renders the report,
// mails it to the operator recipients when the email channel is enabled and
// archives the HTML under health-report-history/. A notification for a blob
// that is still incomplete is acknowledged without output.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"servicehealth/internal/app"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
	"servicehealth/internal/worker"
)

const serviceName = "report-worker"

// Response summarizes an invocation for local runs.
type Response struct {
	Records int `json:"records"`
}

// Handler adapts the S3 adapter to the Lambda handler signature used by
// app.Start.
type Handler struct {
	objects *worker.S3Objects
}

// Handle processes one S3 event.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) (Response, error) {
	if err := h.objects.Handle(ctx, event); err != nil {
		return Response{}, err
	}
	return Response{Records: len(event.Records)}, nil
}

func main() {
	rt, err := app.Bootstrap(context.Background(), serviceName)
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	formatter, err := format.New()
	if err != nil {
		app.Fatal(os.Stderr, serviceName, err)
	}

	store := rt.Store()
	reports := core.NewReportHandler(core.ReportHandlerConfig{
		Blobs:        store,
		Formatter:    formatter,
		Mail:         rt.MailDeps(),
		EmailEnabled: rt.Config.Dispatch.ChannelEnabled(types.ChannelEmail),
		Compression:  rt.Config.Dispatch.ArchiveCompression,
		Clock:        rt.Clock,
		IDs:          rt.IDs,
		Logger:       rt.Log.With("component", "report"),
	})
	handler := &Handler{
		objects: worker.NewS3Objects(types.PrefixReports, reports.Handle, rt.Flusher(), rt.Log.With("worker", serviceName)),
	}

	rt.Logger.Info("report worker initialized",
		"bucket", rt.Config.AWS.ArchiveBucket,
		"email_enabled", rt.Config.Dispatch.ChannelEnabled(types.ChannelEmail),
	)
	app.Start(rt, handler.Handle)
}
