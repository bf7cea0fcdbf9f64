// Package app performs the cold-start wiring shared by every worker binary:
// configuration, logging, AWS clients, external clients and metrics.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"servicehealth/internal/config"
	"servicehealth/internal/external"
	"servicehealth/internal/logging"
	"servicehealth/internal/notifications/core"
	"servicehealth/internal/notifications/email"
	"servicehealth/internal/queue"
	"servicehealth/internal/storage"
	"servicehealth/internal/types"
	"servicehealth/internal/worker"
)

// Runtime holds the long-lived dependencies built at cold start.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Log     types.Logger
	AWS     aws.Config
	SSM     *config.SSMProvider
	Clients *external.ClientRegistry
	Metrics core.Metrics
	Clock   types.Clock
	IDs     types.IDGenerator
}

// Bootstrap loads configuration and builds the Runtime for service.
func Bootstrap(ctx context.Context, service string) (*Runtime, error) {
	region := os.Getenv("AWS_REGION")
	ssmProvider := config.NewSSMProvider(region)

	cfg, err := config.LoadConfig(ssmProvider)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, service)
	log := logging.Adapt(logger)
	logger.Info("cold start",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.IsLocal() {
		ssmProvider = config.NewSSMProviderWithClient(cfg.AWS.Region, ssm.NewFromConfig(awsCfg))
	}

	clients, err := external.NewClientRegistry(cfg, awsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init external clients: %w", err)
	}

	var metrics core.Metrics = core.NopMetrics{}
	if cfg.Observability.EnableMetrics && !cfg.IsLocal() {
		cw := cloudwatch.NewFromConfig(awsCfg)
		metrics = core.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, log.With("component", "metrics"))
	}

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Log:     log,
		AWS:     awsCfg,
		SSM:     ssmProvider,
		Clients: clients,
		Metrics: metrics,
		Clock:   types.RealClock{},
		IDs:     types.UUIDGenerator{},
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if cfg.IsLocal() && cfg.AWS.EndpointURL == "" {
		return aws.Config{Region: cfg.AWS.Region}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	// LocalStack
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}
	return awsCfg, nil
}

// Store returns the S3 archive store.
func (r *Runtime) Store() *storage.S3Store {
	return storage.NewS3Store(s3.NewFromConfig(r.AWS, func(o *s3.Options) {
		o.UsePathStyle = r.Config.AWS.EndpointURL != ""
	}), r.Config.AWS.ArchiveBucket)
}

// Flusher returns a Flusher publishing to SQS and writing to the archive
// bucket.
func (r *Runtime) Flusher() *queue.Flusher {
	client := sqs.NewFromConfig(r.AWS)
	publisher := queue.NewPublisher(client, r.Config.Queues.URLs(), r.Log.With("component", "publisher"))
	return queue.NewFlusher(publisher, r.Store(), r.Log.With("component", "flusher"))
}

// MailDeps wires settings resolution, recipients, the sender and the retry
// orchestrator.
func (r *Runtime) MailDeps() core.MailDeps {
	return MailDeps(r.Config, r.SSM, r.Clients, r.Metrics, r.Log)
}

// MailDeps builds core.MailDeps from explicit dependencies.
func MailDeps(cfg *config.Config, secrets config.SecretProvider, transports email.TransportFactory, metrics core.Metrics, log types.Logger) core.MailDeps {
	return core.MailDeps{
		Settings:   config.NewMailResolver(cfg.Email, secrets),
		Recipients: Recipients(cfg.Email),
		Sender: email.NewSender(email.SenderConfig{
			Transports: transports,
			SendMail:   cfg.Dispatch.SendMail,
			Logger:     log.With("component", "sender"),
		}),
		Retry: core.NewRetryOrchestrator(metrics, log.With("component", "retry")),
	}
}

// Recipients returns the RecipientResolver selected by cfg.
func Recipients(cfg config.EmailConfig) email.RecipientResolver {
	if cfg.RecipientSource == "tags" {
		return email.TagRecipients{Keys: cfg.RecipientTags, Operators: cfg.Operators}
	}
	return email.FallbackRecipients{}
}

// Start runs handler under the Lambda runtime, or once against an event
// read from stdin when APP_ENV=local.
func Start[E, R any](r *Runtime, handler func(context.Context, E) (R, error)) {
	if r.Config.IsLocal() {
		r.Logger.Info("APP_ENV=local: reading event from stdin")
		if _, err := worker.RunLocal(context.Background(), os.Stdin, os.Stdout, handler); err != nil {
			r.Logger.Error("handler execution failed", "error", err.Error())
			os.Exit(1)
		}
		return
	}
	lambda.Start(handler)
}

// Fatal logs err and exits; used before a Runtime exists.
func Fatal(w io.Writer, service string, err error) {
	logging.New(w, "error", service).Error("initialization failed", "error", err.Error())
	os.Exit(1)
}
