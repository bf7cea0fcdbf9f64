// Package config defines the process configuration for the Service Health
// notification pipeline. Configuration is loaded once at process initialization
// (Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Mail transport settings are the exception: they are resolved per invocation
// through MailResolver so rotated relay credentials are picked up without a
// redeploy.
package config

import (
	"time"

	"servicehealth/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod test"`
	Service     string `envconfig:"SERVICE_NAME" default:"servicehealth"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Dispatch      DispatchConfig
	AWS           AWSConfig
	Queues        QueueConfig
	Azure         AzureConfig
	Email         EmailConfig
	Channels      ChannelConfig
	Observability ObservabilityConfig
	Local         LocalConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// DispatchConfig controls fan-out.
type DispatchConfig struct {
	// Senders is the comma-separated list of enabled channels
	// (email, itsm, devops, other). An empty list still archives.
	Senders string `envconfig:"NOTIFICATION_SENDERS" default:"email" validate:"channels"`
	// SendMail gates outbound mail. When false the email worker renders and
	// archives but never contacts the transport.
	SendMail bool `envconfig:"OUTPUT_SEND_MAIL" default:"true"`
	// ArchiveCompression selects blob encoding for archived HTML.
	ArchiveCompression string `envconfig:"ARCHIVE_COMPRESSION" default:"none" validate:"oneof=none zstd"`
}

// EnabledChannels parses Senders.
func (d DispatchConfig) EnabledChannels() []types.ChannelType {
	return types.ParseChannels(d.Senders)
}

// ChannelEnabled reports whether a channel is listed in Senders.
func (d DispatchConfig) ChannelEnabled(c types.ChannelType) bool {
	for _, enabled := range d.EnabledChannels() {
		if enabled == c {
			return true
		}
	}
	return false
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`
	ArchiveBucket string `envconfig:"ARCHIVE_BUCKET" validate:"required"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// QueueConfig maps each logical queue to its SQS URL. Workers only need the
// queues they write to, so nothing here is required at load time; a missing
// URL surfaces as configuration_missing when an output targets it.
type QueueConfig struct {
	Notifications       string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`
	NotificationsEmail  string `envconfig:"SQS_NOTIFICATIONS_EMAIL" validate:"omitempty,url"`
	NotificationsITSM   string `envconfig:"SQS_NOTIFICATIONS_ITSM" validate:"omitempty,url"`
	NotificationsDevOps string `envconfig:"SQS_NOTIFICATIONS_DEVOPS" validate:"omitempty,url"`
	NotificationsOther  string `envconfig:"SQS_NOTIFICATIONS_OTHER" validate:"omitempty,url"`
	RetryEmail          string `envconfig:"SQS_RETRY_EMAIL" validate:"omitempty,url"`
	FailedEmail         string `envconfig:"SQS_FAILED_EMAIL" validate:"omitempty,url"`
}

// URLs returns the logical-name -> URL map, omitting unset queues.
func (q QueueConfig) URLs() map[string]string {
	all := map[string]string{
		types.QueueNotifications:       q.Notifications,
		types.QueueNotificationsEmail:  q.NotificationsEmail,
		types.QueueNotificationsITSM:   q.NotificationsITSM,
		types.QueueNotificationsDevOps: q.NotificationsDevOps,
		types.QueueNotificationsOther:  q.NotificationsOther,
		types.QueueRetryEmail:          q.RetryEmail,
		types.QueueFailedEmail:         q.FailedEmail,
	}
	out := make(map[string]string, len(all))
	for name, url := range all {
		if url != "" {
			out[name] = url
		}
	}
	return out
}

// AzureConfig holds the Resource Graph credentials and scope.
type AzureConfig struct {
	TenantID      string        `envconfig:"AZURE_TENANT_ID"`
	ClientID      string        `envconfig:"AZURE_CLIENT_ID"`
	ClientSecret  SecretString  `envconfig:"AZURE_CLIENT_SECRET"`
	Subscriptions []string      `envconfig:"AZURE_SUBSCRIPTION_IDS"`
	Endpoint      string        `envconfig:"RESOURCE_GRAPH_ENDPOINT" default:"https://management.azure.com" validate:"url"`
	AuthorityHost string        `envconfig:"AZURE_AUTHORITY_HOST" default:"https://login.microsoftonline.com" validate:"url"`
	QueryTimeout  time.Duration `envconfig:"RESOURCE_GRAPH_TIMEOUT" default:"30s"`
}

// Configured reports whether client credentials are present.
func (a AzureConfig) Configured() bool {
	return a.TenantID != "" && a.ClientID != "" && !a.ClientSecret.IsEmpty()
}

// EmailConfig selects the mail transport and where its settings come from.
type EmailConfig struct {
	Provider string `envconfig:"EMAIL_PROVIDER" default:"smtp" validate:"oneof=smtp sendgrid ses resend stub"`
	// SecretSource selects the MailResolver adapter.
	SecretSource string `envconfig:"MAIL_SECRET_SOURCE" default:"env" validate:"oneof=env ssm"`
	// SecretPrefix is prepended to logical secret names for the ssm source,
	// e.g. "/prod/servicehealth/".
	SecretPrefix string        `envconfig:"MAIL_SECRET_PREFIX" default:"/servicehealth/"`
	SendTimeout  time.Duration `envconfig:"MAIL_SEND_TIMEOUT" default:"20s"`

	// RecipientSource selects the RecipientResolver: "fallback" sends
	// everything to the test-only recipient, "tags" reads resource tags.
	RecipientSource string   `envconfig:"RECIPIENT_SOURCE" default:"fallback" validate:"oneof=fallback tags"`
	RecipientTags   []string `envconfig:"RECIPIENT_TAG_KEYS" default:"owner,notify"`
	Operators       []string `envconfig:"OPERATOR_RECIPIENTS"`
}

// ChannelConfig holds webhook endpoints for the non-email channels. An
// empty URL means the channel consumer logs and acknowledges.
type ChannelConfig struct {
	ITSMWebhookURL   string        `envconfig:"ITSM_WEBHOOK_URL" validate:"omitempty,url"`
	DevOpsWebhookURL string        `envconfig:"DEVOPS_WEBHOOK_URL" validate:"omitempty,url"`
	OtherWebhookURL  string        `envconfig:"OTHER_WEBHOOK_URL" validate:"omitempty,url"`
	WebhookToken     SecretString  `envconfig:"CHANNEL_WEBHOOK_TOKEN"`
	Timeout          time.Duration `envconfig:"CHANNEL_WEBHOOK_TIMEOUT" default:"10s"`
	// Consumer names the channel a channel-worker deployment consumes.
	Consumer string `envconfig:"CHANNEL_CONSUMER" default:"other" validate:"oneof=itsm devops other"`

	// Platform overrides URL-based payload detection.
	Platform string `envconfig:"CHANNEL_WEBHOOK_PLATFORM" validate:"omitempty,oneof=generic slack teams discord google_chat"`

	// Signing secrets for the X-ServiceHealth-Signature header. The previous
	// secret is honored until PreviousSecretExpiresAt (RFC3339).
	SigningSecret           SecretString `envconfig:"CHANNEL_WEBHOOK_SECRET"`
	PreviousSigningSecret   SecretString `envconfig:"CHANNEL_WEBHOOK_SECRET_PREVIOUS"`
	PreviousSecretExpiresAt time.Time    `envconfig:"CHANNEL_WEBHOOK_SECRET_PREVIOUS_EXPIRES"`

	// BlockPrivateNetworks refuses webhook connections to private,
	// loopback and link-local addresses.
	BlockPrivateNetworks bool `envconfig:"CHANNEL_WEBHOOK_BLOCK_PRIVATE" default:"true"`
}

// WebhookFor returns the webhook URL configured for a channel.
func (c ChannelConfig) WebhookFor(ch types.ChannelType) string {
	switch ch {
	case types.ChannelITSM:
		return c.ITSMWebhookURL
	case types.ChannelDevOps:
		return c.DevOpsWebhookURL
	case types.ChannelOther:
		return c.OtherWebhookURL
	}
	return ""
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ServiceHealth"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// LocalConfig drives cmd/local.
type LocalConfig struct {
	Port                string `envconfig:"PORT" default:"8080"`
	MaintenanceSchedule string `envconfig:"MAINTENANCE_SCHEDULE" default:"0 */5 * * * *"`
	HealthSchedule      string `envconfig:"HEALTH_SCHEDULE" default:"0 59 23 * * *"`
	Timezone            string `envconfig:"SCHEDULE_TIMEZONE" default:"UTC"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the process runs outside AWS.
func (c *Config) IsLocal() bool {
	return c.Environment == "local" || c.Environment == "test"
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
