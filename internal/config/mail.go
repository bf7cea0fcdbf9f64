package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"servicehealth/internal/types"
)

// Logical names of the mail transport secrets. The ssm source reads
// prefix+name; the env source reads the upper-snake form
// (servicehealth-smtp-relay-host -> SERVICEHEALTH_SMTP_RELAY_HOST).
const (
	SecretRelayHost     = "servicehealth-smtp-relay-host"
	SecretRelayPort     = "servicehealth-smtp-relay-port"
	SecretRelayUser     = "servicehealth-smtp-relay-user"
	SecretRelayPass     = "servicehealth-smtp-relay-pass"
	SecretSenderAddress = "servicehealth-email-sender-address"
	SecretTestRecipient = "servicehealth-email-test-only-recipient"
	SecretEndpoint      = "servicehealth-email-endpoint"
	SecretAPIKey        = "servicehealth-email-api-key"
)

var allMailSecrets = []string{
	SecretRelayHost,
	SecretRelayPort,
	SecretRelayUser,
	SecretRelayPass,
	SecretSenderAddress,
	SecretTestRecipient,
	SecretEndpoint,
	SecretAPIKey,
}

const defaultRelayPort = 587

// MailSettings is the resolved mail transport configuration for one
// invocation.
type MailSettings struct {
	RelayHost     string
	RelayPort     int
	RelayUser     string
	RelayPassword SecretString
	SenderAddress string
	TestRecipient string
	// Endpoint is the HTTP email API base URL for API-backed providers.
	Endpoint string
	APIKey   SecretString
}

// MailResolver resolves mail settings. Implementations are called once per
// invocation and the result is passed explicitly to the sender.
type MailResolver interface {
	Resolve(ctx context.Context) (MailSettings, error)
}

// SecretMailResolver resolves MailSettings through a SecretProvider.
type SecretMailResolver struct {
	provider SecretProvider
	keyFor   func(name string) string
	required []string
}

// NewSSMMailResolver reads each logical name under prefix in SSM.
func NewSSMMailResolver(provider SecretProvider, prefix, emailProvider string) *SecretMailResolver {
	return &SecretMailResolver{
		provider: provider,
		keyFor:   func(name string) string { return prefix + name },
		required: RequiredMailSecrets(emailProvider),
	}
}

// NewEnvMailResolver reads each logical name from the process environment.
func NewEnvMailResolver(emailProvider string) *SecretMailResolver {
	return &SecretMailResolver{
		provider: NewEnvVarProvider(),
		keyFor:   EnvName,
		required: RequiredMailSecrets(emailProvider),
	}
}

// NewMailResolver picks the adapter named by cfg.SecretSource.
func NewMailResolver(cfg EmailConfig, ssmProvider SecretProvider) MailResolver {
	if cfg.SecretSource == "ssm" && ssmProvider != nil {
		return NewSSMMailResolver(ssmProvider, cfg.SecretPrefix, cfg.Provider)
	}
	return NewEnvMailResolver(cfg.Provider)
}

// EnvName converts a logical secret name to its environment variable name.
func EnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// RequiredMailSecrets lists the secrets a transport cannot work without.
func RequiredMailSecrets(emailProvider string) []string {
	required := []string{SecretSenderAddress}
	switch emailProvider {
	case "smtp":
		required = append(required, SecretRelayHost)
	case "sendgrid", "resend":
		required = append(required, SecretAPIKey)
	}
	return required
}

// Resolve fetches every mail secret in one batch. A missing required value
// or an unparseable port is a configuration_missing error.
func (r *SecretMailResolver) Resolve(ctx context.Context) (MailSettings, error) {
	keys := make([]string, 0, len(allMailSecrets))
	for _, name := range allMailSecrets {
		keys = append(keys, r.keyFor(name))
	}

	values, err := r.provider.GetParametersBatch(ctx, keys)
	if err != nil {
		return MailSettings{}, types.NewAppError(types.ErrCodeConfigurationMissing, "failed to resolve mail settings", err)
	}
	get := func(name string) string {
		return strings.TrimSpace(values[r.keyFor(name)])
	}

	var missing []string
	for _, name := range r.required {
		if get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return MailSettings{}, types.NewAppError(types.ErrCodeConfigurationMissing,
			fmt.Sprintf("mail settings not found: %s", strings.Join(missing, ", ")), nil)
	}

	port := defaultRelayPort
	if raw := get(SecretRelayPort); raw != "" {
		port, err = strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return MailSettings{}, types.NewAppError(types.ErrCodeConfigurationMissing,
				fmt.Sprintf("invalid relay port %q", raw), err)
		}
	}

	return MailSettings{
		RelayHost:     get(SecretRelayHost),
		RelayPort:     port,
		RelayUser:     get(SecretRelayUser),
		RelayPassword: SecretString(values[r.keyFor(SecretRelayPass)]),
		SenderAddress: get(SecretSenderAddress),
		TestRecipient: get(SecretTestRecipient),
		Endpoint:      get(SecretEndpoint),
		APIKey:        SecretString(get(SecretAPIKey)),
	}, nil
}

// StaticMailResolver returns fixed settings. Used in tests and local runs.
type StaticMailResolver struct {
	Settings MailSettings
	Err      error
}

// Resolve returns the fixed settings.
func (s StaticMailResolver) Resolve(context.Context) (MailSettings, error) {
	return s.Settings, s.Err
}
