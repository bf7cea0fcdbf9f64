package external

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"servicehealth/internal/config"
	"servicehealth/internal/security"
	"servicehealth/internal/types"
)

// ---------------------------------------------------------------------------
// Client Registry
//
// Central factory for every external client. In local/test mode the registry
// hands out stubs so workers boot without provider credentials.
// ---------------------------------------------------------------------------

// ClientRegistry holds the long-lived clients built at cold start. Mail
// settings are resolved per invocation, so MailTransport builds transports on
// demand and keeps one per distinct settings value. Reusing the transport
// keeps its circuit breaker state across sends in a warm container.
type ClientRegistry struct {
	Graph    GraphQuerier
	Webhooks WebhookPoster

	emailProvider string
	useStubs      bool
	awsCfg        aws.Config
	cfg           config.EmailConfig
	logger        *slog.Logger
	stubMail      *StubMailTransport

	mu         sync.Mutex
	transports map[config.MailSettings]MailTransport
}

// NewClientRegistry initializes the external clients for cfg. awsCfg is only
// used by the SES transport and may be zero in local mode.
func NewClientRegistry(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	useStubs := cfg.IsLocal() || cfg.Email.Provider == "stub"
	reg := &ClientRegistry{
		emailProvider: cfg.Email.Provider,
		useStubs:      useStubs,
		awsCfg:        awsCfg,
		cfg:           cfg.Email,
		logger:        logger,
		transports:    make(map[config.MailSettings]MailTransport),
	}
	if useStubs {
		reg.stubMail = NewStubMailTransport(logger.With("mode", "stub"))
	}

	switch {
	case cfg.Azure.Configured():
		reg.Graph = NewResourceGraphClient(ResourceGraphConfig{
			Endpoint:      cfg.Azure.Endpoint,
			AuthorityHost: cfg.Azure.AuthorityHost,
			TenantID:      cfg.Azure.TenantID,
			ClientID:      cfg.Azure.ClientID,
			ClientSecret:  cfg.Azure.ClientSecret.Unmask(),
			Subscriptions: cfg.Azure.Subscriptions,
			Timeout:       cfg.Azure.QueryTimeout,
			Logger:        logger.With("client", "resource-graph"),
		})
	case cfg.IsLocal():
		reg.Graph = NewStubGraphQuerier(logger.With("mode", "stub"), nil)
	}

	if cfg.IsLocal() {
		reg.Webhooks = NewStubWebhookPoster(logger.With("mode", "stub"))
	} else {
		httpClient := &http.Client{Timeout: cfg.Channels.Timeout}
		if cfg.Channels.BlockPrivateNetworks {
			httpClient = security.NewSafeHTTPClient(cfg.Channels.Timeout, security.DefaultMaxRedirects)
		}
		reg.Webhooks = NewWebhookClient(httpClient, cfg.Channels.WebhookToken.Unmask())
	}

	logger.Info("external clients initialized",
		"environment", cfg.Environment,
		"email_provider", cfg.Email.Provider,
		"stub_mail", useStubs,
		"graph_configured", reg.Graph != nil,
	)
	return reg, nil
}

// RequireGraph returns the Resource Graph client or a configuration error
// when Azure credentials are absent.
func (r *ClientRegistry) RequireGraph() (GraphQuerier, error) {
	if r.Graph == nil {
		return nil, types.NewAppError(types.ErrCodeConfigurationMissing, "azure credentials are not configured", nil)
	}
	return r.Graph, nil
}

// MailTransport returns the configured transport for settings resolved for
// the current invocation. A transport is built the first time a settings
// value is seen and reused afterwards; rotated credentials produce a new one.
func (r *ClientRegistry) MailTransport(settings config.MailSettings) (MailTransport, error) {
	if r.useStubs {
		return r.stubMail, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if transport, ok := r.transports[settings]; ok {
		return transport, nil
	}
	transport, err := r.newMailTransport(settings)
	if err != nil {
		return nil, err
	}
	r.transports[settings] = transport
	return transport, nil
}

func (r *ClientRegistry) newMailTransport(settings config.MailSettings) (MailTransport, error) {
	logger := r.logger.With("client", r.emailProvider)
	switch r.emailProvider {
	case "smtp":
		return NewSMTPTransport(SMTPConfig{
			Host:     settings.RelayHost,
			Port:     settings.RelayPort,
			Username: settings.RelayUser,
			Password: settings.RelayPassword.Unmask(),
			Timeout:  r.cfg.SendTimeout,
			Logger:   logger,
		}), nil
	case "sendgrid":
		return NewSendGridTransport(&http.Client{Timeout: r.cfg.SendTimeout}, SendGridConfig{
			APIKey:  settings.APIKey.Unmask(),
			BaseURL: settings.Endpoint,
			Logger:  logger,
		}), nil
	case "ses":
		return NewSESTransport(r.awsCfg, SESConfig{Logger: logger}), nil
	case "resend":
		return NewResendTransport(ResendConfig{
			APIKey:  settings.APIKey.Unmask(),
			BaseURL: settings.Endpoint,
			Timeout: r.cfg.SendTimeout,
			Logger:  logger,
		})
	}
	return nil, types.NewAppError(types.ErrCodeConfigurationMissing, fmt.Sprintf("unknown email provider %q", r.emailProvider), nil)
}
