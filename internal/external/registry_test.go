package external

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"servicehealth/internal/config"
	"servicehealth/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func registryConfig(env, provider string) *config.Config {
	return &config.Config{
		Environment: env,
		Email:       config.EmailConfig{Provider: provider, SendTimeout: 5 * time.Second},
		Channels:    config.ChannelConfig{Timeout: 5 * time.Second},
	}
}

func TestNewClientRegistry_LocalReturnsStubs(t *testing.T) {
	reg, err := NewClientRegistry(registryConfig("local", "smtp"), aws.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewClientRegistry returned error: %v", err)
	}

	if _, ok := reg.Graph.(*StubGraphQuerier); !ok {
		t.Errorf("Graph is %T, want *StubGraphQuerier", reg.Graph)
	}
	if _, ok := reg.Webhooks.(*StubWebhookPoster); !ok {
		t.Errorf("Webhooks is %T, want *StubWebhookPoster", reg.Webhooks)
	}

	mail, err := reg.MailTransport(config.MailSettings{})
	if err != nil {
		t.Fatalf("MailTransport returned error: %v", err)
	}
	if _, ok := mail.(*StubMailTransport); !ok {
		t.Errorf("mail transport is %T, want *StubMailTransport", mail)
	}
}

func TestNewClientRegistry_ProductionWithoutAzureHasNoGraph(t *testing.T) {
	reg, err := NewClientRegistry(registryConfig("prod", "smtp"), aws.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewClientRegistry returned error: %v", err)
	}

	if _, err := reg.RequireGraph(); types.CodeOf(err) != types.ErrCodeConfigurationMissing {
		t.Errorf("RequireGraph() error = %v, want configuration_missing", err)
	}
	if _, ok := reg.Webhooks.(*WebhookClient); !ok {
		t.Errorf("Webhooks is %T, want *WebhookClient", reg.Webhooks)
	}
}

func TestNewClientRegistry_ProductionWithAzure(t *testing.T) {
	cfg := registryConfig("prod", "smtp")
	cfg.Azure = config.AzureConfig{
		TenantID:      "tenant",
		ClientID:      "client",
		ClientSecret:  "secret",
		Endpoint:      "https://management.azure.com",
		AuthorityHost: "https://login.microsoftonline.com",
	}

	reg, err := NewClientRegistry(cfg, aws.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewClientRegistry returned error: %v", err)
	}

	graph, err := reg.RequireGraph()
	if err != nil {
		t.Fatalf("RequireGraph() error = %v", err)
	}
	if _, ok := graph.(*ResourceGraphClient); !ok {
		t.Errorf("Graph is %T, want *ResourceGraphClient", graph)
	}
}

func TestClientRegistry_MailTransportPerProvider(t *testing.T) {
	settings := config.MailSettings{
		RelayHost:     "smtp.example.com",
		RelayPort:     587,
		SenderAddress: "health@example.com",
		APIKey:        "key",
	}

	tests := []struct {
		provider string
		check    func(MailTransport) bool
	}{
		{"smtp", func(m MailTransport) bool { _, ok := m.(*SMTPTransport); return ok }},
		{"sendgrid", func(m MailTransport) bool { _, ok := m.(*SendGridTransport); return ok }},
		{"ses", func(m MailTransport) bool { _, ok := m.(*SESTransport); return ok }},
		{"resend", func(m MailTransport) bool { _, ok := m.(*ResendTransport); return ok }},
		{"stub", func(m MailTransport) bool { _, ok := m.(*StubMailTransport); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			reg, err := NewClientRegistry(registryConfig("prod", tt.provider), aws.Config{Region: "us-east-1"}, testLogger())
			if err != nil {
				t.Fatalf("NewClientRegistry returned error: %v", err)
			}
			mail, err := reg.MailTransport(settings)
			if err != nil {
				t.Fatalf("MailTransport returned error: %v", err)
			}
			if !tt.check(mail) {
				t.Errorf("unexpected transport type %T", mail)
			}
		})
	}
}

func TestClientRegistry_UnknownProvider(t *testing.T) {
	reg, err := NewClientRegistry(registryConfig("prod", "carrier-pigeon"), aws.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewClientRegistry returned error: %v", err)
	}

	if _, err := reg.MailTransport(config.MailSettings{}); types.CodeOf(err) != types.ErrCodeConfigurationMissing {
		t.Errorf("expected configuration_missing, got %v", err)
	}
}

func TestClientRegistry_MailTransportReusedForSameSettings(t *testing.T) {
	reg, err := NewClientRegistry(registryConfig("prod", "sendgrid"), aws.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewClientRegistry returned error: %v", err)
	}

	settings := config.MailSettings{Endpoint: "https://api.sendgrid.com", APIKey: "key-1"}
	first, err := reg.MailTransport(settings)
	if err != nil {
		t.Fatalf("MailTransport returned error: %v", err)
	}
	second, err := reg.MailTransport(settings)
	if err != nil {
		t.Fatalf("MailTransport returned error: %v", err)
	}
	if first != second {
		t.Error("expected the same transport for identical settings")
	}

	settings.APIKey = "key-2"
	rotated, err := reg.MailTransport(settings)
	if err != nil {
		t.Fatalf("MailTransport returned error: %v", err)
	}
	if rotated == first {
		t.Error("expected a new transport after the api key changed")
	}
}
