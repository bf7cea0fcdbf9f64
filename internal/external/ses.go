package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"servicehealth/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESTransport.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds the configuration for creating an SESTransport.
type SESConfig struct {
	// ConfigSetName is the SES configuration set name. Optional.
	ConfigSetName string
	Logger        *slog.Logger
}

// SESTransport implements MailTransport using AWS SES v2. Authentication is
// handled via the Lambda execution role.
type SESTransport struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

// NewSESTransport creates an SESTransport from an AWS config.
func NewSESTransport(awsCfg aws.Config, cfg SESConfig) *SESTransport {
	return NewSESTransportWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESTransportWithAPI creates an SESTransport with a pre-configured SESAPI.
func NewSESTransportWithAPI(api SESAPI, cfg SESConfig) *SESTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SESTransport{
		api:           api,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send transmits the message with simple content: one destination listing
// every recipient.
//
// Error mapping:
//   - TooManyRequestsException -> ErrCodeRateLimited (SES sends no retry-after)
//   - MessageRejected, MailFromDomainNotVerified -> ErrCodeDeliveryFailed
//   - SendingPausedException -> ErrCodeUpstreamUnavailable
func (s *SESTransport) Send(ctx context.Context, msg MailMessage) (string, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &sestypes.Destination{
			ToAddresses: msg.To,
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{},
			},
		},
	}

	if msg.HTML != "" {
		input.Content.Simple.Body.Html = &sestypes.Content{
			Data:    aws.String(msg.HTML),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.Text != "" {
		input.Content.Simple.Body.Text = &sestypes.Content{
			Data:    aws.String(msg.Text),
			Charset: aws.String("UTF-8"),
		}
	}

	if s.configSetName != "" {
		input.ConfigurationSetName = aws.String(s.configSetName)
	}

	// SES tag values only allow [A-Za-z0-9_-]; tracking IDs fit that.
	if msg.Reference != "" {
		input.EmailTags = []sestypes.MessageTag{
			{Name: aws.String("TrackingID"), Value: aws.String(msg.Reference)},
		}
	}

	result, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", mapSESError(err)
	}

	return aws.ToString(result.MessageId), nil
}

func mapSESError(err error) error {
	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewRateLimitedError(fmt.Sprintf("SES rate limit exceeded: %v", err), 429, types.NoRetryAfter, err)
	}

	var limitExceeded *sestypes.LimitExceededException
	if errors.As(err, &limitExceeded) {
		return types.NewRateLimitedError(fmt.Sprintf("SES sending quota exceeded: %v", err), 429, types.NoRetryAfter, err)
	}

	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeDeliveryFailed, fmt.Sprintf("SES rejected message: %v", err), err)
	}

	var notVerified *sestypes.MailFromDomainNotVerifiedException
	if errors.As(err, &notVerified) {
		return types.NewAppError(types.ErrCodeDeliveryFailed, fmt.Sprintf("SES sender domain not verified: %v", err), err)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES account sending paused: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES error: %v", err), err)
}

var _ MailTransport = (*SESTransport)(nil)
