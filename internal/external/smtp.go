package external

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"servicehealth/internal/types"
)

// implicitTLSPort is the submissions port; every other port dials plain and
// upgrades with STARTTLS when the relay advertises it.
const implicitTLSPort = 465

// SMTPConfig holds the relay settings for an SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// SMTPTransport implements MailTransport over an authenticated SMTP relay.
// One connection is opened per message and every recipient is added to the
// same envelope.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPTransport{
		host:     strings.TrimSpace(cfg.Host),
		port:     cfg.Port,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		timeout:  timeout,
		logger:   logger.With("component", "smtp_transport"),
	}
}

// Send delivers msg and returns the generated Message-ID.
//
// Relay replies 421, 450, 451 and 452 are transient and map to
// ErrCodeRateLimited with the default delay. Other 4xx/5xx replies map to
// ErrCodeDeliveryFailed. Dial and TLS failures map to
// ErrCodeUpstreamUnavailable.
func (s *SMTPTransport) Send(ctx context.Context, msg MailMessage) (string, error) {
	if s.host == "" || s.port == 0 {
		return "", types.NewAppError(types.ErrCodeConfigurationMissing, "smtp relay is not configured", nil)
	}
	if len(msg.To) == 0 {
		return "", types.NewAppError(types.ErrCodeDeliveryFailed, "no recipients", nil)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.From))
	body, err := buildMIMEMessage(msg, messageID, time.Now())
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build mime message", err)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return "", classifySMTPError("connect", err)
	}
	defer client.Close()

	if err := client.Mail(msg.From); err != nil {
		return "", classifySMTPError("MAIL FROM", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return "", classifySMTPError("RCPT TO", err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return "", classifySMTPError("DATA", err)
	}
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return "", classifySMTPError("DATA", err)
	}
	if err := writer.Close(); err != nil {
		return "", classifySMTPError("DATA", err)
	}
	if err := client.Quit(); err != nil {
		s.logger.Warn("smtp quit failed after accepted message", "error", err)
	}

	return messageID, nil
}

func (s *SMTPTransport) connect(ctx context.Context) (*smtp.Client, error) {
	address := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	dialer := &net.Dialer{Timeout: s.timeout}
	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if s.port == implicitTLSPort {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(s.timeout))

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if s.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, err
			}
		}
	}
	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// transientSMTPCodes are the relay replies treated as throttling.
var transientSMTPCodes = map[int]bool{421: true, 450: true, 451: true, 452: true}

func classifySMTPError(stage string, err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		message := fmt.Sprintf("smtp %s: %d %s", stage, protoErr.Code, protoErr.Msg)
		if transientSMTPCodes[protoErr.Code] {
			return types.NewRateLimitedError(message, protoErr.Code, types.NoRetryAfter, err)
		}
		return types.NewAppError(types.ErrCodeDeliveryFailed, message, err)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("smtp %s: %v", stage, err), err)
}

// buildMIMEMessage renders a multipart/alternative message with a text part
// followed by an html part.
func buildMIMEMessage(msg MailMessage, messageID string, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=\"UTF-8\"", msg.Text},
		{"text/html; charset=\"UTF-8\"", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(normalizeCRLF(p.content))); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	headers := []string{
		"From: " + msg.From,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("UTF-8", msg.Subject),
		"Date: " + now.UTC().Format(time.RFC1123Z),
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()),
	}
	if msg.Reference != "" {
		headers = append(headers, "X-Tracking-Id: "+msg.Reference)
	}

	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return strings.Trim(address[at+1:], "> ")
	}
	return "localhost"
}

var _ MailTransport = (*SMTPTransport)(nil)
