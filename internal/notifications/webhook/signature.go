package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicehealth/internal/types"
)

// SignatureHeader carries the payload signature.
const SignatureHeader = "X-ServiceHealth-Signature"

// SigningSecrets configures HMAC signing. Previous stays valid until
// PreviousExpiresAt so receivers can rotate without dropping messages.
type SigningSecrets struct {
	Current           types.SecretString
	Previous          types.SecretString
	PreviousExpiresAt time.Time
}

// Enabled reports whether a current secret is configured.
func (s SigningSecrets) Enabled() bool {
	return !s.Current.IsEmpty()
}

// Signer produces "t=<unix>,v1=<hex>[,v1_old=<hex>]" header values over
// "{unix}.{payload}" using HMAC-SHA256.
type Signer struct {
	secrets SigningSecrets
}

// NewSigner creates a Signer.
func NewSigner(secrets SigningSecrets) *Signer {
	return &Signer{secrets: secrets}
}

// Sign returns the signature header value for payload.
//
// v1_old is included only while the previous secret is present and
// now <= PreviousExpiresAt. A previous secret without an expiry is ignored.
func (s *Signer) Sign(payload []byte, now time.Time) (string, error) {
	if !s.secrets.Enabled() {
		return "", errors.New("webhook signature: missing signing secret")
	}

	timestamp := now.Unix()
	signedContent := fmt.Sprintf("%d.%s", timestamp, payload)

	header := fmt.Sprintf("t=%d,v1=%s", timestamp, computeHMAC(signedContent, s.secrets.Current.Unmask()))

	prev := s.secrets.Previous
	if !prev.IsEmpty() && !s.secrets.PreviousExpiresAt.IsZero() && !now.After(s.secrets.PreviousExpiresAt) {
		header = fmt.Sprintf("%s,v1_old=%s", header, computeHMAC(signedContent, prev.Unmask()))
	}
	return header, nil
}

// Verify checks a payload against a signature header. Either the current
// or the previous secret may match either signature.
func Verify(payload []byte, header string, current, previous string) bool {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || parts.v1 == "" {
		return false
	}
	signedContent := fmt.Sprintf("%s.%s", parts.timestamp, payload)

	for _, secret := range []string{current, previous} {
		if secret == "" {
			continue
		}
		expected := computeHMAC(signedContent, secret)
		if hmac.Equal([]byte(parts.v1), []byte(expected)) {
			return true
		}
		if parts.v1Old != "" && hmac.Equal([]byte(parts.v1Old), []byte(expected)) {
			return true
		}
	}
	return false
}

type signatureParts struct {
	timestamp string
	v1        string
	v1Old     string
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1_old=<hex>]".
func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "t":
			parts.timestamp = strings.TrimSpace(value)
		case "v1":
			parts.v1 = strings.TrimSpace(value)
		case "v1_old":
			parts.v1Old = strings.TrimSpace(value)
		}
	}
	return parts
}

func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}
