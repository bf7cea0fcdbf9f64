package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "relay-password-12345"

func TestSecretStringRedaction(t *testing.T) {
	s := SecretString(testSecret)

	for _, format := range []string{"%s", "%v", "%+v"} {
		if out := fmt.Sprintf(format, s); strings.Contains(out, testSecret) {
			t.Errorf("fmt %s leaked the secret: %s", format, out)
		}
	}

	data, err := json.Marshal(struct {
		Password SecretString `json:"password"`
	}{Password: s})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), testSecret) {
		t.Errorf("JSON leaked the secret: %s", data)
	}
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
}

func TestSecretStringSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("resolved", "password", SecretString(testSecret))

	if strings.Contains(buf.String(), testSecret) {
		t.Errorf("slog output leaked the secret: %s", buf.String())
	}
}

func TestSecretStringIsEmpty(t *testing.T) {
	if !SecretString("").IsEmpty() {
		t.Error("empty secret should report IsEmpty")
	}
	if SecretString("x").IsEmpty() {
		t.Error("non-empty secret should not report IsEmpty")
	}
}
