package email

import (
	"context"
	"net/mail"
	"strings"

	"servicehealth/internal/types"
)

// RecipientResolver picks who receives a notification. fallback carries the
// configured test-only recipient.
type RecipientResolver interface {
	AppRecipients(ctx context.Context, impact types.HealthImpact, fallback []string) ([]string, error)
	OperatorRecipients(ctx context.Context, fallback []string) ([]string, error)
}

// FallbackRecipients sends everything to the fallback list.
type FallbackRecipients struct{}

func (FallbackRecipients) AppRecipients(_ context.Context, _ types.HealthImpact, fallback []string) ([]string, error) {
	return MergeRecipients(fallback), nil
}

func (FallbackRecipients) OperatorRecipients(_ context.Context, fallback []string) ([]string, error) {
	return MergeRecipients(fallback), nil
}

// DefaultTagKeys are the resource tags TagRecipients reads.
var DefaultTagKeys = []string{"owner", "notify"}

// TagRecipients resolves application recipients from resource tags. Tag
// values may hold several addresses separated by commas or semicolons;
// values that do not parse as addresses are ignored. Operators are the
// fallback plus Operators.
type TagRecipients struct {
	Keys      []string
	Operators []string
}

// AppRecipients returns tagged owners in resource order, then fallback.
func (t TagRecipients) AppRecipients(_ context.Context, impact types.HealthImpact, fallback []string) ([]string, error) {
	keys := t.Keys
	if len(keys) == 0 {
		keys = DefaultTagKeys
	}

	var tagged []string
	for _, res := range impact.Resources {
		for _, key := range keys {
			for tagKey, value := range res.Tags {
				if strings.EqualFold(tagKey, key) {
					tagged = append(tagged, addresses(value)...)
				}
			}
		}
	}
	return MergeRecipients(tagged, fallback), nil
}

func (t TagRecipients) OperatorRecipients(_ context.Context, fallback []string) ([]string, error) {
	return MergeRecipients(t.Operators, fallback), nil
}

func addresses(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
		addr, err := mail.ParseAddress(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, addr.Address)
	}
	return out
}

var (
	_ RecipientResolver = FallbackRecipients{}
	_ RecipientResolver = TagRecipients{}
)
