package webhook

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehealth/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testImpact() types.HealthImpact {
	return types.HealthImpact{
		Issue: types.HealthIssue{
			TrackingID:      "TRK-42",
			EventType:       types.EventServiceIssue,
			Status:          "Active",
			Title:           "Storage degradation",
			Summary:         "Some storage accounts in West Europe are degraded.",
			ImpactStartTime: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		Resources: []types.ImpactedResource{{
			ResourceID:    "/subscriptions/s1/resourceGroups/rg1/providers/Microsoft.Storage/storageAccounts/acct",
			Name:          "acct",
			Type:          "microsoft.storage/storageaccounts",
			ResourceGroup: "rg1",
			TrackingID:    "TRK-42",
			Tags:          map[string]string{"owner": "ops@example.com"},
		}},
	}
}

func TestPlatformRegistry_Detect(t *testing.T) {
	r := NewPlatformRegistry()

	tests := []struct {
		url      string
		override Platform
		want     Platform
	}{
		{"https://hooks.slack.com/services/T/B/X", "", PlatformSlack},
		{"https://discord.com/api/webhooks/1/abc", "", PlatformDiscord},
		{"https://contoso.webhook.office.com/webhookb2/x", "", PlatformTeams},
		{"https://prod-01.westeurope.logic.azure.com/workflows/x", "", PlatformTeams},
		{"https://chat.googleapis.com/v1/spaces/x/messages", "", PlatformGoogleChat},
		{"https://itsm.example.com/api/events", "", PlatformGeneric},
		{"https://hooks.slack.com/services/T/B/X", PlatformGeneric, PlatformGeneric},
		{"https://itsm.example.com/api/events", Platform("pager"), PlatformGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.url+"/"+string(tt.override), func(t *testing.T) {
			assert.Equal(t, tt.want, r.Detect(tt.url, tt.override))
		})
	}
}

func TestFormatters_ProduceValidJSON(t *testing.T) {
	r := NewPlatformRegistry()
	impact := testImpact()

	for _, p := range []Platform{PlatformGeneric, PlatformSlack, PlatformTeams, PlatformDiscord, PlatformGoogleChat} {
		t.Run(string(p), func(t *testing.T) {
			f := r.Get(p)
			assert.Equal(t, p, f.Platform())

			body, err := f.Format(impact)
			require.NoError(t, err)
			assert.True(t, json.Valid(body))
			assert.Contains(t, string(body), "TRK-42")
		})
	}
}

func TestGenericFormatter_EmbedsImpact(t *testing.T) {
	body, err := (&GenericFormatter{}).Format(testImpact())
	require.NoError(t, err)

	var got GenericPayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, genericEventType, got.Type)
	assert.Equal(t, "TRK-42", got.Impact.TrackingID())
	assert.Len(t, got.Impact.Resources, 1)
	assert.Contains(t, got.Title, "Service Issue")
}

func TestSlackFormatter_Blocks(t *testing.T) {
	body, err := (&SlackFormatter{}).Format(testImpact())
	require.NoError(t, err)

	var got SlackPayload
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Blocks, 4)
	assert.Equal(t, "header", got.Blocks[0].Type)
	assert.Equal(t, "context", got.Blocks[3].Type)
	assert.Contains(t, got.Blocks[2].Text.Text, "acct (microsoft.storage/storageaccounts, rg1)")
}

func TestDiscordFormatter_ColorByEventType(t *testing.T) {
	impact := testImpact()
	impact.Issue.EventType = types.EventPlannedMaintenance

	body, err := (&DiscordFormatter{}).Format(impact)
	require.NoError(t, err)

	var got DiscordPayload
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, colorMaintenance, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Title, "Planned Maintenance")
}

func TestScopeLines_TruncatesAndFallsBack(t *testing.T) {
	impact := testImpact()
	impact.Resources = nil
	for i := 0; i < maxListedResources+2; i++ {
		impact.Resources = append(impact.Resources, types.ImpactedResource{Name: fmt.Sprintf("r%d", i)})
	}
	lines := scopeLines(impact)
	require.Len(t, lines, maxListedResources+1)
	assert.Equal(t, "...and 2 more resources.", lines[maxListedResources])

	impact.Resources = nil
	impact.Subscriptions = []types.ImpactedSubscription{{SubscriptionID: "s1", Name: "Production"}}
	assert.Equal(t, []string{"Subscription Production (s1)"}, scopeLines(impact))
	assert.Equal(t, "1 impacted subscription(s)", scopeSummary(impact))
}

func TestSigner_Sign(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"type":"servicehealth.impact"}`)

	t.Run("current only", func(t *testing.T) {
		s := NewSigner(SigningSecrets{Current: "new"})
		header, err := s.Sign(payload, now)
		require.NoError(t, err)

		parts := parseSignatureHeader(header)
		assert.Equal(t, fmt.Sprint(now.Unix()), parts.timestamp)
		assert.Equal(t, computeHMAC(fmt.Sprintf("%d.%s", now.Unix(), payload), "new"), parts.v1)
		assert.Empty(t, parts.v1Old)
	})

	t.Run("previous within grace period", func(t *testing.T) {
		s := NewSigner(SigningSecrets{Current: "new", Previous: "old", PreviousExpiresAt: now.Add(time.Hour)})
		header, err := s.Sign(payload, now)
		require.NoError(t, err)
		assert.Contains(t, header, "v1_old=")
		assert.True(t, Verify(payload, header, "", "old"))
	})

	t.Run("previous expired", func(t *testing.T) {
		s := NewSigner(SigningSecrets{Current: "new", Previous: "old", PreviousExpiresAt: now.Add(-time.Second)})
		header, err := s.Sign(payload, now)
		require.NoError(t, err)
		assert.NotContains(t, header, "v1_old=")
	})

	t.Run("previous without expiry", func(t *testing.T) {
		s := NewSigner(SigningSecrets{Current: "new", Previous: "old"})
		header, err := s.Sign(payload, now)
		require.NoError(t, err)
		assert.NotContains(t, header, "v1_old=")
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewSigner(SigningSecrets{}).Sign(payload, now)
		assert.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{}`)
	header, err := NewSigner(SigningSecrets{Current: "new"}).Sign(payload, now)
	require.NoError(t, err)

	assert.True(t, Verify(payload, header, "new", ""))
	assert.False(t, Verify(payload, header, "wrong", ""))
	assert.False(t, Verify([]byte(`{"x":1}`), header, "new", ""))
	assert.False(t, Verify(payload, "garbage", "new", ""))
}

func TestRenderer_Render(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unsigned generic", func(t *testing.T) {
		r := NewRenderer(RendererConfig{})
		req, err := r.Render("https://itsm.example.com/hook", testImpact())
		require.NoError(t, err)
		assert.Equal(t, PlatformGeneric, req.Platform)
		assert.Equal(t, "application/json", req.Headers["Content-Type"])
		assert.NotContains(t, req.Headers, SignatureHeader)
	})

	t.Run("signed slack", func(t *testing.T) {
		r := NewRenderer(RendererConfig{Secrets: SigningSecrets{Current: "s3cret"}, Clock: fixedClock{now}})
		req, err := r.Render("https://hooks.slack.com/services/T/B/X", testImpact())
		require.NoError(t, err)
		assert.Equal(t, PlatformSlack, req.Platform)
		assert.True(t, Verify(req.Body, req.Headers[SignatureHeader], "s3cret", ""))
	})

	t.Run("override", func(t *testing.T) {
		r := NewRenderer(RendererConfig{Platform: PlatformTeams})
		assert.Equal(t, PlatformTeams, r.Platform("https://itsm.example.com/hook"))
	})
}
