package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehealth/internal/config"
	"servicehealth/internal/notifications/email"
	"servicehealth/internal/notifications/format"
	"servicehealth/internal/notifications/webhook"
	"servicehealth/internal/storage"
	"servicehealth/internal/types"
)

func testMailDeps(sender MailSender, recipients email.RecipientResolver) MailDeps {
	return MailDeps{
		Settings:   config.StaticMailResolver{Settings: testMailSettings()},
		Recipients: recipients,
		Sender:     sender,
		Retry:      NewRetryOrchestrator(NopMetrics{}, types.NopLogger{}),
	}
}

// --- EmailHandler ---

func TestEmailHandler_SendsToTagRecipients(t *testing.T) {
	sender := &fakeMailSender{}
	h := NewEmailHandler(testFormatter(t), testMailDeps(sender, email.TagRecipients{Keys: email.DefaultTagKeys}), types.NopLogger{})

	outputs, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	assert.Empty(t, outputs)

	require.Len(t, sender.sent, 1)
	n := sender.sent[0]
	assert.Equal(t, "health@example.com", n.SenderAddress)
	assert.Equal(t, []string{"app-team@example.com", "ops@example.com"}, n.Recipients)
	assert.Equal(t, "Storage in West Europe is degraded", n.Subject)
	assert.Equal(t, "TRK-1", n.TrackingID)
	assert.Contains(t, n.Notification.BodyHTML, "acct")
}

func TestEmailHandler_FallsBackToTestRecipient(t *testing.T) {
	sender := &fakeMailSender{}
	h := NewEmailHandler(testFormatter(t), testMailDeps(sender, email.FallbackRecipients{}), types.NopLogger{})

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, sender.sent[0].Recipients)
}

func TestEmailHandler_RateLimitedProducesRetry(t *testing.T) {
	sender := &fakeMailSender{err: types.NewRateLimitedError("429", 429, 30*time.Second, nil)}
	h := NewEmailHandler(testFormatter(t), testMailDeps(sender, email.FallbackRecipients{}), types.NopLogger{})

	outputs, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, types.QueueRetryEmail, outputs[0].Destination)
	assert.Equal(t, 30*time.Second, outputs[0].Delay)
}

func TestEmailHandler_SettingsErrorIsReturned(t *testing.T) {
	deps := testMailDeps(&fakeMailSender{}, email.FallbackRecipients{})
	deps.Settings = config.StaticMailResolver{Err: errors.New("ssm down")}
	h := NewEmailHandler(testFormatter(t), deps, types.NopLogger{})

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	assert.EqualError(t, err, "ssm down")
}

func TestEmailHandler_MalformedPayload(t *testing.T) {
	sender := &fakeMailSender{}
	h := NewEmailHandler(testFormatter(t), testMailDeps(sender, email.FallbackRecipients{}), types.NopLogger{})

	_, err := h.Handle(context.Background(), []byte("nope"))
	assert.True(t, types.IsMalformedInput(err))
	assert.Empty(t, sender.sent)
}

// --- RetryHandler ---

func retryPayload(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(testEmailNotification())
	require.NoError(t, err)
	return b
}

func TestRetryHandler_SentIsArchived(t *testing.T) {
	sender := &fakeMailSender{}
	h := NewRetryHandler(testMailDeps(sender, email.FallbackRecipients{}), "none", fixedClock{}, fixedID("id-9"), types.NopLogger{})

	outputs, err := h.Handle(context.Background(), retryPayload(t))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, testEmailNotification(), sender.sent[0])

	require.Len(t, outputs, 1)
	assert.Equal(t, types.PrefixNotificationHistory+"n-20240305T143000Z-id-9.html", outputs[0].Key)
	assert.Equal(t, "<p>x</p>", string(outputs[0].Payload))
}

func TestRetryHandler_StillRateLimitedRequeuesWithoutArchive(t *testing.T) {
	sender := &fakeMailSender{err: types.NewRateLimitedError("429", 429, types.NoRetryAfter, nil)}
	h := NewRetryHandler(testMailDeps(sender, email.FallbackRecipients{}), "none", fixedClock{}, fixedID("id-9"), types.NopLogger{})

	outputs, err := h.Handle(context.Background(), retryPayload(t))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, types.QueueRetryEmail, outputs[0].Destination)
}

func TestRetryHandler_SkippedIsNotArchived(t *testing.T) {
	sender := &fakeMailSender{result: types.SendResult{State: types.DeliverySkipped}}
	h := NewRetryHandler(testMailDeps(sender, email.FallbackRecipients{}), "none", fixedClock{}, fixedID("id-9"), types.NopLogger{})

	outputs, err := h.Handle(context.Background(), retryPayload(t))
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestRetryHandler_MalformedPayload(t *testing.T) {
	h := NewRetryHandler(testMailDeps(&fakeMailSender{}, email.FallbackRecipients{}), "none", fixedClock{}, fixedID("x"), types.NopLogger{})

	_, err := h.Handle(context.Background(), []byte("[]"))
	assert.True(t, types.IsMalformedInput(err))
}

// --- ChannelHandler ---

type fakePoster struct {
	urls     []string
	payloads [][]byte
	headers  []map[string]string
	err      error
}

func (f *fakePoster) Post(_ context.Context, url string, payload []byte, headers map[string]string) error {
	f.urls = append(f.urls, url)
	f.payloads = append(f.payloads, payload)
	f.headers = append(f.headers, headers)
	return f.err
}

func newChannelHandler(ch types.ChannelType, url string, poster *fakePoster, metrics Metrics) *ChannelHandler {
	return NewChannelHandler(ChannelHandlerConfig{
		Channel: ch,
		URL:     url,
		Poster:  poster,
		Metrics: metrics,
		Logger:  types.NopLogger{},
	})
}

func TestChannelHandler_NoWebhookAcks(t *testing.T) {
	poster := &fakePoster{}
	metrics := &recordingMetrics{}
	h := newChannelHandler(types.ChannelITSM, "", poster, metrics)

	outputs, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	assert.Empty(t, outputs)
	assert.Empty(t, poster.urls)
	assert.Equal(t, []string{"itsm:skipped"}, metrics.deliveries)
}

func TestChannelHandler_PostsGenericEnvelope(t *testing.T) {
	poster := &fakePoster{}
	metrics := &recordingMetrics{}
	h := newChannelHandler(types.ChannelDevOps, "https://hooks.example.com/devops", poster, metrics)

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	require.Equal(t, []string{"https://hooks.example.com/devops"}, poster.urls)

	var got webhook.GenericPayload
	require.NoError(t, json.Unmarshal(poster.payloads[0], &got))
	assert.Equal(t, "TRK-1", got.Impact.TrackingID())
	assert.Equal(t, testImpact().Resources, got.Impact.Resources)
	assert.Equal(t, "application/json", poster.headers[0]["Content-Type"])
	assert.NotContains(t, poster.headers[0], webhook.SignatureHeader)
	assert.Equal(t, []string{"devops:success"}, metrics.deliveries)
}

func TestChannelHandler_SignsAndFormatsForPlatform(t *testing.T) {
	poster := &fakePoster{}
	renderer := webhook.NewRenderer(webhook.RendererConfig{
		Secrets: webhook.SigningSecrets{Current: "hook-secret"},
		Clock:   fixedClock{},
	})
	h := NewChannelHandler(ChannelHandlerConfig{
		Channel:  types.ChannelOther,
		URL:      "https://hooks.slack.com/services/T/B/X",
		Poster:   poster,
		Renderer: renderer,
	})

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	require.Len(t, poster.payloads, 1)

	var got webhook.SlackPayload
	require.NoError(t, json.Unmarshal(poster.payloads[0], &got))
	assert.NotEmpty(t, got.Blocks)
	assert.True(t, webhook.Verify(poster.payloads[0], poster.headers[0][webhook.SignatureHeader], "hook-secret", ""))
}

func TestChannelHandler_RejectionIsDropped(t *testing.T) {
	poster := &fakePoster{err: types.NewAppError(types.ErrCodeDeliveryFailed, "webhook returned 400", nil)}
	metrics := &recordingMetrics{}
	h := newChannelHandler(types.ChannelOther, "https://hooks.example.com/other", poster, metrics)

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	require.NoError(t, err)
	assert.Equal(t, []types.ChannelType{types.ChannelOther}, metrics.deadLettered)
}

func TestChannelHandler_TransientErrorIsReturned(t *testing.T) {
	unavailable := types.NewAppError(types.ErrCodeUpstreamUnavailable, "webhook unreachable", nil)
	h := newChannelHandler(types.ChannelOther, "https://hooks.example.com/other", &fakePoster{err: unavailable}, NopMetrics{})

	_, err := h.Handle(context.Background(), testImpactJSON(t))
	assert.ErrorIs(t, err, unavailable)
}

func TestChannelHandler_MalformedPayload(t *testing.T) {
	h := newChannelHandler(types.ChannelITSM, "https://hooks.example.com/itsm", &fakePoster{}, NopMetrics{})

	_, err := h.Handle(context.Background(), []byte("not json"))
	assert.True(t, types.IsMalformedInput(err))
}

// --- ReportHandler ---

// putReport stores impacts as a report blob and returns its key, which
// gains the zstd suffix when compression is "zstd".
func putReport(t *testing.T, store *storage.MemoryStore, key, compression string, impacts []types.HealthImpact) string {
	t.Helper()
	body, err := json.Marshal(impacts)
	require.NoError(t, err)
	key, body = storage.Encode(compression, key, body)
	require.NoError(t, store.Put(context.Background(), key, body, "application/json"))
	return key
}

func newTestReportHandler(t *testing.T, store *storage.MemoryStore, sender MailSender, emailEnabled bool) *ReportHandler {
	t.Helper()
	return NewReportHandler(ReportHandlerConfig{
		Blobs:        store,
		Formatter:    testFormatter(t),
		Mail:         testMailDeps(sender, email.TagRecipients{Operators: []string{"noc@example.com"}}),
		EmailEnabled: emailEnabled,
		Compression:  "none",
		Clock:        fixedClock{},
		IDs:          fixedID("rep-1"),
		Logger:       types.NopLogger{},
	})
}

func TestReportHandler_EmailsOperatorsAndArchives(t *testing.T) {
	store := storage.NewMemoryStore()
	key := putReport(t, store, types.PrefixReports+"r-20240305T143000Z-x.json", "none", []types.HealthImpact{testImpact(), testImpact()})
	sender := &fakeMailSender{}

	outputs, err := newTestReportHandler(t, store, sender, true).Handle(context.Background(), key)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	n := sender.sent[0]
	assert.Equal(t, format.ReportSubject, n.Subject)
	assert.Equal(t, []string{"noc@example.com", "ops@example.com"}, n.Recipients)
	assert.Contains(t, n.Notification.BodyHTML, "2 active issue(s)")

	require.Len(t, outputs, 1)
	assert.Equal(t, types.PrefixReportHistory+"r-20240305T143000Z-rep-1.html", outputs[0].Key)
}

func TestReportHandler_EmailDisabledOnlyArchives(t *testing.T) {
	store := storage.NewMemoryStore()
	key := putReport(t, store, types.PrefixReports+"r-1.json", "none", []types.HealthImpact{testImpact()})
	sender := &fakeMailSender{}

	outputs, err := newTestReportHandler(t, store, sender, false).Handle(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	require.Len(t, outputs, 1)
	assert.Equal(t, types.OutputBlob, outputs[0].Kind)
}

func TestReportHandler_CompressedBlob(t *testing.T) {
	store := storage.NewMemoryStore()
	key := putReport(t, store, types.PrefixReports+"r-1.json", "zstd", []types.HealthImpact{testImpact()})
	require.True(t, storage.IsCompressedKey(key))

	outputs, err := newTestReportHandler(t, store, &fakeMailSender{}, false).Handle(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}

func TestReportHandler_TruncatedBlobIsMalformed(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.PrefixReports + "r-1.json"
	require.NoError(t, store.Put(context.Background(), key, []byte(`[{"issue":{"trackingId":"A"`), "application/json"))

	_, err := newTestReportHandler(t, store, &fakeMailSender{}, true).Handle(context.Background(), key)
	assert.True(t, types.IsMalformedInput(err), "got %v", err)
}

func TestReportHandler_InvalidJSONIsReturned(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.PrefixReports + "r-1.json"
	require.NoError(t, store.Put(context.Background(), key, []byte(`{"not":"a list"}`), "application/json"))

	_, err := newTestReportHandler(t, store, &fakeMailSender{}, true).Handle(context.Background(), key)
	require.Error(t, err)
	assert.False(t, types.IsMalformedInput(err))
}

func TestReportHandler_MissingBlobIsMalformed(t *testing.T) {
	_, err := newTestReportHandler(t, storage.NewMemoryStore(), &fakeMailSender{}, true).Handle(context.Background(), types.PrefixReports+"gone.json")
	assert.True(t, types.IsMalformedInput(err))
}
