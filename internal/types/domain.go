package types

import (
	"time"
)

// HealthIssue identifies one detected Service Health event. It is immutable
// once read from the inventory.
type HealthIssue struct {
	TrackingID           string    `json:"trackingId"`
	EventType            EventType `json:"eventType"`
	EventSubType         string    `json:"eventSubType,omitempty"`
	Status               string    `json:"status"`
	Title                string    `json:"title,omitempty"`
	Summary              string    `json:"summary"`
	Description          string    `json:"description"`
	ImpactStartTime      time.Time `json:"impactStartTime"`
	ImpactMitigationTime time.Time `json:"impactMitigationTime"`
	LastUpdateTime       time.Time `json:"lastUpdateTime"`
	PlatformInitiated    bool      `json:"platformInitiated"`
}

// ImpactedResource is a resource affected by an issue. Many per issue.
type ImpactedResource struct {
	ResourceID     string            `json:"resourceId"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	ResourceGroup  string            `json:"resourceGroup"`
	SubscriptionID string            `json:"subscriptionId"`
	TrackingID     string            `json:"trackingId"`
	Status         string            `json:"status"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// ImpactedSubscription is used when an issue has no directly impacted
// resources, so it can still be notified at subscription granularity.
type ImpactedSubscription struct {
	SubscriptionID string `json:"subscriptionId"`
	Name           string `json:"name"`
	TrackingID     string `json:"trackingId"`
}

// HealthImpact is one issue plus its impacted resources and subscriptions.
// It is the unit of work and the unit of idempotence in the pipeline.
type HealthImpact struct {
	Issue         HealthIssue            `json:"issue"`
	Resources     []ImpactedResource     `json:"resources"`
	Subscriptions []ImpactedSubscription `json:"subscriptions"`
}

// TrackingID returns the issue's tracking ID.
func (h HealthImpact) TrackingID() string {
	return h.Issue.TrackingID
}

// RenderedNotification is the human-readable form of a HealthImpact.
type RenderedNotification struct {
	BodyHTML string `json:"bodyHtml"`
	BodyText string `json:"bodyText"`
}

// EmailNotification carries everything needed to resend a message without
// re-querying anything. It is the retry-email queue payload.
type EmailNotification struct {
	SenderAddress string               `json:"senderAddress"`
	Recipients    []string             `json:"recipients"`
	Subject       string               `json:"subject"`
	Notification  RenderedNotification `json:"notification"`
	TrackingID    string               `json:"trackingId,omitempty"`
}

// SendResult is returned by a successful (or skipped) send.
type SendResult struct {
	State      DeliveryState `json:"state"`
	ProviderID string        `json:"providerId,omitempty"`
}

// Output is a deferred write produced by a handler. The trigger adapter
// flushes outputs only after the handler returns successfully.
type Output struct {
	Kind        OutputKind
	Destination string // logical queue name, empty for blob outputs
	Key         string // blob key, empty for queue outputs
	Payload     []byte
	ContentType string
	Delay       time.Duration
}

// QueueOutput builds a queue output.
func QueueOutput(queue string, payload []byte, delay time.Duration) Output {
	return Output{
		Kind:        OutputQueue,
		Destination: queue,
		Payload:     payload,
		ContentType: "application/json",
		Delay:       delay,
	}
}

// BlobOutput builds a blob output.
func BlobOutput(key string, payload []byte, contentType string) Output {
	return Output{
		Kind:        OutputBlob,
		Key:         key,
		Payload:     payload,
		ContentType: contentType,
	}
}
