package webhook

import (
	"encoding/json"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// genericEventType is the "type" field of generic payloads.
const genericEventType = "servicehealth.impact"

// GenericFormatter sends the impact as-is inside a small envelope.
type GenericFormatter struct{}

// Platform returns the platform identifier.
func (f *GenericFormatter) Platform() Platform {
	return PlatformGeneric
}

// Format wraps the impact in a GenericPayload.
func (f *GenericFormatter) Format(impact types.HealthImpact) ([]byte, error) {
	return json.Marshal(GenericPayload{
		Type:   genericEventType,
		Title:  formatTitle(impact),
		Link:   format.PortalLink(impact.Issue.EventType),
		Impact: impact,
	})
}
