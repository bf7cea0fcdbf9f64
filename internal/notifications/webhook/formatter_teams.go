package webhook

import (
	"encoding/json"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// TeamsFormatter formats impacts as Microsoft Teams Adaptive Card JSON
// targeting the Power Automate Workflow schema.
type TeamsFormatter struct{}

// Platform returns the platform identifier.
func (f *TeamsFormatter) Platform() Platform {
	return PlatformTeams
}

// Format transforms a HealthImpact into Teams Adaptive Card JSON.
func (f *TeamsFormatter) Format(impact types.HealthImpact) ([]byte, error) {
	body := []AdaptiveItem{
		{Type: "TextBlock", Text: formatTitle(impact), Size: "Large", Weight: "Bolder", Wrap: true},
		{Type: "FactSet", Facts: buildFacts(impact)},
	}
	if lines := scopeLines(impact); len(lines) > 0 {
		body = append(body, AdaptiveItem{Type: "TextBlock", Text: joinLines(lines), Wrap: true})
	}
	body = append(body, AdaptiveItem{Type: "TextBlock", Text: scopeSummary(impact), Size: "Small", Wrap: true})

	payload := TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: AdaptiveCard{
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
				Actions: []AdaptiveAction{{
					Type:  "Action.OpenUrl",
					Title: "Open in Azure Portal",
					URL:   format.PortalLink(impact.Issue.EventType),
				}},
			},
		}},
	}
	return json.Marshal(payload)
}
