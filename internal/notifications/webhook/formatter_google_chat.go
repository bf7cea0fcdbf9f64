package webhook

import (
	"encoding/json"

	"servicehealth/internal/types"
)

// GoogleChatFormatter formats impacts as Google Chat card JSON.
type GoogleChatFormatter struct{}

// Platform returns the platform identifier.
func (f *GoogleChatFormatter) Platform() Platform {
	return PlatformGoogleChat
}

// Format transforms a HealthImpact into a Google Chat card.
func (f *GoogleChatFormatter) Format(impact types.HealthImpact) ([]byte, error) {
	facts := buildFacts(impact)
	details := make([]GoogleWidget, 0, len(facts))
	for _, fact := range facts {
		details = append(details, GoogleWidget{KeyValue: &GoogleKeyValue{TopLabel: fact.Title, Content: fact.Value}})
	}

	sections := []GoogleSection{{Header: "Details", Widgets: details}}
	if lines := scopeLines(impact); len(lines) > 0 {
		sections = append(sections, GoogleSection{
			Header:  "Impacted",
			Widgets: []GoogleWidget{{TextParagraph: &GoogleTextParagraph{Text: joinLines(lines)}}},
		})
	}

	payload := GoogleChatPayload{
		Cards: []GoogleCard{{
			Header:   GoogleHeader{Title: formatTitle(impact), Subtitle: scopeSummary(impact)},
			Sections: sections,
		}},
	}
	return json.Marshal(payload)
}
