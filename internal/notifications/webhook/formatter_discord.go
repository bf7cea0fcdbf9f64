package webhook

import (
	"encoding/json"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// Discord embed colors (decimal values).
const (
	colorMaintenance = 0x2196F3 // Blue
	colorAdvisory    = 0xFFC107 // Amber
	colorIncident    = 0xF44336 // Red
)

// discordDescriptionLimit is Discord's embed description limit.
const discordDescriptionLimit = 4096

// DiscordFormatter formats impacts as Discord webhook JSON with embeds.
type DiscordFormatter struct{}

// Platform returns the platform identifier.
func (f *DiscordFormatter) Platform() Platform {
	return PlatformDiscord
}

// Format transforms a HealthImpact into Discord webhook JSON.
func (f *DiscordFormatter) Format(impact types.HealthImpact) ([]byte, error) {
	title := formatTitle(impact)

	facts := buildFacts(impact)
	fields := make([]DiscordField, 0, len(facts))
	for _, fact := range facts {
		fields = append(fields, DiscordField{Name: fact.Title, Value: fact.Value, Inline: true})
	}

	description := joinLines(scopeLines(impact))
	if len(description) > discordDescriptionLimit {
		description = description[:discordDescriptionLimit-3] + "..."
	}

	payload := DiscordPayload{
		Username: "Azure Service Health",
		Content:  title,
		Embeds: []DiscordEmbed{{
			Title:       title,
			Description: description,
			URL:         format.PortalLink(impact.Issue.EventType),
			Color:       eventColor(impact.Issue.EventType),
			Fields:      fields,
			Footer:      &DiscordFooter{Text: scopeSummary(impact)},
		}},
	}
	return json.Marshal(payload)
}

func eventColor(e types.EventType) int {
	switch {
	case e.IsMaintenance():
		return colorMaintenance
	case e == types.EventServiceIssue:
		return colorIncident
	}
	return colorAdvisory
}
