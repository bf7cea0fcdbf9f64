package webhook

import (
	"encoding/json"
	"fmt"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// SlackFormatter formats impacts as Slack Block Kit JSON.
type SlackFormatter struct{}

// Platform returns the platform identifier.
func (f *SlackFormatter) Platform() Platform {
	return PlatformSlack
}

// Format transforms a HealthImpact into Slack Block Kit JSON.
func (f *SlackFormatter) Format(impact types.HealthImpact) ([]byte, error) {
	title := formatTitle(impact)

	fields := make([]*SlackText, 0, 6)
	for _, fact := range buildFacts(impact) {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", fact.Title, fact.Value)})
	}

	payload := SlackPayload{
		Text: title,
		Blocks: []SlackBlock{
			{Type: "header", Text: &SlackText{Type: "plain_text", Text: title}},
			{Type: "section", Fields: fields},
		},
	}

	if lines := scopeLines(impact); len(lines) > 0 {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: joinLines(lines)},
		})
	}

	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type: "context",
		Elements: []*SlackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s | <%s|Open in Azure Portal>", scopeSummary(impact), format.PortalLink(impact.Issue.EventType)),
		}},
	})

	return json.Marshal(payload)
}
