package webhook

import (
	"fmt"
	"strings"

	"servicehealth/internal/notifications/format"
	"servicehealth/internal/types"
)

// maxListedResources caps the resources named in chat messages; the rest
// are summarized.
const maxListedResources = 5

// formatTitle is "<kind>: <subject>".
func formatTitle(impact types.HealthImpact) string {
	return fmt.Sprintf("%s: %s", eventLabel(impact.Issue.EventType), format.Subject(impact))
}

func eventLabel(e types.EventType) string {
	switch {
	case e.IsMaintenance():
		return "Planned Maintenance"
	case e == types.EventHealthAdvisory:
		return "Health Advisory"
	case e == types.EventServiceIssue:
		return "Service Issue"
	case e == types.EventSecurityAdvisory:
		return "Security Advisory"
	}
	return "Service Health"
}

// buildFacts lists the issue fields shown by every chat platform, in
// display order.
func buildFacts(impact types.HealthImpact) []Fact {
	issue := impact.Issue
	facts := []Fact{
		{Title: "Tracking ID", Value: issue.TrackingID},
		{Title: "Event Type", Value: string(issue.EventType)},
	}
	if issue.Status != "" {
		facts = append(facts, Fact{Title: "Status", Value: issue.Status})
	}
	facts = append(facts,
		Fact{Title: "Impact Start", Value: format.FormatDate(issue.ImpactStartTime)},
		Fact{Title: "Mitigation", Value: format.FormatDate(issue.ImpactMitigationTime)},
		Fact{Title: "Last Update", Value: format.FormatDate(issue.LastUpdateTime)},
	)
	return facts
}

// scopeLines names the impacted resources, or the impacted subscriptions
// when the issue has no resources.
func scopeLines(impact types.HealthImpact) []string {
	var lines []string
	for i, r := range impact.Resources {
		if i == maxListedResources {
			lines = append(lines, fmt.Sprintf("...and %d more resources.", len(impact.Resources)-maxListedResources))
			break
		}
		line := fmt.Sprintf("%s (%s, %s)", r.Name, r.Type, r.ResourceGroup)
		if tags := format.FormatTags(r.Tags); tags != "" {
			line += " [" + tags + "]"
		}
		lines = append(lines, line)
	}
	if len(impact.Resources) > 0 {
		return lines
	}
	for _, s := range impact.Subscriptions {
		lines = append(lines, fmt.Sprintf("Subscription %s (%s)", s.Name, s.SubscriptionID))
	}
	return lines
}

// scopeSummary is a one-line count of the impacted scope.
func scopeSummary(impact types.HealthImpact) string {
	if n := len(impact.Resources); n > 0 {
		return fmt.Sprintf("%d impacted resource(s)", n)
	}
	if n := len(impact.Subscriptions); n > 0 {
		return fmt.Sprintf("%d impacted subscription(s)", n)
	}
	return "No impacted resources reported"
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
