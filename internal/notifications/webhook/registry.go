package webhook

import (
	"strings"
)

// PlatformRegistry maps webhook URLs to platform-specific formatters.
type PlatformRegistry struct {
	formatters map[Platform]PlatformFormatter
}

// NewPlatformRegistry creates a PlatformRegistry with all built-in formatters.
func NewPlatformRegistry() *PlatformRegistry {
	r := &PlatformRegistry{
		formatters: make(map[Platform]PlatformFormatter),
	}

	r.formatters[PlatformSlack] = &SlackFormatter{}
	r.formatters[PlatformTeams] = &TeamsFormatter{}
	r.formatters[PlatformDiscord] = &DiscordFormatter{}
	r.formatters[PlatformGoogleChat] = &GoogleChatFormatter{}
	r.formatters[PlatformGeneric] = &GenericFormatter{}

	return r
}

// Detect determines the target Platform for a webhook URL.
//
// Detection logic (priority order):
//  1. A registered override wins.
//  2. URL patterns:
//     - "hooks.slack.com" -> PlatformSlack
//     - "discord.com/api/webhooks" -> PlatformDiscord
//     - ".webhook.office.com" OR ".logic.azure.com" -> PlatformTeams
//     - "chat.googleapis.com" -> PlatformGoogleChat
//  3. PlatformGeneric.
func (r *PlatformRegistry) Detect(url string, override Platform) Platform {
	if override != "" {
		if _, exists := r.formatters[override]; exists {
			return override
		}
	}

	lowerURL := strings.ToLower(url)

	if strings.Contains(lowerURL, "hooks.slack.com") {
		return PlatformSlack
	}
	if strings.Contains(lowerURL, "discord.com/api/webhooks") {
		return PlatformDiscord
	}
	if strings.Contains(lowerURL, ".webhook.office.com") || strings.Contains(lowerURL, ".logic.azure.com") {
		return PlatformTeams
	}
	if strings.Contains(lowerURL, "chat.googleapis.com") {
		return PlatformGoogleChat
	}

	return PlatformGeneric
}

// Get returns the PlatformFormatter for the given platform, falling back to
// the GenericFormatter.
func (r *PlatformRegistry) Get(p Platform) PlatformFormatter {
	if f, ok := r.formatters[p]; ok {
		return f
	}
	return r.formatters[PlatformGeneric]
}
