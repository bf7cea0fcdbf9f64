package email

import "strings"

// RedactEmail masks an address for logging: "ops@example.com" becomes
// "o***@example.com". Strings without "@" are masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// RedactAll redacts every address in list.
func RedactAll(list []string) []string {
	out := make([]string, len(list))
	for i, addr := range list {
		out[i] = RedactEmail(addr)
	}
	return out
}
