package risk

import "strings"

// automationTokens is a fixed denylist of automation-tool markers matched
// case-insensitively as substrings of the user-agent string.
var automationTokens = []string{
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"java/",
	"okhttp",
	"libwww",
	"httpie",
	"postman",
	"insomnia",
	"scrapy",
	"headless",
}

// SuspiciousUserAgent reports whether ua matches the automation-tool denylist.
// Empty user agents are suspicious: every mainstream browser sends one.
func SuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return true
	}
	for _, token := range automationTokens {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

// Nocturnal window for the unusual-time signal, inclusive on both ends.
const (
	unusualHourStart = 2
	unusualHourEnd   = 5
)

// UnusualHour reports whether the login's local hour-of-day falls within the
// fixed nocturnal window (02:00–05:00 inclusive).
func UnusualHour(hour int) bool {
	return hour >= unusualHourStart && hour <= unusualHourEnd
}
