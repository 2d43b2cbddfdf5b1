package auth

import (
	"strings"

	"github.com/mssola/useragent"
)

// deviceSummary condenses a User-Agent header into a short label for the
// audit trail, e.g. "chrome 126 on linux (desktop)".
func deviceSummary(userAgentString string) string {
	if userAgentString == "" {
		return "unknown"
	}

	ua := useragent.New(userAgentString)
	browser, version := ua.Browser()
	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		browser = "unknown"
	}

	major := ""
	if parts := strings.Split(version, "."); len(parts) > 0 && parts[0] != "" {
		major = " " + parts[0]
	}

	os := strings.ToLower(strings.TrimSpace(ua.OS()))
	if os == "" {
		os = "unknown"
	}

	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	} else if ua.Bot() {
		platform = "bot"
	}

	return browser + major + " on " + os + " (" + platform + ")"
}
