// Package device turns User-Agent headers into the short labels stored on
// sign-in records.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns a display label such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if browser == "" {
		browser = "Unknown Browser"
	}
	if ua.Bot() {
		return strings.TrimSpace(browser + " (bot)")
	}
	return browser + " on " + platformLabel(ua)
}

func platformLabel(ua *useragent.UserAgent) string {
	platform := ua.Platform()
	osName := ua.OS()
	switch {
	case platform == "iPhone" || platform == "iPad" || platform == "iPod":
		return platform
	case strings.Contains(osName, "Android"):
		return "Android"
	case strings.Contains(osName, "Mac OS X") || platform == "Macintosh":
		return "macOS"
	case strings.HasPrefix(osName, "Windows"):
		return "Windows"
	case strings.Contains(osName, "Linux") || strings.Contains(platform, "Linux"):
		return "Linux"
	case strings.TrimSpace(osName) != "":
		return strings.TrimSpace(osName)
	}
	return "Unknown OS"
}
