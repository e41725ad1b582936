// Package device implements C4.4: a pure, deterministic mapping from a
// User-Agent string to the device class that parameterizes scoring.
package device

import "strings"

// Class is the closed set of device classes (spec §3).
type Class string

const (
	TV     Class = "tv"
	Mobile Class = "mobile"
	Web    Class = "web"
)

var tvTokens = []string{
	"smart-tv", "smarttv", "tizen", "webos", "vidaa", "roku", "fire-tv", "firetv",
	"android-tv", "androidtv", "chromecast", "shield", "lg browser",
}

var mobileTokens = []string{
	"android", "iphone", "ipad", "mobile", "phone",
}

// ClassOf derives the device class from a raw User-Agent header value.
func ClassOf(userAgent string) Class {
	ua := strings.ToLower(userAgent)

	for _, tok := range tvTokens {
		if strings.Contains(ua, tok) {
			return TV
		}
	}

	isMobileMatch := false
	for _, tok := range mobileTokens {
		if strings.Contains(ua, tok) {
			isMobileMatch = true
			break
		}
	}
	if isMobileMatch {
		return Mobile
	}

	return Web
}
