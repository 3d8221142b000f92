package chathub

import (
	"net/http"

	"github.com/google/uuid"
)

// Modes select the header preset and default endpoint.
const (
	ModeBing    = "Bing"
	ModeCopilot = "Copilot"
)

const (
	// DefaultHubURL is the ChatHub websocket endpoint.
	DefaultHubURL = "wss://sydney.bing.com/sydney/ChatHub"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
)

var bingHeaders = map[string]string{
	"accept":                      "application/json",
	"accept-language":             "en;q=0.9,en-US;q=0.8",
	"sec-ch-ua":                   `"Microsoft Edge";v="120", "Chromium";v="120", "Not?A_Brand";v="8"`,
	"sec-ch-ua-arch":              `"x86"`,
	"sec-ch-ua-bitness":           `"64"`,
	"sec-ch-ua-full-version":      `"120.0.2210.91"`,
	"sec-ch-ua-mobile":            "?0",
	"sec-ch-ua-model":             `""`,
	"sec-ch-ua-platform":          `"Windows"`,
	"sec-ch-ua-platform-version":  `"15.0.0"`,
	"sec-fetch-dest":              "empty",
	"sec-fetch-mode":              "cors",
	"sec-fetch-site":              "same-origin",
	"user-agent":                  userAgent,
	"x-ms-useragent":              "azsdk-js-api-client-factory/1.0.0-beta.1 core-rest-pipeline/1.12.3 OS/Windows",
	"Referer":                     "https://www.bing.com/search?form=NTPCHB&q=Bing+AI&showconv=1",
	"Referrer-Policy":             "origin-when-cross-origin",
	"x-edge-shopping-flag":        "1",
	"sec-ch-ua-full-version-list": `"Microsoft Edge";v="120.0.2210.91", "Chromium";v="120.0.6099.129"`,
}

var copilotHeaders = map[string]string{
	"accept":             "application/json",
	"accept-language":    "en;q=0.9,en-US;q=0.8",
	"sec-ch-ua":          `"Microsoft Edge";v="120", "Chromium";v="120", "Not?A_Brand";v="8"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
	"sec-fetch-dest":     "empty",
	"sec-fetch-mode":     "cors",
	"sec-fetch-site":     "same-site",
	"user-agent":         userAgent,
	"origin":             "https://copilot.microsoft.com",
	"Referer":            "https://copilot.microsoft.com/",
}

// Headers returns the websocket headers for mode. Each call carries a fresh
// x-ms-client-request-id. Unknown modes use the Bing preset.
func Headers(mode string) http.Header {
	preset := bingHeaders
	if mode == ModeCopilot {
		preset = copilotHeaders
	}
	h := make(http.Header, len(preset)+1)
	for k, v := range preset {
		h.Set(k, v)
	}
	h.Set("x-ms-client-request-id", uuid.NewString())
	return h
}

// CookieHeader renders cookies as one Cookie header value. Nil and
// nameless cookies are skipped.
func CookieHeader(cookies []*http.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	req := &http.Request{Header: http.Header{}}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		req.AddCookie(c)
	}
	return req.Header.Get("Cookie")
}
