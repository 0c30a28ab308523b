package domain

import (
	"net/url"
	"strings"
	"unicode"
)

const (
	redirectPrefix = "[REDIRECT:"
	redirectSuffix = "]"
)

// ParseRedirect reports whether content is redirect content and returns its target. Any content
// starting with "[REDIRECT:" counts, so a malformed sentinel never falls through to hosted text.
// The target runs up to the last "]" and is empty when it is missing or not an absolute http(s) URL.
func ParseRedirect(content string) (string, bool) {
	trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
	if !strings.HasPrefix(trimmed, redirectPrefix) {
		return "", false
	}
	rest := trimmed[len(redirectPrefix):]
	end := strings.LastIndex(rest, redirectSuffix)
	if end < 0 {
		return "", true
	}
	target := strings.TrimSpace(rest[:end])
	if !validRedirectTarget(target) {
		return "", true
	}
	return target, true
}

// FormatRedirect encodes url as redirect content.
func FormatRedirect(url string) string {
	return redirectPrefix + strings.TrimSpace(url) + redirectSuffix
}

func validRedirectTarget(target string) bool {
	if target == "" || strings.ContainsAny(target, " \t\r\n") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}
