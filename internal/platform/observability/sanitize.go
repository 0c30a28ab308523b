package observability

import "unicode"

// sanitizeString drops control characters and caps the rune count to keep log lines bounded.
func sanitizeString(value string, limit int) string {
	cleaned := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}

// SanitizeRoute cleans a chi route pattern or raw path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeID cleans seller, product and session identifiers taken from URLs or tokens.
func SanitizeID(id string) string {
	return sanitizeString(id, 64)
}
