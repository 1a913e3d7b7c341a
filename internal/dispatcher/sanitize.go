package dispatcher

import (
	"net/url"
	"strings"
)

// SanitizeReferrerURL validates a referring-page URL against the product's
// host allow-list. Returns "" for anything unusable; it never errors on
// malformed input.
func SanitizeReferrerURL(raw string, allowedHosts []string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	if strings.EqualFold(host, "localhost") {
		return u.String()
	}
	for _, allowed := range allowedHosts {
		if strings.EqualFold(host, allowed) {
			return u.String()
		}
	}
	return ""
}
