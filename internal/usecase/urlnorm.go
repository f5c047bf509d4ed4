package usecase

import (
	"net/url"
	"strings"

	"github.com/buywithme/assistant/internal/domain"
)

// NormalizeURL reduces a URL to the form used for evidence matching:
// no query string or fragment, lowercase scheme and host, no trailing slash.
// Empty or unparsable input yields "", which never matches anything.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}

// evidenceURLs flattens the normalized URL of every hit across all queries.
func evidenceURLs(research domain.Research) map[string]struct{} {
	set := make(map[string]struct{}, research.TotalResults())
	for _, entry := range research {
		for _, result := range entry.Results {
			if normalized := NormalizeURL(result.URL); normalized != "" {
				set[normalized] = struct{}{}
			}
		}
	}
	return set
}
