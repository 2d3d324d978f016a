package http

import (
	"fmt"
	"net/url"
	"strings"
)

// JoinURL appends path segments to baseURL, escaping each segment. An
// optional raw query (already URL-encoded) is attached verbatim.
func JoinURL(baseURL string, rawQuery string, segments ...string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("error parsing base URL: %w", err)
	}

	for _, segment := range segments {
		segment = strings.Trim(segment, "/")
		if segment == "" {
			continue
		}
		parsedURL = parsedURL.JoinPath(segment)
	}

	parsedURL.RawQuery = strings.TrimPrefix(rawQuery, "?")

	return parsedURL.String(), nil
}

// redactURL drops the query string so credentials passed as query
// parameters never reach the logs.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i] + "?[redacted]"
	}
	return raw
}
