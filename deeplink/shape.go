package deeplink

import (
	"net/url"
	"sort"
	"strings"
)

// Shape is the kind of URL a callback arrived as.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeCustomScheme is a production build deep link, e.g. testalbum://auth-callback
	ShapeCustomScheme
	// ShapeExpoDevClient is a development client link, e.g. exp://192.168.0.3:8081/--/auth-callback
	ShapeExpoDevClient
	// ShapeWeb is a browser callback, e.g. https://app.example.com/auth/callback
	ShapeWeb
)

func (s Shape) String() string {
	switch s {
	case ShapeCustomScheme:
		return "custom-scheme"
	case ShapeExpoDevClient:
		return "expo-dev-client"
	case ShapeWeb:
		return "web"
	}
	return "unknown"
}

// ShapeOf classifies raw by its scheme.
func ShapeOf(raw string) Shape {
	scheme, _, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok || scheme == "" {
		return ShapeUnknown
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return ShapeWeb
	case "exp", "exps":
		return ShapeExpoDevClient
	}
	// RFC 3986 scheme characters only
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return ShapeUnknown
		}
	}
	return ShapeCustomScheme
}

// Build appends query and fragment pairs to base. Keys are written in
// sorted order so the output is stable.
func Build(base string, query, fragment map[string]string) string {
	var b strings.Builder
	b.WriteString(base)
	if len(query) > 0 {
		if strings.Contains(base, "?") {
			b.WriteByte('&')
		} else {
			b.WriteByte('?')
		}
		b.WriteString(encodePairs(query))
	}
	if len(fragment) > 0 {
		b.WriteByte('#')
		b.WriteString(encodePairs(fragment))
	}
	return b.String()
}

func encodePairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(pairs[k]))
	}
	return strings.Join(parts, "&")
}
