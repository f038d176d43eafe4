package middleware

import "strings"

// bypassPrefixes are path prefixes the routing middleware never touches:
// API routes, framework internals, and static asset trees.
var bypassPrefixes = []string{"/api/", "/_next/", "/_static/", "/static/"}

// Bypass reports whether path is outside the routing middleware's matcher.
// Besides the fixed prefixes, any path whose last segment contains a dot is
// treated as a static file request and passed through untouched.
func Bypass(path string) bool {
	for _, p := range bypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	last := path[strings.LastIndex(path, "/")+1:]
	return strings.Contains(last, ".")
}
