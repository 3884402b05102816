package engine

import (
	"net/url"
	"regexp"
	"strings"
)

// assetPattern is the fixed extension allow-list separating asset
// references (image, style, script, font, media, data documents) from
// navigational links.
var assetPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg|ico|css|js|mjs|woff2?|ttf|mp4|m3u8|mpd|webm|ogg|mp3|json)(\?|#|$)`)

// NormalizeHost lowercases host and strips surrounding space and a trailing dot.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// SeedHost turns user input such as "https://Example.com:8443/path" into a
// bare normalized hostname.
func SeedHost(input string) string {
	s := strings.TrimSpace(input)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if u, err := url.Parse("//" + s); err == nil && u.Hostname() != "" {
		s = u.Hostname()
	}
	return NormalizeHost(s)
}

// ExtractHost returns the normalized hostname of rawURL, or "" if it does
// not parse or carries no host.
func ExtractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// ToAbsolute resolves href against base. Returns "" on parse failure.
func ToAbsolute(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// IsHTTPURL reports whether u is an absolute http or https URL.
func IsHTTPURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// LooksLikeAsset reports whether u points at a static asset.
func LooksLikeAsset(u string) bool {
	return assetPattern.MatchString(u)
}

// stripFragment drops the #fragment so two anchors on one page share a
// visited entry.
func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}
