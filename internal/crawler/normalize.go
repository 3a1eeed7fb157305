package crawler

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrNotAbsolute is returned by Normalize for URLs without scheme or host.
var ErrNotAbsolute = errors.New("URL is not absolute")

// Normalize returns the dedup key of an absolute URL.
//
// The scheme and host are lowercased, default ports and the fragment are
// dropped, the path is re-escaped canonically (so "A_(b)" and "A_%28b%29"
// agree), an empty path becomes "/", a trailing slash is trimmed except at
// the root, and query parameters are sorted by name.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ErrNotAbsolute
	}
	return normalizeURL(u).String(), nil
}

// normalizeURL normalizes u in place and returns it.
func normalizeURL(u *url.URL) *url.URL {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u.Host)

	u.Fragment = ""
	u.RawFragment = ""
	u.RawPath = ""

	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}

	u.ForceQuery = false
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u
}

// canonicalHost lowercases host and strips the scheme's default port.
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	hostname, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]"
		}
		return hostname
	}
	return host
}

// hostKey identifies the origin whose robots.txt and delay apply to u.
func hostKey(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + canonicalHost(strings.ToLower(u.Scheme), u.Host)
}

// ResolveReference resolves href against base and normalizes the result.
// It returns "" for hrefs that never lead to a page: empty, pure fragments,
// and javascript:, mailto:, tel: or data: links.
func ResolveReference(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	return normalizeURL(resolved).String()
}
