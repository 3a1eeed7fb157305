package log

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// urlPlaceholder survives query encoding and is swapped for MaskValue
// after the URL is rendered.
const urlPlaceholder = "__wikiexport_redacted__"

// secretNames are attribute keys, header names and query parameters whose
// values are never logged. Matching is case-insensitive.
var secretNames = map[string]bool{
	"authorization": true, "proxy-authorization": true,
	"cookie": true, "set-cookie": true,
	"x-api-key": true, "x-auth-token": true, "x-csrf-token": true,
	"password": true, "passwd": true, "secret": true,
	"token": true, "access_token": true, "refresh_token": true,
	"api_key": true, "apikey": true, "api-key": true,
	"session": true, "session_id": true, "sessionid": true, "sid": true,
	"credential": true, "credentials": true, "auth": true,
	"private_key": true, "secret_key": true,
}

// secretQueryParams are masked wherever a URL is logged. Wikis behind SSO
// gateways and pre-signed media links carry these.
var secretQueryParams = map[string]bool{
	"token": true, "access_token": true, "refresh_token": true,
	"key": true, "api_key": true, "apikey": true,
	"sig": true, "signature": true, "code": true, "password": true,
	"session": true, "sessionid": true, "sid": true,
	"x-amz-signature": true, "x-amz-credential": true,
}

// secretFragments mark a key as sensitive when contained anywhere in it.
// A bare "key" is not one: "cache_key" or "sort_key" are harmless.
var secretFragments = []string{"password", "passwd", "secret", "token", "auth", "credential", "private"}

// secretValues match values that are secrets whatever their key.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
}

// pageHash matches sha1 and sha256 hex digests, logged as page hashes.
var pageHash = regexp.MustCompile(`^(?:[0-9a-f]{40}|[0-9a-f]{64})$`)

// isSecretName reports whether a key or header name holds a secret.
func isSecretName(name string) bool {
	name = strings.ToLower(name)
	if secretNames[name] {
		return true
	}
	for _, f := range secretFragments {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// isSecretValue reports whether value looks like a credential.
func isSecretValue(value string) bool {
	if pageHash.MatchString(value) {
		return false
	}
	for _, re := range secretValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// redactString masks value if it is a secret or a URL carrying one.
// It reports whether anything changed.
func redactString(value string) (string, bool) {
	if isSecretValue(value) {
		return MaskValue, true
	}
	return redactURL(value)
}

// redactURL masks the userinfo password and secret query parameters of an
// absolute http(s) URL. It reports false when value is not such a URL or
// carries nothing to mask.
func redactURL(value string) (string, bool) {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", false
	}

	masked := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), urlPlaceholder)
			masked = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		queryMasked := false
		for name := range q {
			if secretQueryParams[strings.ToLower(name)] {
				q.Set(name, urlPlaceholder)
				queryMasked = true
			}
		}
		if queryMasked {
			u.RawQuery = q.Encode()
			masked = true
		}
	}

	if !masked {
		return "", false
	}
	return strings.ReplaceAll(u.String(), urlPlaceholder, MaskValue), true
}

// redactHeaders returns a copy of headers with secret header values masked,
// as sorted "name: value" pairs.
func redactHeaders(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, name := range names {
		value := headers[name]
		if isSecretName(name) || isSecretValue(value) {
			value = MaskValue
		}
		out[i] = name + ": " + value
	}
	return out
}
