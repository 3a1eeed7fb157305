// Package log provides the redacting slog handler used by every wikiexport
// command.
//
// Site files can attach Authorization or Cookie headers to requests, and
// wikis behind SSO gateways hand out URLs carrying session tokens. The
// SecureHandler masks these before a record reaches the text or JSON handler:
//   - attributes whose key names a credential (authorization, cookie, token)
//   - values that look like credentials whatever their key (bearer, JWT, AWS keys)
//   - userinfo passwords and secret query parameters in logged URLs
//   - secret entries of header maps logged as map[string]string or http.Header
//
// Page hashes are hex digests and are never mistaken for API keys.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", "https://wiki.example.org/wiki/A?token=abc")
//	// url="https://wiki.example.org/wiki/A?token=***REDACTED***"
package log
