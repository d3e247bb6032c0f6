// Package apibase resolves the HTTP origin the UI sends API calls to, validates
// user-supplied overrides, and rewrites remote audio URLs to flow through the
// API's same-origin audio proxy.
package apibase

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const (
	// LoopbackBaseURL is the local API server started alongside the desktop app.
	LoopbackBaseURL = "http://127.0.0.1:6521"

	// SameOriginBaseURL is used by web deployments where the API is reverse-proxied.
	SameOriginBaseURL = "/api"

	// AudioProxyPath is the proxy endpoint relative to the API base.
	AudioProxyPath = "/audio/proxy"
)

var (
	// ErrInvalidFormat is reported when the input is not a full absolute URL.
	ErrInvalidFormat = errors.New("a full http(s):// address is required")

	// ErrUnsupportedScheme is reported for absolute URLs with a scheme other than http or https.
	ErrUnsupportedScheme = errors.New("only http:// or https:// is supported")
)

var (
	absoluteHTTPURL = regexp.MustCompile(`(?i)^https?://`)
	localAudioURL   = regexp.MustCompile(`(?i)^(blob:|data:|mediastream:|file:)`)
	trailingSlashes = regexp.MustCompile(`/+$`)
)

// Validation is the outcome of validating a raw base URL candidate.
// Value is empty whenever OK is false.
type Validation struct {
	OK    bool
	Value string
	Err   error
}

// Message returns the human-readable failure text, or "" when valid.
func (v Validation) Message() string {
	if v.Err == nil {
		return ""
	}
	return v.Err.Error()
}

// Validate checks a raw base URL. An empty input is valid and means "use the default".
// Root-relative paths are accepted as-is; anything else must be an absolute http(s) URL.
// The returned value keeps the caller's spelling, minus trailing slashes.
func Validate(raw string) Validation {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Validation{OK: true}
	}

	if strings.HasPrefix(raw, "/") {
		return Validation{OK: true, Value: stripTrailingSlashes(raw)}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Validation{Err: ErrInvalidFormat}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if specialHost(raw[len(u.Scheme)+1:]) == "" {
			return Validation{Err: ErrInvalidFormat}
		}
	default:
		return Validation{Err: ErrUnsupportedScheme}
	}

	return Validation{OK: true, Value: stripTrailingSlashes(raw)}
}

// specialHost returns the host of an http(s) URL after its "scheme:" prefix. Browsers
// skip any run of slashes there, so "http:h", "http:/h" and "http://h" name the same host.
func specialHost(rest string) string {
	rest = strings.TrimLeft(rest, `/\`)
	if i := strings.IndexAny(rest, `/\?#`); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	return rest
}

// Normalize returns the validated value, or "" when raw is invalid.
func Normalize(raw string) string {
	return Validate(raw).Value
}

// JoinURL joins base and path with exactly one slash. The path loses its surrounding
// slashes; an empty path yields base + "/". Neither argument is validated.
func JoinURL(base, path string) string {
	base = stripTrailingSlashes(base)
	rel := strings.Trim(path, "/")
	if rel == "" {
		return base + "/"
	}
	return base + "/" + rel
}

// ShouldProxyAudioURL reports whether raw is a remote http(s) audio URL that has to go
// through the audio proxy. Local references (blob, data, mediastream, file) never do.
func ShouldProxyAudioURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if localAudioURL.MatchString(raw) {
		return false
	}
	return absoluteHTTPURL.MatchString(raw)
}

// ToPlayableAudioURL returns the URL the player should load for raw: either raw itself or
// {baseURL}/audio/proxy?url=<escaped raw>.
func ToPlayableAudioURL(raw, baseURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !ShouldProxyAudioURL(raw) {
		return raw
	}

	endpoint := JoinURL(baseURL, AudioProxyPath)
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "url=" + encodeURIComponent(raw)
}

func stripTrailingSlashes(s string) string {
	return trailingSlashes.ReplaceAllString(s, "")
}

// encodeURIComponent escapes s the way browsers do for a single URI component:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return componentReplacer.Replace(escaped)
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
