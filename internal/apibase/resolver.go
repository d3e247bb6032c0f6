package apibase

import (
	"encoding/json"
	"strings"
)

// SettingsKey is the storage key of the UI settings blob.
const SettingsKey = "settings"

// Environment describes the runtime the UI runs in. It is supplied by the host
// application instead of being read from globals.
type Environment struct {
	// IsDev is set for development builds.
	IsDev bool
	// IsDesktopShell is set when the UI runs inside the packaged desktop app.
	IsDesktopShell bool
	// BuildOverride is a base URL injected at build time. Empty means none.
	BuildOverride string
}

// DetectDesktopShell reports whether a page is hosted by the desktop shell: it was loaded
// from a file: URL, or the shell injected its marker global (presence is enough).
func DetectDesktopShell(pageProtocol string, shellMarkerPresent bool) bool {
	return strings.EqualFold(pageProtocol, "file:") || shellMarkerPresent
}

// ResolveDefault returns the default API base for env. First match wins:
// the build override (verbatim), then the loopback API in dev builds and inside the
// desktop shell, then the same-origin path.
func ResolveDefault(env Environment) string {
	if env.BuildOverride != "" {
		return env.BuildOverride
	}
	if env.IsDev {
		return LoopbackBaseURL
	}
	if env.IsDesktopShell {
		return LoopbackBaseURL
	}
	return SameOriginBaseURL
}

// Storage is the persisted key/value store the settings blob lives in.
type Storage interface {
	GetItem(key string) (string, error)
}

// Resolver answers "where do API requests go" for one environment.
type Resolver struct {
	store       Storage
	defaultBase string
}

// NewResolver creates a resolver. The default base is computed once here.
// store may be nil, in which case the default is always used.
func NewResolver(env Environment, store Storage) *Resolver {
	return &Resolver{
		store:       store,
		defaultBase: ResolveDefault(env),
	}
}

// Default returns the environment default base URL.
func (r *Resolver) Default() string {
	return r.defaultBase
}

// BaseURL returns the user's apiBaseUrl override when it is set and valid, otherwise the
// default. Storage failures and malformed settings are treated as "no override".
func (r *Resolver) BaseURL() string {
	if custom := r.override(); custom != "" {
		return custom
	}
	return r.defaultBase
}

func (r *Resolver) override() string {
	if r.store == nil {
		return ""
	}
	raw, err := r.store.GetItem(SettingsKey)
	if err != nil || raw == "" {
		return ""
	}

	var settings struct {
		APIBaseURL any `json:"apiBaseUrl"`
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return ""
	}
	s, ok := settings.APIBaseURL.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

// PlayableAudioURL rewrites raw against the current base URL.
func (r *Resolver) PlayableAudioURL(raw string) string {
	return ToPlayableAudioURL(raw, r.BaseURL())
}
