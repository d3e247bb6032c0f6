// Package settings manages the user settings blob shared by the UI and the shell.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
)

// Key is the storage key of the settings blob.
const Key = "settings"

// Toggle values used by the UI.
const (
	On  = "on"
	Off = "off"
)

// IsOn reports whether a toggle value is switched on.
func IsOn(v string) bool {
	return v == On
}

// Settings is the typed view of the settings blob. Keys the shell does not know are
// kept in Extra so a save never drops them.
type Settings struct {
	APIBaseURL           string `json:"apiBaseUrl,omitempty"`
	StatusBarLyrics      string `json:"statusBarLyrics,omitempty"`
	MinimizeToTray       string `json:"minimizeToTray,omitempty"`
	AutoStart            string `json:"autoStart,omitempty"`
	SilentCheck          bool   `json:"silentCheck,omitempty"`
	PreventAppSuspension string `json:"preventAppSuspension,omitempty"`
	GPUAcceleration      string `json:"gpuAcceleration,omitempty"`
	HighDPI              string `json:"highDpi,omitempty"`
	DPIScale             string `json:"dpiScale,omitempty"`
	APIMode              string `json:"apiMode,omitempty"`
	TouchBar             string `json:"touchBar,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// fields maps each known JSON key to the field it decodes into.
func (s *Settings) fields() map[string]any {
	return map[string]any{
		"apiBaseUrl":           &s.APIBaseURL,
		"statusBarLyrics":      &s.StatusBarLyrics,
		"minimizeToTray":       &s.MinimizeToTray,
		"autoStart":            &s.AutoStart,
		"silentCheck":          &s.SilentCheck,
		"preventAppSuspension": &s.PreventAppSuspension,
		"gpuAcceleration":      &s.GPUAcceleration,
		"highDpi":              &s.HighDPI,
		"dpiScale":             &s.DPIScale,
		"apiMode":              &s.APIMode,
		"touchBar":             &s.TouchBar,
	}
}

// settingsAlias avoids recursing into the custom marshaler.
type settingsAlias Settings

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
// A known key with an unexpected JSON type is kept verbatim in Extra too, so it is
// written back unchanged until something sets the typed field.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Settings{}
	fields := s.fields()
	for key, value := range raw {
		target, known := fields[key]
		if known {
			err := json.Unmarshal(value, target)
			if err == nil {
				continue
			}
			log.Debug().Str("key", key).Err(err).Msg("Keeping settings field with unexpected type as is")
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[key] = value
	}
	return nil
}

// MarshalJSON encodes known fields together with Extra.
func (s Settings) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(settingsAlias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(s.Extra))
	for k, v := range s.Extra {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// Store is the persistence the settings blob lives in.
type Store interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Service holds the current settings and persists every change.
type Service struct {
	mu        sync.RWMutex
	store     Store
	current   Settings
	listeners []func(Settings)
}

// NewService creates a settings service and loads the stored blob.
// A missing blob yields zero settings; a malformed one is logged and ignored.
func NewService(store Store) (*Service, error) {
	s := &Service{store: store}

	raw, err := store.GetItem(Key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Debug().Msg("No stored settings, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	case raw != "":
		if err := json.Unmarshal([]byte(raw), &s.current); err != nil {
			log.Warn().Err(err).Msg("Stored settings are malformed, ignoring")
			s.current = Settings{}
		}
	}

	return s, nil
}

// Get returns a copy of the current settings.
func (s *Service) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// StatusBarLyricsEnabled reports whether lyrics should be drawn in the status bar.
func (s *Service) StatusBarLyricsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IsOn(s.current.StatusBarLyrics)
}

// Save replaces the stored settings and notifies listeners.
func (s *Service) Save(next Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	if err := s.store.SetItem(Key, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.current = next.clone()
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next.clone())
	}
	return nil
}

// Update applies fn to a copy of the current settings and saves the result.
func (s *Service) Update(fn func(*Settings)) error {
	next := s.Get()
	fn(&next)
	return s.Save(next)
}

// Clear deletes the stored blob and resets to zero settings.
func (s *Service) Clear() error {
	s.mu.Lock()
	if err := s.store.RemoveItem(Key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	s.current = Settings{}
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(Settings{})
	}
	return nil
}

// OnChange registers fn to be called after every Save or Clear.
func (s *Service) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s Settings) clone() Settings {
	if s.Extra == nil {
		return s
	}
	extra := make(map[string]json.RawMessage, len(s.Extra))
	for k, v := range s.Extra {
		extra[k] = v
	}
	s.Extra = extra
	return s
}
