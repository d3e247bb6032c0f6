// Package session holds the signed-in user, the remote configuration list and the
// device identity, persisted under a single storage key.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
)

// Key is the storage key of the persisted state.
const Key = "MoeData"

// ConfigItem is one entry of the remote configuration list.
type ConfigItem struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// State is the persisted shape.
type State struct {
	UserInfo map[string]any `json:"UserInfo"`
	Config   []ConfigItem   `json:"Config"`
	Device   map[string]any `json:"Device"`
}

// Data carries a partial update for SetData. Nil fields are left untouched.
type Data struct {
	UserInfo map[string]any `json:"UserInfo,omitempty"`
	Config   []ConfigItem   `json:"Config,omitempty"`
}

// Persister is the storage the state lives in.
type Persister interface {
	GetItem(key string) (string, error)
	SetItem(key, value string) error
}

// Store is the session state container.
type Store struct {
	mu    sync.RWMutex
	db    Persister
	state State
}

// NewStore creates a store and restores the persisted state.
// Missing or malformed data starts an empty session.
func NewStore(db Persister) *Store {
	s := &Store{
		db:    db,
		state: State{Device: map[string]any{}},
	}

	raw, err := db.GetItem(Key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		log.Warn().Err(err).Msg("Failed to read session state, starting empty")
	default:
		var st State
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			log.Warn().Err(err).Msg("Session state is malformed, starting empty")
			break
		}
		if st.Device == nil {
			st.Device = map[string]any{}
		}
		s.state = st
	}

	return s
}

// FetchConfig returns the value of the config entry named key.
// ok is false when no config is loaded or the key is absent.
func (s *Store) FetchConfig(key string) (value any, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.Config == nil {
		return nil, false
	}
	for _, item := range s.state.Config {
		if item.Key == key {
			return item.Value, true
		}
	}
	return nil, false
}

// SetData replaces UserInfo and/or Config with the non-nil fields of d.
func (s *Store) SetData(d Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.UserInfo != nil {
		s.state.UserInfo = d.UserInfo
	}
	if d.Config != nil {
		s.state.Config = d.Config
	}
	return s.persist()
}

// ClearData signs the user out. Config and Device are kept.
func (s *Store) ClearData() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.UserInfo = nil
	return s.persist()
}

// Reset drops the user and the config list, as after a storage wipe. The device
// identity is kept and written back.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.UserInfo = nil
	s.state.Config = nil
	if err := s.persist(); err != nil {
		return err
	}

	log.Info().Msg("Session state reset")
	return nil
}

// IsAuthenticated reports whether user info is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserInfo != nil
}

// UserInfo returns the current user info, or nil.
func (s *Store) UserInfo() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserInfo
}

// EnsureDeviceID returns the device ID, generating and persisting one on first use.
func (s *Store) EnsureDeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.state.Device["id"].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	s.state.Device["id"] = id
	if err := s.persist(); err != nil {
		return "", err
	}

	log.Info().Str("device_id", id).Msg("Device identity generated")
	return id, nil
}

// persist writes the state. Callers hold the lock.
func (s *Store) persist() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := s.db.SetItem(Key, string(data)); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}
