package settings

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
)

// memStore is an in-memory Store.
type memStore struct {
	items  map[string]string
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]string)}
}

func (m *memStore) GetItem(key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.items[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memStore) SetItem(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = value
	return nil
}

func (m *memStore) RemoveItem(key string) error {
	delete(m.items, key)
	return nil
}

func TestNewServiceWithoutStoredSettings(t *testing.T) {
	svc, err := NewService(newMemStore())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got := svc.Get()
	if got.APIBaseURL != "" || got.StatusBarLyrics != "" || got.Extra != nil {
		t.Errorf("expected zero settings, got %+v", got)
	}
	if svc.StatusBarLyricsEnabled() {
		t.Error("status bar lyrics should be off by default")
	}
}

func TestNewServiceLoadsStoredSettings(t *testing.T) {
	store := newMemStore()
	store.items[Key] = `{"apiBaseUrl":"http://10.0.0.2:6521","statusBarLyrics":"on","silentCheck":true,"theme":"dark","lang":"zh-CN"}`

	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	got := svc.Get()
	if got.APIBaseURL != "http://10.0.0.2:6521" {
		t.Errorf("APIBaseURL = %q", got.APIBaseURL)
	}
	if !svc.StatusBarLyricsEnabled() {
		t.Error("expected status bar lyrics to be enabled")
	}
	if !got.SilentCheck {
		t.Error("expected SilentCheck to be true")
	}
	if string(got.Extra["theme"]) != `"dark"` {
		t.Errorf("Extra[theme] = %s, want \"dark\"", got.Extra["theme"])
	}
}

func TestNewServiceMalformedSettings(t *testing.T) {
	store := newMemStore()
	store.items[Key] = `{not json`

	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("malformed settings should not fail NewService: %v", err)
	}
	if got := svc.Get(); got.APIBaseURL != "" {
		t.Errorf("expected zero settings, got %+v", got)
	}
}

func TestNewServiceStoreFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk unavailable")

	if _, err := NewService(store); err == nil {
		t.Error("expected error when the store cannot be read")
	}
}

func TestSettingsWrongFieldTypeIsKeptVerbatim(t *testing.T) {
	var s Settings
	if err := json.Unmarshal([]byte(`{"apiBaseUrl": 5, "statusBarLyrics": "on"}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.APIBaseURL != "" {
		t.Errorf("APIBaseURL = %q, want empty", s.APIBaseURL)
	}
	if s.StatusBarLyrics != On {
		t.Errorf("StatusBarLyrics = %q, want on", s.StatusBarLyrics)
	}
	if string(s.Extra["apiBaseUrl"]) != "5" {
		t.Errorf("Extra[apiBaseUrl] = %s, want 5", s.Extra["apiBaseUrl"])
	}
}

func TestSaveKeepsMistypedKnownKeys(t *testing.T) {
	store := newMemStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	var next Settings
	if err := json.Unmarshal([]byte(`{"dpiScale":1.5,"silentCheck":"on","theme":"dark"}`), &next); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if err := svc.Save(next); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var stored map[string]any
	if err := json.Unmarshal([]byte(store.items[Key]), &stored); err != nil {
		t.Fatalf("stored blob is not JSON: %v", err)
	}
	if stored["dpiScale"] != 1.5 {
		t.Errorf("dpiScale = %v, want 1.5", stored["dpiScale"])
	}
	if stored["silentCheck"] != "on" {
		t.Errorf("silentCheck = %v, want on", stored["silentCheck"])
	}
	if stored["theme"] != "dark" {
		t.Errorf("theme = %v, want dark", stored["theme"])
	}

	// Setting the typed field replaces the verbatim value
	if err := svc.Update(func(s *Settings) { s.SilentCheck = true }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	stored = nil
	json.Unmarshal([]byte(store.items[Key]), &stored)
	if stored["silentCheck"] != true {
		t.Errorf("silentCheck after update = %v, want true", stored["silentCheck"])
	}
}

func TestSaveKeepsUnknownKeys(t *testing.T) {
	store := newMemStore()
	store.items[Key] = `{"minimizeToTray":"on","theme":"dark"}`

	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.Update(func(s *Settings) { s.MinimizeToTray = Off }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var stored map[string]any
	if err := json.Unmarshal([]byte(store.items[Key]), &stored); err != nil {
		t.Fatalf("stored blob is not JSON: %v", err)
	}
	if stored["minimizeToTray"] != Off {
		t.Errorf("minimizeToTray = %v, want off", stored["minimizeToTray"])
	}
	if stored["theme"] != "dark" {
		t.Errorf("theme = %v, want dark", stored["theme"])
	}
}

func TestKnownFieldWinsOverExtra(t *testing.T) {
	s := Settings{
		APIBaseURL: "/api",
		Extra:      map[string]json.RawMessage{"apiBaseUrl": json.RawMessage(`"/stale"`)},
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back Settings
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.APIBaseURL != "/api" {
		t.Errorf("APIBaseURL = %q, want /api", back.APIBaseURL)
	}
}

func TestSaveNotifiesListeners(t *testing.T) {
	svc, _ := NewService(newMemStore())

	var seen []Settings
	svc.OnChange(func(s Settings) { seen = append(seen, s) })

	if err := svc.Save(Settings{StatusBarLyrics: On}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := svc.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0].StatusBarLyrics != On {
		t.Errorf("first notification = %+v", seen[0])
	}
	if seen[1].StatusBarLyrics != "" {
		t.Errorf("second notification should carry zero settings, got %+v", seen[1])
	}
}

func TestSaveFailureKeepsCurrent(t *testing.T) {
	store := newMemStore()
	svc, _ := NewService(store)
	svc.Save(Settings{AutoStart: On})

	store.setErr = errors.New("read-only")
	if err := svc.Save(Settings{AutoStart: Off}); err == nil {
		t.Fatal("expected save error")
	}
	if got := svc.Get().AutoStart; got != On {
		t.Errorf("AutoStart = %q after failed save, want on", got)
	}
}

func TestClearRemovesBlob(t *testing.T) {
	store := newMemStore()
	store.items[Key] = `{"autoStart":"on"}`
	svc, _ := NewService(store)

	if err := svc.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := store.items[Key]; ok {
		t.Error("settings blob should be removed")
	}
	if got := svc.Get(); got.AutoStart != "" {
		t.Errorf("expected zero settings after clear, got %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := newMemStore()
	store.items[Key] = `{"theme":"dark"}`
	svc, _ := NewService(store)

	s := svc.Get()
	s.Extra["theme"] = json.RawMessage(`"light"`)

	if got := string(svc.Get().Extra["theme"]); got != `"dark"` {
		t.Errorf("mutating a copy changed the service: %s", got)
	}
}

func TestWorksWithSQLiteStore(t *testing.T) {
	db := storage.NewDB(t.TempDir() + "/settings.db")
	if err := db.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if err := svc.Save(Settings{APIBaseURL: "https://music.example"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := NewService(db)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Get().APIBaseURL; got != "https://music.example" {
		t.Errorf("APIBaseURL = %q after reload", got)
	}
}
