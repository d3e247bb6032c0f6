package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/moekoe-music/moekoe-shell/internal/infra/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := storage.NewDB("")
	if db == nil {
		t.Fatal("NewDB should return a non-nil instance")
	}
	if db.Path() != storage.DefaultDBPath {
		t.Errorf("Path() = %q, want %q", db.Path(), storage.DefaultDBPath)
	}
}

func TestDBOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db := storage.NewDB(dbPath)

	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist after Open()")
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestDBGetSetRemove(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetItem("settings"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetItem on empty store: got %v, want ErrNotFound", err)
	}

	if err := db.SetItem("settings", `{"apiBaseUrl":"/api"}`); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	got, err := db.GetItem("settings")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got != `{"apiBaseUrl":"/api"}` {
		t.Errorf("GetItem = %q", got)
	}

	if err := db.SetItem("settings", `{}`); err != nil {
		t.Fatalf("SetItem overwrite failed: %v", err)
	}
	if got, _ := db.GetItem("settings"); got != `{}` {
		t.Errorf("GetItem after overwrite = %q, want {}", got)
	}

	if err := db.RemoveItem("settings"); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}
	if _, err := db.GetItem("settings"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetItem after remove: got %v, want ErrNotFound", err)
	}
	if err := db.RemoveItem("settings"); err != nil {
		t.Errorf("RemoveItem of missing key should succeed, got %v", err)
	}
}

func TestDBEmptyValue(t *testing.T) {
	db := openTestDB(t)

	if err := db.SetItem("empty", ""); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	got, err := db.GetItem("empty")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetItem = %q, want empty", got)
	}
}

func TestDBClear(t *testing.T) {
	db := openTestDB(t)

	for _, key := range []string{"settings", "MoeData", "maximize"} {
		if err := db.SetItem(key, "1"); err != nil {
			t.Fatalf("SetItem(%q) failed: %v", key, err)
		}
	}

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, key := range []string{"settings", "MoeData", "maximize"} {
		if _, err := db.GetItem(key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetItem(%q) after Clear: got %v, want ErrNotFound", key, err)
		}
	}

	// The store stays usable after a clear
	if err := db.SetItem("settings", "{}"); err != nil {
		t.Fatalf("SetItem after Clear failed: %v", err)
	}
}

func TestDBPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db := storage.NewDB(dbPath)
	if err := db.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.SetItem("lyricsWindowPosition", `{"x":10,"y":20}`); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	db.Close()

	reopened := storage.NewDB(dbPath)
	if err := reopened.Open(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetItem("lyricsWindowPosition")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got != `{"x":10,"y":20}` {
		t.Errorf("GetItem = %q", got)
	}
}

func TestDBClosedOperations(t *testing.T) {
	db := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))

	if _, err := db.GetItem("k"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("GetItem: got %v, want ErrClosed", err)
	}
	if err := db.SetItem("k", "v"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("SetItem: got %v, want ErrClosed", err)
	}
	if err := db.RemoveItem("k"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("RemoveItem: got %v, want ErrClosed", err)
	}
	if err := db.Clear(); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Clear: got %v, want ErrClosed", err)
	}
}
