package socketio

import (
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"main", RoleMain, true},
		{"lyrics", RoleLyrics, true},
		{"", "", false},
		{"Main", "", false},
		{"mv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRoleRegistryRegisterAndLookup(t *testing.T) {
	r := NewRoleRegistry()

	if replaced := r.Register("a", RoleMain); replaced != "" {
		t.Errorf("first registration replaced %q", replaced)
	}
	r.Register("b", RoleLyrics)

	if id, ok := r.Lookup(RoleMain); !ok || id != "a" {
		t.Errorf("Lookup(main) = %q, %v", id, ok)
	}
	if id, ok := r.Lookup(RoleLyrics); !ok || id != "b" {
		t.Errorf("Lookup(lyrics) = %q, %v", id, ok)
	}
	if role, ok := r.RoleOf("b"); !ok || role != RoleLyrics {
		t.Errorf("RoleOf(b) = %q, %v", role, ok)
	}
}

func TestRoleRegistryNewerReplacesOlder(t *testing.T) {
	r := NewRoleRegistry()

	r.Register("old", RoleLyrics)
	if replaced := r.Register("new", RoleLyrics); replaced != "old" {
		t.Errorf("replaced = %q, want old", replaced)
	}
	if id, _ := r.Lookup(RoleLyrics); id != "new" {
		t.Errorf("Lookup(lyrics) = %q, want new", id)
	}
	if _, ok := r.RoleOf("old"); ok {
		t.Error("replaced client should no longer hold a role")
	}

	// The replaced client disconnecting must not drop the new holder
	if _, ok := r.Remove("old"); ok {
		t.Error("Remove(old) should report nothing removed")
	}
	if id, ok := r.Lookup(RoleLyrics); !ok || id != "new" {
		t.Errorf("Lookup(lyrics) after removing old = %q, %v", id, ok)
	}
}

func TestRoleRegistryReRegisterSameClient(t *testing.T) {
	r := NewRoleRegistry()

	r.Register("a", RoleMain)
	if replaced := r.Register("a", RoleMain); replaced != "" {
		t.Errorf("re-registering the same client replaced %q", replaced)
	}
}

func TestRoleRegistrySwitchRole(t *testing.T) {
	r := NewRoleRegistry()

	r.Register("a", RoleMain)
	r.Register("a", RoleLyrics)

	if _, ok := r.Lookup(RoleMain); ok {
		t.Error("switching roles should release main")
	}
	if id, _ := r.Lookup(RoleLyrics); id != "a" {
		t.Errorf("Lookup(lyrics) = %q, want a", id)
	}
}

func TestRoleRegistryRemove(t *testing.T) {
	r := NewRoleRegistry()

	r.Register("a", RoleMain)
	role, ok := r.Remove("a")
	if !ok || role != RoleMain {
		t.Errorf("Remove(a) = %q, %v", role, ok)
	}
	if _, ok := r.Lookup(RoleMain); ok {
		t.Error("main should be free after remove")
	}

	// Removing unknown client should not panic
	r.Remove("nonexistent")
}
