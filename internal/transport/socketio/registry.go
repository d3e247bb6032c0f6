package socketio

import (
	"sync"
)

// Role identifies which renderer a socket belongs to.
type Role string

const (
	// RoleMain is the main player UI.
	RoleMain Role = "main"
	// RoleLyrics is the desktop lyrics overlay.
	RoleLyrics Role = "lyrics"
)

// ParseRole converts a registration payload into a Role.
func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleMain, RoleLyrics:
		return Role(v), true
	}
	return "", false
}

// RoleRegistry tracks which socket currently plays each role.
// A role has at most one socket; a newer registration replaces the older one.
type RoleRegistry struct {
	mu sync.Mutex
	// role -> clientID
	byRole map[Role]string
	// clientID -> role
	byClient map[string]Role
}

// NewRoleRegistry creates an empty registry.
func NewRoleRegistry() *RoleRegistry {
	return &RoleRegistry{
		byRole:   make(map[Role]string),
		byClient: make(map[string]Role),
	}
}

// Register binds clientID to role. Returns the ID of the socket that previously held
// the role (empty string if none or if it is the same client).
func (r *RoleRegistry) Register(clientID string, role Role) (replacedID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A client switching roles releases its old one
	if prev, ok := r.byClient[clientID]; ok && prev != role {
		if r.byRole[prev] == clientID {
			delete(r.byRole, prev)
		}
	}

	if current, ok := r.byRole[role]; ok && current != clientID {
		replacedID = current
		delete(r.byClient, current)
	}

	r.byRole[role] = clientID
	r.byClient[clientID] = role
	return replacedID
}

// Remove unregisters a client when it disconnects. Returns the role it held.
func (r *RoleRegistry) Remove(clientID string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.byClient[clientID]
	if !ok {
		return "", false
	}

	delete(r.byClient, clientID)
	if r.byRole[role] == clientID {
		delete(r.byRole, role)
	}
	return role, true
}

// Lookup returns the client currently holding role.
func (r *RoleRegistry) Lookup(role Role) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byRole[role]
	return id, ok
}

// RoleOf returns the role of clientID.
func (r *RoleRegistry) RoleOf(clientID string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.byClient[clientID]
	return role, ok
}
