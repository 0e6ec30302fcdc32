// Package credentials models the locally persisted secrets: the cloud link
// state, the zero-knowledge key set, and the per-user per-server password
// records, with two-level dirty tracking so saves only happen on change.
package credentials

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
)

// Store is the process-wide credential set. All mutations go through
// methods that both change state and raise the dirty flag, so the
// modified/saved invariant stays auditable. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	encryptionPassword string
	linkedToken        string
	linkedEmail        string
	keys               []string
	users              map[uuid.UUID]*User
	modified           bool
}

// NewStore returns an empty, clean store.
func NewStore() *Store {
	return &Store{users: make(map[uuid.UUID]*User)}
}

// User returns the record set for the given user id, creating it on demand.
// Creation alone does not mark the store dirty.
func (c *Store) User(id uuid.UUID) *User {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.users[id]
	if !ok {
		u = &User{store: c, id: id, servers: make(map[uuid.UUID]Server)}
		c.users[id] = u
	}
	return u
}

// Users returns the known users in no particular order.
func (c *Store) Users() []*User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*User, 0, len(c.users))
	for _, u := range c.users {
		out = append(out, u)
	}
	return out
}

// Keys returns a copy of the zero-knowledge key set in insertion order.
func (c *Store) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// AddKey inserts a key if not already present.
func (c *Store) AddKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.keys {
		if k == key {
			return
		}
	}
	c.keys = append(c.keys, key)
	c.modified = true
}

// MainKey returns the first key of the set, generating and storing one if
// the set is empty. Seeding marks the store dirty.
func (c *Store) MainKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.keys) == 0 {
		c.keys = append(c.keys, cryptox.Key())
		c.modified = true
	}
	return c.keys[0]
}

func (c *Store) EncryptionPassword() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encryptionPassword
}

func (c *Store) SetEncryptionPassword(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encryptionPassword = password
	c.modified = true
}

func (c *Store) LinkedToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linkedToken
}

func (c *Store) LinkedEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linkedEmail
}

// SetLink stores the cloud account link. Token and email always change
// together.
func (c *Store) SetLink(token, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkedToken = token
	c.linkedEmail = email
	c.modified = true
}

// ClearLink removes the cloud account link.
func (c *Store) ClearLink() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkedToken = ""
	c.linkedEmail = ""
	c.modified = true
}

// Modified reports whether the store or any owned user changed since the
// last save. A dirty child latches the store-level flag.
func (c *Store) Modified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modifiedLocked()
}

func (c *Store) modifiedLocked() bool {
	if c.modified {
		return true
	}
	for _, u := range c.users {
		if u.modified {
			c.modified = true
			return true
		}
	}
	return false
}

func (c *Store) clearModifiedLocked() {
	c.modified = false
	for _, u := range c.users {
		u.modified = false
	}
}
