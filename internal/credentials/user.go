package credentials

import (
	"crypto/rsa"

	"github.com/google/uuid"
)

// User groups the server records of one account. Users are owned exclusively
// by a Store and share its lock.
type User struct {
	store *Store

	id       uuid.UUID
	servers  map[uuid.UUID]Server
	modified bool
}

func (u *User) ID() uuid.UUID {
	return u.id
}

// ServerIDs returns the ids of the stored server records.
func (u *User) ServerIDs() []uuid.UUID {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	out := make([]uuid.UUID, 0, len(u.servers))
	for id := range u.servers {
		out = append(out, id)
	}
	return out
}

// Server returns the record for the given server id, if any.
func (u *User) Server(id uuid.UUID) (Server, bool) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	s, ok := u.servers[id]
	return s, ok
}

// UpdateServer creates or mutates a server record and always marks the user
// dirty. An existing record keeps its stored key; only the password changes.
func (u *User) UpdateServer(id uuid.UUID, key *rsa.PublicKey, password string) Server {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	s, ok := u.servers[id]
	if ok {
		s.Password = password
	} else {
		s = Server{ID: id, Key: key, Password: password}
	}
	u.servers[id] = s
	u.modified = true
	return s
}

// MergeServer stores a record received through sync, replacing any existing
// one, and marks the user dirty.
func (u *User) MergeServer(s Server) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.servers[s.ID] = s
	u.modified = true
}
