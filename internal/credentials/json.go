package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nickuc/nlogin-addon/internal/common"
	"github.com/nickuc/nlogin-addon/internal/filex"
)

// Persisted document schema; see also Server's serverJSON.
type storeJSON struct {
	Password string      `json:"password"`
	Linking  linkingJSON `json:"linking"`
	Keys     []string    `json:"keys"`
	Users    []userJSON  `json:"users"`
}

type linkingJSON struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
}

type userJSON struct {
	ID      string       `json:"id"`
	Servers []serverJSON `json:"servers"`
}

// Save persists the store to path if anything changed, then clears every
// dirty flag. The write is atomic (temp file + rename): a crash between
// write and flag-clear costs at most one redundant future save, never the
// written data.
func (c *Store) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.modifiedLocked() {
		return nil
	}

	data, err := json.MarshalIndent(c.toJSONLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	c.clearModifiedLocked()
	return nil
}

func (c *Store) toJSONLocked() storeJSON {
	out := storeJSON{
		Password: c.encryptionPassword,
		Keys:     append([]string{}, c.keys...),
		Users:    []userJSON{},
	}
	if c.linkedToken != "" {
		out.Linking = linkingJSON{Token: c.linkedToken, Email: c.linkedEmail}
	}
	for _, u := range c.users {
		uj := userJSON{ID: u.id.String(), Servers: []serverJSON{}}
		for _, s := range u.servers {
			uj.Servers = append(uj.Servers, s.toJSON())
		}
		out.Users = append(out.Users, uj)
	}
	return out
}

// Load reads a store from path. A missing or empty file yields a fresh
// clean store; a present but unreadable or malformed file is an error, and
// startup must treat it as fatal since no safe default exists.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if len(data) == 0 {
		return NewStore(), nil
	}

	var in storeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedCredentials, err)
	}

	c := NewStore()
	c.encryptionPassword = strings.TrimSpace(in.Password)
	if in.Linking.Token != "" {
		c.linkedToken = in.Linking.Token
		c.linkedEmail = in.Linking.Email
	}
	for _, k := range in.Keys {
		present := false
		for _, existing := range c.keys {
			if existing == k {
				present = true
				break
			}
		}
		if !present {
			c.keys = append(c.keys, k)
		}
	}
	for _, uj := range in.Users {
		id, err := uuid.Parse(uj.ID)
		if err != nil {
			// A single corrupt record is dropped rather than failing the load.
			continue
		}
		u := &User{store: c, id: id, servers: make(map[uuid.UUID]Server)}
		for _, sj := range uj.Servers {
			s, err := serverFromJSON(sj)
			if err != nil {
				continue
			}
			u.servers[s.ID] = s
		}
		c.users[id] = u
	}
	return c, nil
}
