// Package session holds the per-connection state of the autologin exchange.
package session

import (
	"crypto/rsa"
	"sync"

	"github.com/google/uuid"
)

// Session is the ephemeral state of one live server connection. It is
// created on join, replaced by each new join, and discarded on quit.
//
// The session does not hold a reference to a credential record: it carries
// the (userID, serverID) pair, and callers resolve the record through the
// store at time of use.
type Session struct {
	challenge []byte

	mu            sync.Mutex
	serverID      uuid.UUID
	userID        uuid.UUID
	serverKey     *rsa.PublicKey
	plainPassword string
	syncRequired  bool
	serverBound   bool
	authenticated bool
}

func New(challenge []byte) *Session {
	return &Session{challenge: challenge}
}

// Challenge returns the nonce sent in the handshake. Immutable.
func (s *Session) Challenge() []byte {
	return s.challenge
}

// Init stores the identity fields from the server's ready packet.
func (s *Session) Init(serverID, userID uuid.UUID, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverID = serverID
	s.userID = userID
	s.serverKey = key
}

func (s *Session) ServerID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverID
}

func (s *Session) UserID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) ServerKey() *rsa.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverKey
}

// SetPlainPassword records a password captured from an intercepted chat
// command.
func (s *Session) SetPlainPassword(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plainPassword = password
}

func (s *Session) PlainPassword() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plainPassword
}

func (s *Session) SetSyncRequired(required bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncRequired = required
}

func (s *Session) SyncRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncRequired
}

// BindServer marks that a credential record now exists for the session's
// (userID, serverID) pair.
func (s *Session) BindServer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverBound = true
}

func (s *Session) ServerBound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverBound
}

// Authenticate marks the session authenticated. The flag is monotonic: it
// is never reset, only dropped with the whole session.
func (s *Session) Authenticate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}
