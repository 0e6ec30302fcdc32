package packet

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
)

// Ready is the server's reply to the handshake. It identifies the server and
// user, reports registration state, and carries the RSA public key plus the
// raw-RSA block answering the session challenge.
type Ready struct {
	ServerID uuid.UUID
	UserID   uuid.UUID

	// MaxAllowedData is advisory and currently unused.
	MaxAllowedData int

	UserRegistered bool
	RequireSync    bool

	Key       *rsa.PublicKey
	KeyDER    []byte
	Signature []byte
}

type readyWire struct {
	ServerID       string `json:"server-id"`
	UserID         string `json:"user-id"`
	MaxAllowedData int    `json:"max-allowed-data"`
	Client         struct {
		UserRegistered bool `json:"user-registered"`
		RequireSync    bool `json:"require-sync"`
	} `json:"client"`
	Challenge struct {
		Key       string `json:"key"`
		Signature string `json:"signature"`
	} `json:"challenge"`
}

func (p *Ready) Decode(data json.RawMessage) error {
	var w readyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("ready: %w", err)
	}

	serverID, err := uuid.Parse(w.ServerID)
	if err != nil {
		return fmt.Errorf("ready: server-id: %w", err)
	}
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return fmt.Errorf("ready: user-id: %w", err)
	}

	// A missing or unparseable key is not a decode failure: the packet
	// still reaches the handler, where the nil key fails verification and
	// surfaces the invalid-signature notification.
	var key *rsa.PublicKey
	var keyDER []byte
	if der, err := base64.StdEncoding.DecodeString(w.Challenge.Key); err == nil {
		if parsed, err := cryptox.PublicKeyFromDER(der); err == nil {
			key, keyDER = parsed, der
		}
	}

	signature, err := base64.StdEncoding.DecodeString(w.Challenge.Signature)
	if err != nil {
		signature = nil
	}

	p.ServerID = serverID
	p.UserID = userID
	p.MaxAllowedData = w.MaxAllowedData
	p.UserRegistered = w.Client.UserRegistered
	// require-sync is only meaningful for registered users.
	p.RequireSync = w.Client.UserRegistered && w.Client.RequireSync
	p.Key = key
	p.KeyDER = keyDER
	p.Signature = signature
	return nil
}

// SyncData carries an encrypted per-server record and the checksum binding
// it to one of the local zero-knowledge keys.
type SyncData struct {
	Data     string `json:"data"`
	Checksum string `json:"checksum"`
}

func (p *SyncData) Decode(data json.RawMessage) error {
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("sync-data: %w", err)
	}
	return nil
}

// Status is the server's verdict on the last command.
type Status int

const (
	StatusLoginSuccessful Status = iota
	StatusRSAChallengeRejected
	StatusSyncRequestRejected
	StatusChecksumRejected
	StatusUnknown
)

// StatusByCode maps a wire code to a Status, folding out-of-range values
// to StatusUnknown.
func StatusByCode(code int) Status {
	if code >= 0 && code < int(StatusUnknown) {
		return Status(code)
	}
	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusLoginSuccessful:
		return "login-successful"
	case StatusRSAChallengeRejected:
		return "rsa-challenge-rejected"
	case StatusSyncRequestRejected:
		return "sync-request-rejected"
	case StatusChecksumRejected:
		return "checksum-rejected"
	default:
		return "unknown"
	}
}

// ServerStatus reports the server-side outcome of a login/register/sync
// exchange.
type ServerStatus struct {
	Status Status
}

func (p *ServerStatus) Decode(data json.RawMessage) error {
	var w struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("server-status: %w", err)
	}
	p.Status = StatusByCode(w.Code)
	return nil
}
