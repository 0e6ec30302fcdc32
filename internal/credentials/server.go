package credentials

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
)

// Server is one per-user, per-server login record. Key is absent only
// transiently, before the first successful handshake stored it.
type Server struct {
	ID       uuid.UUID
	Key      *rsa.PublicKey
	Password string
}

type serverJSON struct {
	ID       string `json:"id"`
	Key      string `json:"key,omitempty"`
	Password string `json:"password"`
}

func (s Server) toJSON() serverJSON {
	out := serverJSON{ID: s.ID.String(), Password: s.Password}
	if s.Key != nil {
		out.Key = base64.StdEncoding.EncodeToString(cryptox.EncodePublicKey(s.Key))
	}
	return out
}

func serverFromJSON(in serverJSON) (Server, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return Server{}, fmt.Errorf("server id: %w", err)
	}

	var key *rsa.PublicKey
	if in.Key != "" {
		key, err = cryptox.PublicKeyFromBase64(in.Key)
		if err != nil {
			return Server{}, fmt.Errorf("server key: %w", err)
		}
	}

	return Server{ID: id, Key: key, Password: in.Password}, nil
}

// EncodeServer serializes a server record for sync payloads.
func EncodeServer(s Server) ([]byte, error) {
	return json.Marshal(s.toJSON())
}

// DecodeServer parses a sync payload back into a server record.
func DecodeServer(data []byte) (Server, error) {
	var in serverJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return Server{}, fmt.Errorf("decode server: %w", err)
	}
	return serverFromJSON(in)
}
