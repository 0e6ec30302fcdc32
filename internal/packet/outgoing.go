package packet

import (
	"encoding/base64"
	"encoding/json"
)

// Handshake opens a session: it carries the fresh challenge nonce the server
// must answer in its Ready packet.
type Handshake struct {
	Challenge []byte
}

func (p *Handshake) ID() int { return IDHandshake }

func (p *Handshake) Encode() (json.RawMessage, error) {
	return json.Marshal(struct {
		Challenge string `json:"challenge"`
	}{Challenge: base64.StdEncoding.EncodeToString(p.Challenge)})
}

// OutgoingSyncData uploads an encrypted per-server record. Checksum is
// hash(mainKey || ciphertext) so the receiving side can later prove which
// key protects the payload.
type OutgoingSyncData struct {
	Data     string `json:"data"`
	Checksum string `json:"checksum"`
}

func (p *OutgoingSyncData) ID() int { return IDSyncData }

func (p *OutgoingSyncData) Encode() (json.RawMessage, error) {
	return json.Marshal(p)
}

// SyncRequest asks the server to send its stored sync data.
type SyncRequest struct{}

func (p *SyncRequest) ID() int { return IDSyncRequest }

func (p *SyncRequest) Encode() (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
