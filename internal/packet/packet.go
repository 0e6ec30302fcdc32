// Package packet defines the wire envelope and packet types exchanged with
// the remote server over the host's plugin-message channel.
//
// Packet ids are direction-scoped and share a small integer space:
//
//	0  handshake (outgoing)     / ready (incoming)
//	1  sync-data (both directions)
//	2  sync-request (outgoing)  / server-status (incoming)
package packet

import "encoding/json"

// Packet ids.
const (
	IDHandshake    = 0
	IDReady        = 0
	IDSyncData     = 1
	IDSyncRequest  = 2
	IDServerStatus = 2
)

// Envelope is the outer document of every inbound and outbound payload.
type Envelope struct {
	ID   int             `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Outgoing is a packet the addon sends to the remote server. Encode returns
// the envelope's data document.
type Outgoing interface {
	ID() int
	Encode() (json.RawMessage, error)
}

// Incoming is a packet received from the remote server.
type Incoming interface {
	Decode(data json.RawMessage) error
}

// Marshal wraps an outgoing packet into its envelope bytes.
func Marshal(p Outgoing) ([]byte, error) {
	data, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{ID: p.ID(), Data: data})
}
