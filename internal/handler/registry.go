package handler

import (
	"encoding/json"
	"fmt"

	"github.com/nickuc/nlogin-addon/internal/packet"
)

// Registry maps inbound packet ids to a decode+handle pair. The table is
// built once at startup; there is no runtime registration or reflection.
type Registry struct {
	entries map[int]registryEntry
}

type registryEntry struct {
	name     string
	dispatch func(data json.RawMessage) error
}

// NewRegistry builds the inbound dispatch table.
func NewRegistry(h *PacketHandler) *Registry {
	r := &Registry{entries: make(map[int]registryEntry)}

	r.entries[packet.IDReady] = registryEntry{"ready", func(data json.RawMessage) error {
		var p packet.Ready
		if err := p.Decode(data); err != nil {
			return err
		}
		h.HandleReady(&p)
		return nil
	}}

	r.entries[packet.IDSyncData] = registryEntry{"sync-data", func(data json.RawMessage) error {
		var p packet.SyncData
		if err := p.Decode(data); err != nil {
			return err
		}
		h.HandleSyncData(&p)
		return nil
	}}

	r.entries[packet.IDServerStatus] = registryEntry{"server-status", func(data json.RawMessage) error {
		var p packet.ServerStatus
		if err := p.Decode(data); err != nil {
			return err
		}
		h.HandleServerStatus(&p)
		return nil
	}}

	return r
}

// Dispatch decodes and handles one inbound packet. It reports false for an
// unknown id; a decode or handling error aborts only this packet.
func (r *Registry) Dispatch(id int, data json.RawMessage) (bool, error) {
	entry, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if err := entry.dispatch(data); err != nil {
		return true, fmt.Errorf("packet %s: %w", entry.name, err)
	}
	return true, nil
}
