package handler

import (
	"encoding/json"
	"strings"

	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/packet"
	"github.com/nickuc/nlogin-addon/internal/platform"
	"github.com/nickuc/nlogin-addon/internal/session"
)

// authCommands are the chat commands whose second token is captured as a
// password candidate.
var authCommands = map[string]struct{}{
	"/login":     {},
	"/logar":     {},
	"/log":       {},
	"/register":  {},
	"/registrar": {},
	"/reg":       {},
}

// EventHandler receives the host's connection and chat events. Handlers are
// synchronous and never propagate failures to the host: a broken payload is
// logged and dropped.
type EventHandler struct {
	platform platform.Platform
	sessions *session.Manager
	registry *Registry
	log      logging.Logger
}

func NewEventHandler(p platform.Platform, sessions *session.Manager, registry *Registry, log logging.Logger) *EventHandler {
	return &EventHandler{platform: p, sessions: sessions, registry: registry, log: log}
}

// HandleJoin opens a fresh session and sends the handshake with its
// challenge nonce. No-op while the feature is disabled.
func (h *EventHandler) HandleJoin() {
	if !h.platform.Settings().Enabled() {
		return
	}
	s := h.sessions.New()
	h.platform.SendRequest(&packet.Handshake{Challenge: s.Challenge()})
}

// HandleQuit discards the current session. Idempotent.
func (h *EventHandler) HandleQuit() {
	h.sessions.Invalidate()
}

// HandleChat inspects an outgoing chat message for an auth command and, if
// found, captures its password argument on the session. The message itself
// is never suppressed.
func (h *EventHandler) HandleChat(text string) bool {
	settings := h.platform.Settings()
	if !settings.Enabled() || !settings.SaveLogin() || text == "" {
		return false
	}

	s := h.sessions.Current()
	if s == nil {
		return false
	}

	if text[0] == '/' {
		parts := strings.Split(text, " ")
		if len(parts) > 1 {
			if _, ok := authCommands[strings.ToLower(parts[0])]; ok {
				s.SetPlainPassword(parts[1])
			}
		}
	}
	return false
}

// HandleCustomPayload decodes an inbound plugin-channel payload and
// dispatches it. Unknown ids are dropped; a decode error aborts only this
// message.
func (h *EventHandler) HandleCustomPayload(payload []byte) {
	if !h.platform.Settings().Enabled() {
		return
	}

	var env struct {
		ID   *int            `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		h.platform.Error("cannot decode inbound payload", err)
		return
	}
	if env.ID == nil || env.Data == nil {
		return
	}

	handled, err := h.registry.Dispatch(*env.ID, env.Data)
	if !handled {
		h.log.Debug("skipping unknown packet", "id", *env.ID)
		return
	}
	if err != nil {
		h.platform.Error("cannot handle packet", err)
		return
	}
	h.log.Debug("packet handled", "id", *env.ID)
}
