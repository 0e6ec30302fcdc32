// Package handler implements the per-connection protocol state machine: the
// host event entry points, the packet dispatch table, and the join/ready/
// sync/server-status logic including server identity verification.
package handler

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/nickuc/nlogin-addon/internal/credentials"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/message"
	"github.com/nickuc/nlogin-addon/internal/packet"
	"github.com/nickuc/nlogin-addon/internal/platform"
	"github.com/nickuc/nlogin-addon/internal/session"
)

// PacketHandler reacts to decoded inbound packets on behalf of the current
// session.
type PacketHandler struct {
	platform platform.Platform
	store    *credentials.Store
	sessions *session.Manager
	log      logging.Logger
}

func NewPacketHandler(p platform.Platform, store *credentials.Store, sessions *session.Manager, log logging.Logger) *PacketHandler {
	return &PacketHandler{platform: p, store: store, sessions: sessions, log: log}
}

// HandleReady processes the server's handshake reply: it pins the session's
// identity fields, verifies the server against any stored key, and answers
// with the login or register command.
func (h *PacketHandler) HandleReady(p *packet.Ready) {
	s := h.sessions.Current()
	if s == nil {
		return
	}

	s.Init(p.ServerID, p.UserID, p.Key)

	user := h.store.User(p.UserID)
	stored, hasStored := user.Server(p.ServerID)

	if !h.verifyServerSignature(p, s, stored, hasStored) {
		message.InvalidSignature.Notify(h.platform)
		return
	}

	syncPasswords := h.platform.Settings().SyncPasswords()

	if p.UserRegistered && !hasStored {
		// The server knows this user but we hold no password for it. Only a
		// sync can recover the record.
		if syncPasswords {
			h.platform.SendRequest(&packet.SyncRequest{})
			if h.store.LinkedToken() == "" {
				message.RecommendLink.Display(h.platform)
				message.RecommendLink.Notify(h.platform)
			}
		}
		return
	}

	var command string
	if p.UserRegistered {
		command = "/login " + stored.Password
	} else {
		password := cryptox.Password()
		user.UpdateServer(p.ServerID, p.Key, password)
		command = "/register " + password + " " + password
		s.SetSyncRequired(true)
		message.RegisteringPassword.Notify(h.platform)
	}

	if syncPasswords && !s.SyncRequired() {
		s.SetSyncRequired(p.RequireSync)
	}

	s.BindServer()
	h.platform.SendMessage(command)
}

// verifyServerSignature checks the remote identity. Trust-on-first-use: an
// unknown (user, server) pair passes; a stored key requires a byte-identical
// DER encoding and a signature whose raw transform equals the challenge.
// Every failure path fails closed.
func (h *PacketHandler) verifyServerSignature(p *packet.Ready, s *session.Session, stored credentials.Server, hasStored bool) bool {
	if p.Key == nil {
		h.log.Debug("the server did not send its public key")
		return false
	}

	if !hasStored || stored.Key == nil {
		return true
	}

	if !bytes.Equal(cryptox.EncodePublicKey(stored.Key), p.KeyDER) {
		h.log.Debug("the public key of the remote server is not the same as the stored one")
		return false
	}

	out, err := cryptox.RawTransform(stored.Key, p.Signature, len(s.Challenge()))
	if err != nil {
		h.log.Debug("rsa challenge verification failed: invalid signature block", "err", err)
		return false
	}
	if !bytes.Equal(out, s.Challenge()) {
		h.log.Debug("rsa challenge verification failed: the signature does not match the challenge")
		return false
	}
	return true
}

// HandleSyncData merges a server-stored backup record into the local store.
// The checksum selects which local zero-knowledge key protects the payload.
func (h *PacketHandler) HandleSyncData(p *packet.SyncData) {
	s := h.sessions.Current()
	if s == nil {
		return
	}

	var matched string
	for _, key := range h.store.Keys() {
		if cryptox.Checksum(key+p.Data, p.Checksum) {
			matched = key
			break
		}
	}
	if matched == "" {
		message.BackupInvalidPassword.Display(h.platform)
		message.BackupInvalidPassword.Notify(h.platform)
		h.log.Debug("cannot find the appropriate key for this server's sync data")
		return
	}

	plain, err := cryptox.DecryptFromBase64(p.Data, matched)
	if err != nil {
		message.BackupCorrupted.Display(h.platform)
		message.BackupCorrupted.Notify(h.platform)
		h.log.Debug("cannot decrypt the sync data provided by this server", "err", err)
		return
	}

	srv, err := credentials.DecodeServer([]byte(plain))
	if err != nil {
		message.BackupMalformed.Display(h.platform)
		message.BackupMalformed.Notify(h.platform)
		h.log.Debug("cannot decode the sync data provided by this server", "err", err)
		return
	}

	h.store.User(s.UserID()).MergeServer(srv)

	// The record binds the session only when it is this server's: the
	// login-successful path resolves the bound record by the session's
	// server id, and a foreign id would make that lookup miss.
	if srv.ID == s.ServerID() {
		s.BindServer()
		s.SetSyncRequired(true)
	}

	message.DownloadingData.Notify(h.platform)
	h.platform.SendMessage("/login " + srv.Password)
}

// HandleServerStatus reacts to the server's verdict. Only login-successful
// drives behavior; every other status is logged.
func (h *PacketHandler) HandleServerStatus(p *packet.ServerStatus) {
	s := h.sessions.Current()
	if s == nil {
		return
	}

	switch p.Status {
	case packet.StatusLoginSuccessful:
		s.Authenticate()

		if !s.ServerBound() {
			serverID, key, plain := s.ServerID(), s.ServerKey(), s.PlainPassword()
			if serverID != uuid.Nil && key != nil && plain != "" {
				srv := h.store.User(s.UserID()).UpdateServer(serverID, key, plain)
				s.BindServer()
				message.SavingPassword.Notify(h.platform)
				h.uploadSyncData(s, srv)
			}
		} else if s.SyncRequired() {
			if srv, ok := h.store.User(s.UserID()).Server(s.ServerID()); ok {
				h.uploadSyncData(s, srv)
			}
		}

	default:
		h.log.Debug("received server status", "status", p.Status.String())
	}
}

// uploadSyncData encrypts the server record with the main key and sends it
// for cloud-side storage. Refused silently when unauthenticated.
func (h *PacketHandler) uploadSyncData(s *session.Session, srv credentials.Server) {
	if !s.Authenticated() {
		h.log.Debug("attempted to send sync data while unauthenticated")
		return
	}

	mainKey := h.store.MainKey()

	payload, err := credentials.EncodeServer(srv)
	if err != nil {
		h.platform.Error("cannot serialize sync data", err)
		return
	}

	ciphertext, err := cryptox.EncryptToBase64(string(payload), mainKey)
	if err != nil {
		message.EncryptionFailed.Display(h.platform)
		message.EncryptionFailed.Notify(h.platform)
		h.platform.Error("cannot encrypt sync data using the main key", err)
		return
	}

	h.platform.SendRequest(&packet.OutgoingSyncData{
		Data:     ciphertext,
		Checksum: cryptox.Hash(mainKey + ciphertext),
	})
}
