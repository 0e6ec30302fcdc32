// Package platform declares the host-side collaborators the addon core
// depends on. The host game client implements these; the core never touches
// the event system, UI, or localization directly.
package platform

import "github.com/nickuc/nlogin-addon/internal/packet"

// Platform is the surface the core uses to talk back to the host.
type Platform interface {
	// Enabled reports whether the addon feature is active in the host.
	Enabled() bool

	Settings() Settings

	// SettingsDirectory is the host's per-addon settings folder, used as a
	// fallback location for the credential store.
	SettingsDirectory() string

	// Translate resolves a message key to localized text.
	Translate(key string, params ...any) string

	// SendRequest transmits an outgoing packet to the remote server.
	SendRequest(p packet.Outgoing)

	// SendMessage submits text as an outgoing chat command.
	SendMessage(text string)

	// DisplayMessage prints text in the local chat only.
	DisplayMessage(text string)

	// ShowNotification pops an on-screen notification.
	ShowNotification(text string)

	// OpenURL opens a browser page (used by the account linking flow).
	OpenURL(url string)

	Info(msg string)
	Error(msg string, err error)
}

// Settings exposes the host-owned configuration values the core reads, plus
// the two callback slots the core installs for the link/unlink UI actions.
type Settings interface {
	Enabled() bool
	Debug() bool
	EncryptionPassword() string
	SaveLogin() bool
	SyncPasswords() bool

	// Init hands the host the persisted encryption password and the
	// callbacks to invoke from the link/unlink UI buttons.
	Init(encryptionPassword string, link, unlink func())
}
