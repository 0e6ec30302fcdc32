// Package addon assembles the components and owns the background tasks: the
// periodic cloud resync and the periodic credential save.
package addon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/nickuc/nlogin-addon/internal/common"
	"github.com/nickuc/nlogin-addon/internal/credentials"
	"github.com/nickuc/nlogin-addon/internal/filex"
	"github.com/nickuc/nlogin-addon/internal/handler"
	"github.com/nickuc/nlogin-addon/internal/link"
	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/message"
	"github.com/nickuc/nlogin-addon/internal/platform"
	"github.com/nickuc/nlogin-addon/internal/session"
)

const (
	tickInterval = 1 * time.Second

	// syncAfterTicks is how many sync ticks pass before a resync fires.
	syncAfterTicks = 3
)

// Addon is the assembled core: the credential store, the session manager,
// the handlers, and the link manager, plus the background tickers.
type Addon struct {
	platform platform.Platform
	log      logging.Logger

	store    *credentials.Store
	sessions *session.Manager
	links    *link.Manager
	events   *handler.EventHandler

	storePath string

	syncTicks atomic.Int32
	firstSync atomic.Bool
}

func New(p platform.Platform, log logging.Logger) *Addon {
	return &Addon{platform: p, log: log}
}

// Events exposes the host-facing event entry points. Valid after Enable.
func (a *Addon) Events() *handler.EventHandler {
	return a.events
}

// Store exposes the credential store. Valid after Enable.
func (a *Addon) Store() *credentials.Store {
	return a.store
}

// Links exposes the link manager. Valid after Enable.
func (a *Addon) Links() *link.Manager {
	return a.links
}

// CredentialsPath resolves where the credential store lives: the OS-specific
// nLogin folder, or the host's per-addon settings directory when no home
// folder can be determined.
func CredentialsPath(p platform.Platform) string {
	dir := ""
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			dir = filepath.Join(appData, "nLogin")
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			dir = filepath.Join(home, ".nlogin")
		}
	}
	if dir == "" {
		dir = p.SettingsDirectory()
	}
	return filepath.Join(dir, common.CredentialsFileName)
}

// Enable loads the credential store, wires the handlers and the link
// manager, installs the settings callbacks, and starts the background
// tickers. The tickers stop when ctx is canceled. A store load failure is
// fatal: there is no safe empty default over an existing corrupt file.
func (a *Addon) Enable(ctx context.Context, linkCfg link.Config) error {
	a.storePath = CredentialsPath(a.platform)
	if err := filex.EnsureDir(filepath.Dir(a.storePath)); err != nil {
		return fmt.Errorf("prepare credentials directory: %w", err)
	}

	store, err := credentials.Load(a.storePath)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	a.store = store

	a.sessions = session.NewManager()
	a.links = link.NewManager(linkCfg, a.platform, a.store, a.log)

	packets := handler.NewPacketHandler(a.platform, a.store, a.sessions, a.log)
	a.events = handler.NewEventHandler(a.platform, a.sessions, handler.NewRegistry(packets), a.log)

	a.firstSync.Store(true)
	a.platform.Settings().Init(a.store.EncryptionPassword(), a.links.LinkAccount, a.links.UnlinkAccount)

	go a.runSyncTicker(ctx)
	go a.runSaveTicker(ctx)

	a.log.Info("addon enabled", "credentials", a.storePath)
	return nil
}

// runSyncTicker counts ticks and resynchronizes the cloud key set once the
// counter reaches its threshold while an account is linked. The first
// successful sync after startup is silent.
func (a *Addon) runSyncTicker(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if a.syncTicks.Add(1) != syncAfterTicks {
			continue
		}

		token := a.store.LinkedToken()
		if token == "" {
			continue
		}

		res := a.links.Sync(token, a.store.LinkedEmail())
		first := a.firstSync.Swap(false)
		switch {
		case res.OK() && !first:
			message.SyncSuccess.Notify(a.platform)
		case !res.OK():
			a.platform.ShowNotification(message.SyncFailed.Text(a.platform, res.Text(a.platform)))
			a.log.Warn("cloud sync failed", "detail", res.Text(a.platform))
		}
	}
}

// runSaveTicker adopts encryption password changes from the settings UI and
// persists the store while the feature is enabled. Save errors are logged
// and retried on the next tick.
func (a *Addon) runSaveTicker(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if password := a.platform.Settings().EncryptionPassword(); password != a.store.EncryptionPassword() {
			a.store.SetEncryptionPassword(password)
			// Schedule a resync so the cloud copy is re-encrypted.
			a.syncTicks.Store(1)
		}

		if !a.platform.Settings().Enabled() {
			continue
		}
		if err := a.store.Save(a.storePath); err != nil {
			a.Error("cannot save the credential store", err)
		}
	}
}

// Debug logs and, when the debug setting is on, mirrors the message into
// the local chat.
func (a *Addon) Debug(msg string, args ...any) {
	a.log.Debug(msg, args...)
	if a.platform.Settings().Debug() {
		a.platform.DisplayMessage(msg)
	}
}

// Error logs and, when the debug setting is on, mirrors the failure into
// the local chat.
func (a *Addon) Error(msg string, err error) {
	a.log.Error(msg, "err", err)
	a.platform.Error(msg, err)
	if a.platform.Settings().Debug() {
		a.platform.DisplayMessage(fmt.Sprintf("%s: %v", msg, err))
	}
}
