// addonctl is a small operator tool for inspecting and maintaining the
// addon's credential store outside the game client.
//
// Usage:
//
//	addonctl [-f path] show
//	addonctl [-f path] set-password
//	addonctl [-f path] sync
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nickuc/nlogin-addon/internal/addon"
	"github.com/nickuc/nlogin-addon/internal/credentials"
	"github.com/nickuc/nlogin-addon/internal/link"
	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/packet"
	"github.com/nickuc/nlogin-addon/internal/platform"
)

func main() {
	path := flag.String("f", "", "credential store path (default: the addon's own location)")
	flag.Parse()

	p := &consolePlatform{}
	if *path == "" {
		*path = addon.CredentialsPath(p)
	}

	store, err := credentials.Load(*path)
	if err != nil {
		log.Fatalf("cannot load %s: %v", *path, err)
	}

	switch flag.Arg(0) {
	case "show":
		show(store, *path)
	case "set-password":
		setPassword(store, *path)
	case "sync":
		runSync(p, store, *path)
	default:
		fmt.Fprintln(os.Stderr, "usage: addonctl [-f path] show|set-password|sync")
		os.Exit(2)
	}
}

func show(store *credentials.Store, path string) {
	fmt.Printf("store: %s\n", path)
	fmt.Printf("keys: %d\n", len(store.Keys()))

	if token := store.LinkedToken(); token != "" {
		fmt.Printf("linked: %s\n", store.LinkedEmail())
	} else {
		fmt.Println("linked: no")
	}
	if store.EncryptionPassword() != "" {
		fmt.Println("encryption password: set")
	} else {
		fmt.Println("encryption password: not set")
	}

	for _, u := range store.Users() {
		fmt.Printf("user %s: %d server record(s)\n", u.ID(), len(u.ServerIDs()))
	}
}

func setPassword(store *credentials.Store, path string) {
	fmt.Print("New encryption password (empty to clear): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("cannot read password: %v", err)
	}

	store.SetEncryptionPassword(strings.TrimSpace(string(raw)))
	if err := store.Save(path); err != nil {
		log.Fatalf("cannot save %s: %v", path, err)
	}
	fmt.Println("saved")
}

func runSync(p platform.Platform, store *credentials.Store, path string) {
	token := store.LinkedToken()
	if token == "" {
		log.Fatal("no account is linked; link one from the game client first")
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	m := link.NewManager(link.Config{}, p, store, logger)

	res := m.Sync(token, store.LinkedEmail())
	if !res.OK() {
		log.Fatalf("sync failed: %s", res.Text(p))
	}
	if err := store.Save(path); err != nil {
		log.Fatalf("cannot save %s: %v", path, err)
	}
	fmt.Printf("sync ok: %d key(s)\n", len(store.Keys()))
}

// consolePlatform satisfies platform.Platform for command-line use. There
// is no locale catalog here: Translate returns the key with any parameters
// appended.
type consolePlatform struct{}

type consoleSettings struct{}

func (consoleSettings) Enabled() bool               { return true }
func (consoleSettings) Debug() bool                 { return false }
func (consoleSettings) EncryptionPassword() string  { return "" }
func (consoleSettings) SaveLogin() bool             { return false }
func (consoleSettings) SyncPasswords() bool         { return true }
func (consoleSettings) Init(string, func(), func()) {}

func (*consolePlatform) Enabled() bool               { return true }
func (*consolePlatform) Settings() platform.Settings { return consoleSettings{} }
func (*consolePlatform) SettingsDirectory() string   { return "." }

func (*consolePlatform) Translate(key string, params ...any) string {
	if len(params) == 0 {
		return key
	}
	return key + " " + strings.TrimSpace(fmt.Sprintln(params...))
}

func (*consolePlatform) SendRequest(p packet.Outgoing) {
	if data, err := packet.Marshal(p); err == nil {
		fmt.Printf("outgoing packet: %s\n", data)
	}
}
func (*consolePlatform) SendMessage(text string)      { fmt.Println(text) }
func (*consolePlatform) DisplayMessage(text string)   { fmt.Println(text) }
func (*consolePlatform) ShowNotification(text string) { fmt.Println(text) }
func (*consolePlatform) OpenURL(url string)           { fmt.Printf("open in a browser: %s\n", url) }
func (*consolePlatform) Info(msg string)              { log.Print(msg) }
func (*consolePlatform) Error(msg string, err error)  { log.Printf("%s: %v", msg, err) }
