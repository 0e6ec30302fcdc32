// Package link maintains the cloud-backed mirror of the local key set: the
// download/merge/upload synchronization cycle, the browser-driven account
// linking flow, and its loopback callback listener.
package link

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync/atomic"

	"github.com/nickuc/nlogin-addon/internal/credentials"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/message"
	"github.com/nickuc/nlogin-addon/internal/platform"
)

const flagEncrypted byte = 1

// Config holds the cloud endpoints and the loopback callback address. Zero
// fields are filled by LoadDefaults.
type Config struct {
	DownloadURL string
	UploadURL   string
	LinkURL     string
	UnlinkURL   string
	ListenAddr  string
}

func (c *Config) LoadDefaults() {
	if c.DownloadURL == "" {
		c.DownloadURL = "https://api.nickuc.com/v6/nlogin/addon/download"
	}
	if c.UploadURL == "" {
		c.UploadURL = "https://api.nickuc.com/v6/nlogin/addon/upload"
	}
	if c.LinkURL == "" {
		c.LinkURL = "https://www.nickuc.com/panel/addon/link"
	}
	if c.UnlinkURL == "" {
		c.UnlinkURL = "https://www.nickuc.com/panel/addon/unlink"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8047"
	}
}

// Result is the outcome of one synchronization. Code identifies one of the
// closed outcome set; Diagnostic carries the raw transport detail when no
// canonical code applies.
type Result struct {
	Code       message.Code
	Diagnostic string
}

// OK reports whether the synchronization fully succeeded.
func (r Result) OK() bool {
	return r.Diagnostic == "" && r.Code == message.ResponseValid
}

// Text resolves the result for display: the raw diagnostic when present,
// the translated code otherwise.
func (r Result) Text(p platform.Platform) string {
	if r.Diagnostic != "" {
		return r.Diagnostic
	}
	return r.Code.Text(p)
}

func diagnostic(op string, code int, detail any) Result {
	return Result{Diagnostic: fmt.Sprintf("%s %d %s", op, code, detail)}
}

// Manager runs the cloud key-set synchronization and the account linking
// flow. At most one Sync and at most one loopback listener run at a time;
// overlapping requests are dropped, not queued.
type Manager struct {
	cfg      Config
	platform platform.Platform
	store    *credentials.Store
	http     *httpClient
	log      logging.Logger

	syncing   atomic.Bool
	listening atomic.Bool
	uiBusy    atomic.Bool
}

func NewManager(cfg Config, p platform.Platform, store *credentials.Store, log logging.Logger) *Manager {
	cfg.LoadDefaults()
	return &Manager{
		cfg:      cfg,
		platform: p,
		store:    store,
		http:     newHTTPClient(),
		log:      log,
	}
}

// keysChecksum folds the sorted key set into one digest. Sorting first makes
// the digest independent of insertion order.
func keysChecksum(keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	acc := ""
	for _, key := range sorted {
		acc = cryptox.Hash(acc + key)
	}
	return acc
}

type keysDocument struct {
	Keys []string `json:"keys"`
}

// Sync downloads the remote key set, merges any new keys into the store,
// and uploads the merged set when local and remote state diverge. A second
// Sync while one is in flight is dropped.
func (m *Manager) Sync(token, email string) Result {
	if token == "" || email == "" {
		return Result{Code: message.ResponseInvalidTokenOrEmail}
	}
	if !m.syncing.CompareAndSwap(false, true) {
		m.log.Debug("dropping sync request: another one is already running")
		return Result{Code: message.SyncFailed}
	}
	defer m.syncing.Store(false)

	checksum := keysChecksum(m.store.Keys())
	url := m.cfg.DownloadURL
	if checksum != "" {
		url += "?checksum=" + checksum
	}

	code, body, err := m.http.get(url, token)
	if err != nil {
		return diagnostic("download", 0, err)
	}

	switch code {
	case 200, 201:
		// 200 means the remote state matches our checksum; 201 means it
		// diverged and must be re-uploaded after the merge.
		shouldUpload := code == 201

		m.store.SetLink(token, email)

		if len(body) > 0 {
			merged, failure := m.merge(body)
			if failure != nil {
				return *failure
			}
			if merged {
				shouldUpload = true
			}
		}

		if shouldUpload {
			if res := m.upload(token); !res.OK() {
				return res
			}
		}
		return Result{Code: message.ResponseValid}

	case 401:
		m.store.ClearLink()
		return Result{Code: message.ResponseInvalidCredentials}
	case 403:
		return Result{Code: message.ResponsePermissionDenied}
	case 429:
		return Result{Code: message.ResponseTooManyRequests}
	default:
		return diagnostic("download", code, body)
	}
}

// merge folds a downloaded body into the local key set. The first byte
// flags an encrypted payload; the rest is zlib-compressed JSON. It reports
// whether any new key was added; a non-nil failure aborts the sync.
func (m *Manager) merge(body []byte) (bool, *Result) {
	flag, payload := body[0], body[1:]

	if flag == flagEncrypted {
		password := m.store.EncryptionPassword()
		if password == "" {
			return false, &Result{Code: message.ResponseEncryptionPasswordRequired}
		}
		plain, err := cryptox.Decrypt(payload, password)
		if err != nil {
			m.log.Debug("cannot decrypt the downloaded key set", "err", err)
			return false, &Result{Code: message.ResponseEncryptionPasswordInvalid}
		}
		payload = plain
	}

	decompressed, err := decompress(payload)
	if err != nil {
		m.log.Debug("cannot decompress the downloaded key set", "err", err)
		return false, &Result{Code: message.ResponseCorruptedCompressedData}
	}

	var doc keysDocument
	if err := json.Unmarshal(decompressed, &doc); err != nil {
		m.log.Debug("cannot decode the downloaded key set", "err", err)
		return false, &Result{Code: message.ResponseMalformedData}
	}

	before := len(m.store.Keys())
	for _, key := range doc.Keys {
		m.store.AddKey(key)
	}
	return len(m.store.Keys()) != before, nil
}

// upload serializes the full local key set, compresses it, encrypts it when
// an encryption password is set, and POSTs it flag-byte first.
func (m *Manager) upload(token string) Result {
	keys := m.store.Keys()

	doc, err := json.Marshal(keysDocument{Keys: keys})
	if err != nil {
		return diagnostic("upload", 0, err)
	}

	payload, err := compress(doc)
	if err != nil {
		return diagnostic("upload", 0, err)
	}

	var flag byte
	if password := m.store.EncryptionPassword(); password != "" {
		encrypted, err := cryptox.Encrypt(payload, password)
		if err != nil {
			return diagnostic("upload", 0, err)
		}
		flag, payload = flagEncrypted, encrypted
	}

	body := make([]byte, 0, len(payload)+1)
	body = append(body, flag)
	body = append(body, payload...)

	url := m.cfg.UploadURL + "?checksum=" + keysChecksum(keys)
	code, respBody, err := m.http.post(url, token, body)
	if err != nil {
		return diagnostic("upload", 0, err)
	}

	switch code {
	case 200, 201:
		return Result{Code: message.ResponseValid}
	case 401:
		m.store.ClearLink()
		return Result{Code: message.ResponseInvalidCredentials}
	case 403:
		return Result{Code: message.ResponsePermissionDenied}
	case 429:
		return Result{Code: message.ResponseTooManyRequests}
	default:
		return diagnostic("upload", code, respBody)
	}
}

// HandleHTTPRequest answers one loopback callback from the web panel. The
// returned text becomes the plain-text response body shown in the browser.
func (m *Manager) HandleHTTPRequest(params map[string]string) string {
	action, token, email := params["action"], params["token"], params["email"]
	if action == "" || token == "" || email == "" {
		return message.HTTPInvalidRequest.Text(m.platform)
	}

	switch action {
	case "link":
		if m.store.LinkedToken() == token {
			return message.HTTPAlreadyLinked.Text(m.platform)
		}
		res := m.Sync(token, email)
		if res.OK() {
			return message.HTTPLinkSuccess.Text(m.platform)
		}
		return message.HTTPLinkFailed.Text(m.platform, res.Text(m.platform))

	case "unlink":
		linked := m.store.LinkedToken()
		if linked == "" {
			return message.HTTPNoLinkedAccounts.Text(m.platform)
		}
		if linked != token {
			return message.HTTPUnlinkTokenNotMatch.Text(m.platform)
		}
		m.store.ClearLink()
		return message.HTTPUnlinkSuccess.Text(m.platform)

	default:
		return "Unsupported action!"
	}
}

// LinkAccount is the settings-UI entry point for linking. When an account
// is already linked it just resynchronizes; otherwise it arms the loopback
// listener and sends the user to the panel.
func (m *Manager) LinkAccount() {
	if !m.uiBusy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.uiBusy.Store(false)

		if token := m.store.LinkedToken(); token != "" {
			res := m.Sync(token, m.store.LinkedEmail())
			if res.OK() {
				message.SyncSuccess.Notify(m.platform)
			} else {
				m.platform.ShowNotification(message.SyncFailed.Text(m.platform, res.Text(m.platform)))
			}
			return
		}

		m.ListenLocalHTTPRequests()
		m.platform.OpenURL(m.cfg.LinkURL)
	}()
}

// UnlinkAccount is the settings-UI entry point for unlinking: it arms the
// loopback listener and sends the user to the panel. The panel page needs
// the linked token so it can echo it back through the loopback callback.
func (m *Manager) UnlinkAccount() {
	if !m.uiBusy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.uiBusy.Store(false)

		token := m.store.LinkedToken()
		if token == "" {
			message.HTTPNoLinkedAccounts.Notify(m.platform)
			return
		}

		m.ListenLocalHTTPRequests()
		m.platform.OpenURL(m.unlinkPanelURL(token))
	}()
}

func (m *Manager) unlinkPanelURL(token string) string {
	return m.cfg.UnlinkURL + "?action=unlink&token=" + url.QueryEscape(token)
}
