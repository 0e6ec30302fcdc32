package handler

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickuc/nlogin-addon/internal/credentials"
	"github.com/nickuc/nlogin-addon/internal/cryptox"
	"github.com/nickuc/nlogin-addon/internal/logging"
	"github.com/nickuc/nlogin-addon/internal/packet"
	"github.com/nickuc/nlogin-addon/internal/platform"
	"github.com/nickuc/nlogin-addon/internal/session"
)

type fakeSettings struct {
	enabled            bool
	debug              bool
	saveLogin          bool
	syncPasswords      bool
	encryptionPassword string
}

func (s *fakeSettings) Enabled() bool              { return s.enabled }
func (s *fakeSettings) Debug() bool                { return s.debug }
func (s *fakeSettings) EncryptionPassword() string { return s.encryptionPassword }
func (s *fakeSettings) SaveLogin() bool            { return s.saveLogin }
func (s *fakeSettings) SyncPasswords() bool        { return s.syncPasswords }
func (s *fakeSettings) Init(string, func(), func()) {}

type fakePlatform struct {
	settings *fakeSettings

	packets       []packet.Outgoing
	chats         []string
	displayed     []string
	notifications []string
	errs          []error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{settings: &fakeSettings{enabled: true, saveLogin: true, syncPasswords: true}}
}

func (p *fakePlatform) Enabled() bool               { return p.settings.enabled }
func (p *fakePlatform) Settings() platform.Settings { return p.settings }

func (p *fakePlatform) SettingsDirectory() string { return "" }
func (p *fakePlatform) Translate(key string, params ...any) string {
	return key
}
func (p *fakePlatform) SendRequest(out packet.Outgoing) { p.packets = append(p.packets, out) }
func (p *fakePlatform) SendMessage(text string)         { p.chats = append(p.chats, text) }
func (p *fakePlatform) DisplayMessage(text string)      { p.displayed = append(p.displayed, text) }
func (p *fakePlatform) ShowNotification(text string) {
	p.notifications = append(p.notifications, text)
}
func (p *fakePlatform) OpenURL(string)            {}
func (p *fakePlatform) Info(string)               {}
func (p *fakePlatform) Error(msg string, err error) { p.errs = append(p.errs, err) }

func nopLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fixture struct {
	platform *fakePlatform
	store    *credentials.Store
	sessions *session.Manager
	packets  *PacketHandler
	events   *EventHandler
}

func newFixture() *fixture {
	p := newFakePlatform()
	store := credentials.NewStore()
	sessions := session.NewManager()
	ph := NewPacketHandler(p, store, sessions, nopLogger())
	ev := NewEventHandler(p, sessions, NewRegistry(ph), nopLogger())
	return &fixture{platform: p, store: store, sessions: sessions, packets: ph, events: ev}
}

func rawSign(key *rsa.PrivateKey, block []byte) []byte {
	m := new(big.Int).SetBytes(block)
	return new(big.Int).Exp(m, key.D, key.N).Bytes()
}

func readyPacket(t *testing.T, serverID, userID uuid.UUID, key *rsa.PublicKey, signature []byte, registered, requireSync bool) *packet.Ready {
	t.Helper()
	return &packet.Ready{
		ServerID:       serverID,
		UserID:         userID,
		UserRegistered: registered,
		RequireSync:    registered && requireSync,
		Key:            key,
		KeyDER:         cryptox.EncodePublicKey(key),
		Signature:      signature,
	}
}

func TestHandleJoin_SendsHandshake(t *testing.T) {
	f := newFixture()

	f.events.HandleJoin()

	s := f.sessions.Current()
	require.NotNil(t, s)
	assert.Len(t, s.Challenge(), 4)

	require.Len(t, f.platform.packets, 1)
	hs, ok := f.platform.packets[0].(*packet.Handshake)
	require.True(t, ok)
	assert.Equal(t, s.Challenge(), hs.Challenge)
}

func TestHandleJoin_DisabledIsNoOp(t *testing.T) {
	f := newFixture()
	f.platform.settings.enabled = false

	f.events.HandleJoin()

	assert.Nil(t, f.sessions.Current())
	assert.Empty(t, f.platform.packets)
}

func TestHandleChat_CapturesAuthPassword(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	assert.False(t, f.events.HandleChat("/LOGIN hunter2"))
	assert.Equal(t, "hunter2", f.sessions.Current().PlainPassword())

	assert.False(t, f.events.HandleChat("/whisper somebody hi"))
	assert.Equal(t, "hunter2", f.sessions.Current().PlainPassword())

	assert.False(t, f.events.HandleChat("plain chat"))
}

func TestHandleChat_RequiresSaveLogin(t *testing.T) {
	f := newFixture()
	f.platform.settings.saveLogin = false
	f.events.HandleJoin()

	f.events.HandleChat("/login hunter2")
	assert.Empty(t, f.sessions.Current().PlainPassword())
}

func TestHandleReady_TrustOnFirstUse_Register(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	// Garbage signature: verification must still pass for an unknown pair.
	f.packets.HandleReady(readyPacket(t, serverID, userID, &priv.PublicKey, []byte{9, 9, 9}, false, false))

	require.Len(t, f.platform.chats, 1)
	parts := strings.Split(f.platform.chats[0], " ")
	require.Len(t, parts, 3)
	assert.Equal(t, "/register", parts[0])
	assert.Equal(t, parts[1], parts[2])
	assert.Len(t, parts[1], 12)

	srv, ok := f.store.User(userID).Server(serverID)
	require.True(t, ok)
	assert.Equal(t, parts[1], srv.Password)
	assert.True(t, f.sessions.Current().SyncRequired())
	assert.True(t, f.sessions.Current().ServerBound())
}

func TestHandleReady_StoredKeyValidSignature_Login(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	f.store.User(userID).UpdateServer(serverID, &priv.PublicKey, "stored-pw")

	signature := rawSign(priv, f.sessions.Current().Challenge())
	f.packets.HandleReady(readyPacket(t, serverID, userID, &priv.PublicKey, signature, true, false))

	require.Len(t, f.platform.chats, 1)
	assert.Equal(t, "/login stored-pw", f.platform.chats[0])
}

func TestHandleReady_StoredKeyBadSignature_Rejected(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	f.store.User(userID).UpdateServer(serverID, &priv.PublicKey, "stored-pw")

	signature := rawSign(priv, []byte{1, 2, 3, 5})
	f.packets.HandleReady(readyPacket(t, serverID, userID, &priv.PublicKey, signature, true, false))

	assert.Empty(t, f.platform.chats)
	require.Len(t, f.platform.notifications, 1)
	assert.Equal(t, "autologin.invalidSignature", f.platform.notifications[0])
}

func TestHandleReady_DifferentKey_Rejected(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	stored, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	remote, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	f.store.User(userID).UpdateServer(serverID, &stored.PublicKey, "stored-pw")

	signature := rawSign(remote, f.sessions.Current().Challenge())
	f.packets.HandleReady(readyPacket(t, serverID, userID, &remote.PublicKey, signature, true, false))

	assert.Empty(t, f.platform.chats)
	require.Len(t, f.platform.notifications, 1)
	assert.Equal(t, "autologin.invalidSignature", f.platform.notifications[0])
}

func TestHandleReady_RegisteredWithoutRecord_RequestsSync(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f.packets.HandleReady(readyPacket(t, uuid.New(), uuid.New(), &priv.PublicKey, nil, true, true))

	assert.Empty(t, f.platform.chats)
	// handshake + sync request
	require.Len(t, f.platform.packets, 2)
	_, ok := f.platform.packets[1].(*packet.SyncRequest)
	assert.True(t, ok)
	// no cloud link: linking is recommended
	require.NotEmpty(t, f.platform.notifications)
	assert.Equal(t, "password.recommendLink", f.platform.notifications[0])
}

func TestRegisterThenLoginSuccessful_Uploads(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	f.packets.HandleReady(readyPacket(t, serverID, userID, &priv.PublicKey, nil, false, false))
	require.Len(t, f.platform.chats, 1)
	password := strings.Split(f.platform.chats[0], " ")[1]

	f.packets.HandleServerStatus(&packet.ServerStatus{Status: packet.StatusLoginSuccessful})

	require.Len(t, f.platform.packets, 2) // handshake + sync-data upload
	up, ok := f.platform.packets[1].(*packet.OutgoingSyncData)
	require.True(t, ok)

	mainKey := f.store.MainKey()
	assert.True(t, cryptox.Checksum(mainKey+up.Data, up.Checksum))

	plain, err := cryptox.DecryptFromBase64(up.Data, mainKey)
	require.NoError(t, err)
	srv, err := credentials.DecodeServer([]byte(plain))
	require.NoError(t, err)
	assert.Equal(t, serverID, srv.ID)
	assert.Equal(t, password, srv.Password)
}

func TestLoginSuccessful_CapturedPassword_SavesAndUploads(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serverID, userID := uuid.New(), uuid.New()
	s := f.sessions.Current()
	s.Init(serverID, userID, &priv.PublicKey)

	f.events.HandleChat("/login typed-by-hand")
	f.packets.HandleServerStatus(&packet.ServerStatus{Status: packet.StatusLoginSuccessful})

	srv, ok := f.store.User(userID).Server(serverID)
	require.True(t, ok)
	assert.Equal(t, "typed-by-hand", srv.Password)

	require.Len(t, f.platform.packets, 2)
	_, ok = f.platform.packets[1].(*packet.OutgoingSyncData)
	assert.True(t, ok)
	assert.Contains(t, f.platform.notifications, "password.saving")
}

func TestRejectedStatuses_AreLoggedOnly(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	for _, status := range []packet.Status{
		packet.StatusRSAChallengeRejected,
		packet.StatusSyncRequestRejected,
		packet.StatusChecksumRejected,
		packet.StatusUnknown,
	} {
		f.packets.HandleServerStatus(&packet.ServerStatus{Status: status})
	}

	assert.Empty(t, f.platform.chats)
	assert.Len(t, f.platform.packets, 1) // only the handshake
	assert.False(t, f.sessions.Current().Authenticated())
}

func TestHandleSyncData_SelectsMatchingKey(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	serverID, userID := uuid.New(), uuid.New()
	f.sessions.Current().Init(serverID, userID, nil)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	record := credentials.Server{ID: serverID, Key: &priv.PublicKey, Password: "synced-pw"}
	payload, err := credentials.EncodeServer(record)
	require.NoError(t, err)

	keyA, keyB := cryptox.Key(), cryptox.Key()
	f.store.AddKey(keyA)
	f.store.AddKey(keyB)

	data, err := cryptox.EncryptToBase64(string(payload), keyB)
	require.NoError(t, err)

	f.packets.HandleSyncData(&packet.SyncData{Data: data, Checksum: cryptox.Hash(keyB + data)})

	srv, ok := f.store.User(userID).Server(record.ID)
	require.True(t, ok)
	assert.Equal(t, "synced-pw", srv.Password)
	assert.True(t, f.sessions.Current().SyncRequired())
	assert.True(t, f.sessions.Current().ServerBound())
	assert.Contains(t, f.platform.chats, "/login synced-pw")
	assert.Contains(t, f.platform.notifications, "backup.downloadingData")
}

func TestHandleSyncData_ForeignServerIDDoesNotBind(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	serverID, userID := uuid.New(), uuid.New()
	f.sessions.Current().Init(serverID, userID, nil)

	record := credentials.Server{ID: uuid.New(), Password: "other-pw"}
	payload, err := credentials.EncodeServer(record)
	require.NoError(t, err)

	key := cryptox.Key()
	f.store.AddKey(key)
	data, err := cryptox.EncryptToBase64(string(payload), key)
	require.NoError(t, err)

	f.packets.HandleSyncData(&packet.SyncData{Data: data, Checksum: cryptox.Hash(key + data)})

	// The record is kept, but it is not this server's: the session stays
	// unbound so the login-successful path will not look it up and miss.
	_, ok := f.store.User(userID).Server(record.ID)
	assert.True(t, ok)
	assert.False(t, f.sessions.Current().ServerBound())
	assert.False(t, f.sessions.Current().SyncRequired())

	f.packets.HandleServerStatus(&packet.ServerStatus{Status: packet.StatusLoginSuccessful})
	assert.Len(t, f.platform.packets, 1, "no upload for a record that is not this server's")
}

func TestHandleSyncData_NoMatchingKey(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()
	f.store.AddKey(cryptox.Key())

	f.packets.HandleSyncData(&packet.SyncData{Data: "aGVsbG8=", Checksum: "0000"})

	assert.Empty(t, f.platform.chats)
	assert.Contains(t, f.platform.notifications, "backup.invalidPassword")
}

func TestHandleSyncData_CorruptedCiphertext(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	key := cryptox.Key()
	f.store.AddKey(key)

	data := base64.StdEncoding.EncodeToString([]byte("too short"))
	f.packets.HandleSyncData(&packet.SyncData{Data: data, Checksum: cryptox.Hash(key + data)})

	assert.Contains(t, f.platform.notifications, "backup.corrupted")
}

func TestHandleSyncData_MalformedPlaintext(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	key := cryptox.Key()
	f.store.AddKey(key)

	data, err := cryptox.EncryptToBase64("not a server record", key)
	require.NoError(t, err)
	f.packets.HandleSyncData(&packet.SyncData{Data: data, Checksum: cryptox.Hash(key + data)})

	assert.Contains(t, f.platform.notifications, "backup.malformed")
}

func TestHandleCustomPayload_UnknownIDDropped(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	f.events.HandleCustomPayload([]byte(`{"id": 42, "data": {}}`))
	f.events.HandleCustomPayload([]byte(`not json`))
	f.events.HandleCustomPayload([]byte(`{"data": {}}`))

	assert.Empty(t, f.platform.chats)
}

func TestHandleCustomPayload_ReadyWithoutKey_NotifiesInvalidSignature(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	data := fmt.Sprintf(`{
		"server-id": %q,
		"user-id": %q,
		"client": {"user-registered": true, "require-sync": false},
		"challenge": {"key": "bm90IGEga2V5", "signature": ""}
	}`, uuid.New(), uuid.New())
	env, err := json.Marshal(packet.Envelope{ID: packet.IDReady, Data: json.RawMessage(data)})
	require.NoError(t, err)

	f.events.HandleCustomPayload(env)

	assert.Contains(t, f.platform.notifications, "autologin.invalidSignature")
	assert.Empty(t, f.platform.chats)
}

func TestHandleCustomPayload_DispatchesServerStatus(t *testing.T) {
	f := newFixture()
	f.events.HandleJoin()

	env, err := json.Marshal(packet.Envelope{ID: packet.IDServerStatus, Data: json.RawMessage(`{"code": 0}`)})
	require.NoError(t, err)
	f.events.HandleCustomPayload(env)

	assert.True(t, f.sessions.Current().Authenticated())
}
