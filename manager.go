package coinstr

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/3yekn/coinstr/notifier"
	"github.com/3yekn/coinstr/relay"
	"github.com/3yekn/coinstr/remotesigner"
	"github.com/3yekn/coinstr/vaultdb"
	"github.com/3yekn/coinstr/walletmgr"
)

// Manager owns one instance of every subsystem (C1-C9) and wires them
// together, the way a root daemon package wires chain backends, the
// wallet, and the server together behind one type.
type Manager struct {
	cfg Config

	Store    *vaultdb.Store
	Signers  *vaultdb.SignerStore
	Wallets  *walletmgr.Manager
	Notifier *notifier.Bus
	Router   *remotesigner.Router
	Dispatch *relay.Dispatcher
	Persist  *vaultdb.Persister

	// Transport is the live relay connection set. It is nil until the
	// caller wires one in with SetTransport: this package never dials a
	// relay itself (see DESIGN.md). Until it is set, RespondNostrConnect
	// and runMetadataSync build their outbound events/requests but cannot
	// actually put them on the wire, and log that fact instead of
	// silently dropping them.
	Transport relay.Publisher

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// SetTransport wires the live relay connection set used to actually publish
// outbound events and requests.
func (m *Manager) SetTransport(t relay.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transport = t
}

// NewManager wires C1-C9 against cfg. persist may be nil if the caller does
// not want bbolt-backed persistence (e.g. tests).
func NewManager(cfg Config, persist *vaultdb.Persister) *Manager {
	store := vaultdb.New()
	signers := vaultdb.NewSignerStore()
	bus := notifier.New()
	wallets := walletmgr.NewManager()

	m := &Manager{
		cfg:      cfg,
		Store:    store,
		Signers:  signers,
		Wallets:  wallets,
		Notifier: bus,
		Persist:  persist,
	}

	m.Router = remotesigner.NewRouter(cfg.PublicKeyHex, cfg.PrivateKeyHex, m)
	m.Dispatch = relay.NewDispatcher(store, signers, bus, m.Router, cfg.Network,
		cfg.PrivateKeyHex, cfg.PublicKeyHex)
	return m
}

// nip46Response is the NIP-46 JSON-RPC response shape: the request id it
// answers, plus exactly one of result/error.
type nip46Response struct {
	ID     string `json:"id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RespondNostrConnect implements remotesigner.ResponseSink: it builds the
// NIP-46 response event (NIP-04-encrypted to appPubkey, signed with our own
// key) and publishes it to the app's session relay. Publishing requires a
// Transport to have been wired with SetTransport; until then the event is
// still built but only logged, a known gap rather than a silent no-op.
func (m *Manager) RespondNostrConnect(appPubkey, requestID, result, errMessage string) error {
	payload, err := json.Marshal(nip46Response{ID: requestID, Result: result, Error: errMessage})
	if err != nil {
		return fmt.Errorf("coinstr: marshaling nostr connect response: %w", err)
	}
	ciphertext, err := relay.Nip04Encrypt(m.cfg.PrivateKeyHex, appPubkey, string(payload))
	if err != nil {
		return fmt.Errorf("coinstr: encrypting nostr connect response: %w", err)
	}

	ev := relay.Event{
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      int(relay.KindNostrConnect),
		Tags:      nostr.Tags{{"p", appPubkey}},
		Content:   ciphertext,
	}
	if err := relay.SignEvent(&ev, m.cfg.PrivateKeyHex); err != nil {
		return fmt.Errorf("coinstr: signing nostr connect response: %w", err)
	}

	session, known := m.Router.Session(appPubkey)
	m.mu.Lock()
	transport := m.Transport
	m.mu.Unlock()
	if !known || session.RelayURL == "" || transport == nil {
		mgrLog.Warnf("remote-signer response to %s for request %s built but not sent: no relay transport wired",
			appPubkey, requestID)
		return nil
	}
	return transport.Publish(session.RelayURL, ev)
}

// Run starts the four background schedulers (C7) and blocks until ctx is
// canceled or Stop is called. Concurrent calls to Run are rejected; this
// mirrors a chain-sync subsystem's single-flight guard pattern
// (started/stopped atomics) adapted to a plain bool guarded by a mutex
// since Manager has only one Run, not
// separately-startable subsystems.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); m.runTimechainSync(runCtx) }()
	go func() { defer wg.Done(); m.runPendingEventRedrive(runCtx) }()
	go func() { defer wg.Done(); m.runMetadataSync(runCtx) }()
	go func() { defer wg.Done(); m.runRebroadcaster(runCtx) }()
	wg.Wait()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return runCtx.Err()
}

// Stop cancels every running scheduler; Run returns once they've all
// unwound.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}
