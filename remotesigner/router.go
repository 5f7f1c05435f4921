package remotesigner

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/3yekn/coinstr/relay"
)

// RemoteSignerSession tracks one remote-signer ("nostr connect") peer: an
// app that has connected, the relay it connected over, the session key it
// will sign with, and an optional pre-authorization window during which
// requests are answered automatically instead of queued.
type RemoteSignerSession struct {
	AppPubkey     string
	RelayURL      string
	SessionPubkey string
	PreAuthUntil  time.Time // zero means never pre-authorized
}

// PreAuthorized reports whether the session's pre-authorization window
// covers now.
func (s *RemoteSignerSession) PreAuthorized(now time.Time) bool {
	return !s.PreAuthUntil.IsZero() && now.Before(s.PreAuthUntil)
}

// nip46Request is the message-boundary shape of an inbound NIP-46 request:
// only the fields needed for classification and response routing are
// modeled; the full signer protocol is deliberately not implemented here.
type nip46Request struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// PendingRequest is a request that arrived for a session without an active
// pre-authorization; queued until the user approves it out of band.
type PendingRequest struct {
	AppPubkey string
	EventID   string
	Request   nip46Request
	Timestamp time.Time
}

// ResponseSink publishes a NIP-46 response event back to the requesting
// app, a consumer-defined capability so this package doesn't need to own a
// relay connection itself.
type ResponseSink interface {
	RespondNostrConnect(appPubkey, requestID, result, errMessage string) error
}

// Router matches inbound NostrConnect events against the session/
// pre-authorization table and either answers automatically or queues the
// request, the Go rendering of sync.rs's NIP46Request match arm.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*RemoteSignerSession // keyed by app pubkey
	pending  []PendingRequest

	ourPubkeyHex  string
	privateKeyHex string
	resp          ResponseSink
	now           func() time.Time
}

// NewRouter constructs a Router that will decrypt/encrypt NIP-46 payloads
// under our own keypair and publish responses via resp.
func NewRouter(ourPubkeyHex, privateKeyHex string, resp ResponseSink) *Router {
	return &Router{
		sessions:      make(map[string]*RemoteSignerSession),
		ourPubkeyHex:  ourPubkeyHex,
		privateKeyHex: privateKeyHex,
		resp:          resp,
		now:           time.Now,
	}
}

// OpenSession registers (or replaces) a session for appPubkey.
func (r *Router) OpenSession(appPubkey, relayURL, sessionPubkey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[appPubkey] = &RemoteSignerSession{
		AppPubkey:     appPubkey,
		RelayURL:      relayURL,
		SessionPubkey: sessionPubkey,
	}
}

// PreAuthorize grants appPubkey's session standing authorization until
// until. The session must already be open.
func (r *Router) PreAuthorize(appPubkey string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[appPubkey]
	if !ok {
		return ErrSessionNotFound
	}
	s.PreAuthUntil = until
	return nil
}

// Session returns the session recorded for appPubkey, if any.
func (r *Router) Session(appPubkey string) (RemoteSignerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[appPubkey]
	if !ok {
		return RemoteSignerSession{}, false
	}
	return *s, true
}

// PendingRequests drains the FIFO of requests that arrived without an
// active pre-authorization.
func (r *Router) PendingRequests() []PendingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

// HandleNostrConnect implements relay.NostrConnectHandler: it decrypts the
// event, classifies the request, and either answers immediately (session
// pre-authorized and method is one we auto-serve) or queues it.
func (r *Router) HandleNostrConnect(ev *relay.Event) error {
	appPubkey := ev.PubKey

	r.mu.RLock()
	session, known := r.sessions[appPubkey]
	r.mu.RUnlock()
	if !known {
		// The first request of any method from an unknown app opens the
		// session implicitly.
		r.OpenSession(appPubkey, "", "")
	}

	plaintext, err := relay.Nip04Decrypt(r.privateKeyHex, appPubkey, ev.Content)
	if err != nil {
		return err
	}
	var req nip46Request
	if err := json.Unmarshal([]byte(plaintext), &req); err != nil {
		return relay.ErrMalformedEvent
	}

	authorized := known && session.PreAuthorized(r.now())

	switch req.Method {
	case "connect":
		return r.reply(appPubkey, req.ID, "ack", "")
	case "get_public_key":
		return r.reply(appPubkey, req.ID, r.ourPubkeyHex, "")
	case "disconnect":
		r.mu.Lock()
		delete(r.sessions, appPubkey)
		r.mu.Unlock()
		return r.reply(appPubkey, req.ID, "ack", "")
	default:
		if !authorized {
			r.mu.Lock()
			r.pending = append(r.pending, PendingRequest{
				AppPubkey: appPubkey,
				EventID:   ev.ID,
				Request:   req,
				Timestamp: r.now(),
			})
			r.mu.Unlock()
			return nil
		}
		// Signing methods (sign_event, sign_schnorr, ...) are deliberately
		// not implemented beyond their message boundary; an authorized
		// session gets an ErrUnsupportedMethod error reply here.
		return r.reply(appPubkey, req.ID, "", ErrUnsupportedMethod.Error())
	}
}

func (r *Router) reply(appPubkey, requestID, result, errMessage string) error {
	if r.resp == nil {
		return nil
	}
	return r.resp.RespondNostrConnect(appPubkey, requestID, result, errMessage)
}
