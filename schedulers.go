package coinstr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/3yekn/coinstr/relay"
)

// runTimechainSync periodically refreshes every loaded vault's watch-only
// wallet against Electrum, and also fires immediately whenever the store
// flags a vault for an out-of-band sync (SaveCompletedProposal's 600-second
// window), the Go rendering of sync.rs's sync_with_timechain abortable
// loop plus its "bump" signal.
func (m *Manager) runTimechainSync(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TimechainSyncInterval)
	defer ticker.Stop()
	bump := time.NewTicker(time.Second)
	defer bump.Stop()

	sync := func() {
		if err := m.Wallets.SyncWithTimechain(ctx, m.cfg.ElectrumEndpoint,
			m.cfg.ElectrumUseTLS, m.cfg.ElectrumSocksProxy, m.Notifier); err != nil {
			schdLog.Warnf("timechain sync: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		case <-bump.C:
			if len(m.Store.PendingImmediateSync()) > 0 {
				sync()
			}
		}
	}
}

// runPendingEventRedrive drains the store's FIFO of parked events and
// re-dispatches each one, so an event that arrived before its shared key
// (or referenced policy, or proposal) eventually gets applied once that
// dependency shows up, without the dispatcher itself needing to poll.
func (m *Manager) runPendingEventRedrive(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PendingEventRedriveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pending := range m.Store.GetPendingEvents() {
				var ev relay.Event
				if err := json.Unmarshal(pending.Raw, &ev); err != nil {
					schdLog.Errorf("pending event redrive: malformed event %s: %v", pending.ID, err)
					continue
				}
				if err := m.Dispatch.HandleEvent(&ev); err != nil {
					schdLog.Warnf("pending event redrive: %s: %v", pending.ID, err)
				}
			}
		}
	}
}

// runMetadataSync enumerates contact pubkeys with no known profile and
// issues one batched Metadata-kind request for all of them, timeout scaled
// to the batch size. Actually putting the request on the wire requires a
// Transport to have been wired with SetTransport; until then the request
// is still built and logged, a known gap rather than a silent no-op.
func (m *Manager) runMetadataSync(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MetadataSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.syncMetadata()
		}
	}
}

func (m *Manager) syncMetadata() {
	pubkeys := m.Dispatch.UnsyncedProfiles()
	filter, timeout, ok := relay.BuildMetadataRequest(pubkeys)
	if !ok {
		schdLog.Debugf("metadata sync: no unsynced profiles")
		return
	}

	m.mu.Lock()
	transport := m.Transport
	m.mu.Unlock()
	if transport == nil {
		schdLog.Warnf("metadata sync: request for %d profiles built but not sent: no relay transport wired", len(pubkeys))
		return
	}
	for _, url := range m.cfg.RelayURLs {
		if err := transport.Request(url, filter, timeout); err != nil {
			schdLog.Warnf("metadata sync: requesting %d profiles from %s: %v", len(pubkeys), url, err)
		}
	}
}

// runRebroadcaster ticks every RebroadcastInterval and logs a debug line
// per tick; it does not re-publish any event.
func (m *Manager) runRebroadcaster(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RebroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schdLog.Debugf("rebroadcast tick")
		}
	}
}
