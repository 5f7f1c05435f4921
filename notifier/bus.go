package notifier

import (
	"sync"

	"github.com/3yekn/coinstr/vaultdb"
)

// subscriberBuffer is how many notifications a subscriber channel holds
// before Publish starts dropping its oldest buffered message, so one slow
// consumer never blocks the dispatcher that's publishing.
const subscriberBuffer = 32

// subscription is one registered consumer's dedicated channel, the same
// per-subscriber-channel shape as lnwallet.TransactionSubscription's
// ConfirmedTransactions/UnconfirmedTransactions, generalized here from
// point-to-point delivery to broadcast fan-out (every subscriber gets every
// notification, instead of one subscriber owning one wallet's stream).
type subscription struct {
	id uint64
	ch chan vaultdb.Notification
}

// Bus fans state-change notifications (C9) out to every subscribed
// consumer. Subscribers may disappear at any time; Publish never blocks on
// a slow or abandoned one.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Subscribe registers a new consumer and returns its channel plus a cancel
// function that unregisters it, mirroring TransactionSubscription.Cancel.
func (b *Bus) Subscribe() (<-chan vaultdb.Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{id: id, ch: make(chan vaultdb.Notification, subscriberBuffer)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			close(s.ch)
			delete(b.subs, id)
		}
	}
	return sub.ch, cancel
}

// Publish fans n out to every current subscriber. A subscriber whose
// buffer is full has its single oldest message dropped to make room,
// rather than blocking the publisher or silently dropping the new one.
func (b *Bus) Publish(n vaultdb.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- n:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- n:
			default:
				log.Warnf("notifier: dropping notification for a stalled subscriber: %s", n.String())
			}
		}
	}
}

// Notify satisfies walletmgr.ProgressNotifier: a free-text progress message
// is wrapped as a NewPolicy-less, message-only notification's log line
// rather than pushed through the typed Notification channel, since
// per-vault sync progress isn't one of the store's NotificationKind
// variants.
func (b *Bus) Notify(message string) {
	log.Infof("notifier: %s", message)
}

// Len reports the current number of live subscribers, mostly useful for
// tests and diagnostics.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
