package vaultdb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names for the persistent on-disk layout. Only their names are
// reserved here for keychain — seed-encryption-at-rest is out of scope and
// nothing is ever written to it by this package.
const (
	bucketKeychain       = "keychain"
	bucketEvents         = "events"
	bucketProposals      = "proposals"
	bucketPendingEvents  = "pending_events"
	bucketNotifications  = "notifications"
	bucketLastRelaySync  = "last_relay_sync"
)

var allBuckets = []string{
	bucketKeychain,
	bucketEvents,
	bucketProposals,
	bucketPendingEvents,
	bucketNotifications,
	bucketLastRelaySync,
}

// Persister backs the event log and notification history with an embedded
// bbolt database, giving the named on-disk layout a concrete store
// without inventing a new format. The in-memory Store remains the
// source of truth for active lookups; Persister exists for durability and
// crash recovery (event idempotence by id, the last-sync watermark, and
// pending-event FIFO order all need to survive a restart).
type Persister struct {
	db *bbolt.DB
}

// OpenPersister opens (creating if necessary) a bbolt database at path and
// ensures every named bucket exists.
func OpenPersister(path string) (*Persister, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("vaultdb: opening bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("vaultdb: initializing buckets: %w", err)
	}

	return &Persister{db: db}, nil
}

// Close closes the underlying database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// PutEvent records a raw event under the events bucket, keyed by event id.
// Writing the same id twice is a no-op overwrite — the event-idempotence
// invariant is enforced by the caller checking presence first via HasEvent.
func (p *Persister) PutEvent(id string, raw []byte) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketEvents)).Put([]byte(id), raw)
	})
}

// HasEvent reports whether an event id has already been persisted.
func (p *Persister) HasEvent(id string) bool {
	var found bool
	_ = p.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(bucketEvents)).Get([]byte(id)) != nil
		return nil
	})
	return found
}

// DeleteEvent removes a persisted event; idempotent.
func (p *Persister) DeleteEvent(id string) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketEvents)).Delete([]byte(id))
	})
}

// PutPendingEvent appends a pending event, keyed so that lexicographic
// iteration preserves FIFO order (caller supplies a monotonically
// increasing sequence-prefixed key).
func (p *Persister) PutPendingEvent(key string, ev PendingEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketPendingEvents)).Put([]byte(key), raw)
	})
}

// DrainPendingEvents returns every pending event in key order and deletes
// them all in the same transaction.
func (p *Persister) DrainPendingEvents() ([]PendingEvent, error) {
	var out []PendingEvent
	err := p.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketPendingEvents))
		c := b.Cursor()
		var keys [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ev PendingEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// PutLastSync persists the EOSE watermark for relayURL.
func (p *Persister) PutLastSync(relayURL string, ts time.Time) error {
	raw, err := ts.MarshalBinary()
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketLastRelaySync)).Put([]byte(relayURL), raw)
	})
}

// GetLastSync reads the persisted EOSE watermark for relayURL, the zero
// time if none is recorded.
func (p *Persister) GetLastSync(relayURL string) (time.Time, error) {
	var ts time.Time
	err := p.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketLastRelaySync)).Get([]byte(relayURL))
		if raw == nil {
			return nil
		}
		return ts.UnmarshalBinary(raw)
	})
	return ts, err
}

// PutNotification appends a notification record, keyed by a caller-supplied
// monotonically increasing sequence key so iteration order matches emission
// order.
func (p *Persister) PutNotification(key string, n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketNotifications)).Put([]byte(key), raw)
	})
}
