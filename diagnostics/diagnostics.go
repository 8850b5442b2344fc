// Package diagnostics implements the optional connection-event store
// (SPEC_FULL.md §4.8): an append-only, disk-backed log of
// ConnectionEvents, plus a read-only status page rendered from
// Markdown (SPEC_FULL.md §4.10).
//
// This gives go.etcd.io/bbolt a job: it is a direct dependency of the
// teacher repository this kernel is grounded on, but the retrieved
// teacher source never actually imports it. It is scoped narrowly and
// deliberately: node ids, event kinds, timestamps, and a short detail
// string only — never actor ids, call ids, or envelope payloads, so it
// cannot be used to reconstruct application state or wire traffic,
// preserving the privacy posture of SPEC_FULL.md §7.
package diagnostics

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nodecrew/actorkernel/identity"
)

var eventsBucket = []byte("connection-events")

// ConnectionEvent is a single lifecycle transition record.
type ConnectionEvent struct {
	NodeID identity.NodeId `json:"nodeID"`
	Kind   string          `json:"kind"`
	At     time.Time       `json:"at"`
	Detail string          `json:"detail,omitempty"`
}

const (
	KindOpened      = "opened"
	KindClosing     = "closing"
	KindConnecting  = "connecting"
	KindReconnecting = "reconnecting"
	KindCancelled   = "cancelled"
)

// Store is a thin wrapper around a bbolt database holding
// ConnectionEvents in insertion order.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a ConnectionEvent.
func (s *Store) Record(e ConnectionEvent) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), bs)
	})
}

// Recent returns up to n of the most recently recorded events, newest
// first.
func (s *Store) Recent(n int) ([]ConnectionEvent, error) {
	var out []ConnectionEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e ConnectionEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
