package store

import (
	"encoding/json"
	"sync"
	"time"
)

// LedgerEntry is what the idempotency ledger remembers about a fingerprint.
type LedgerEntry struct {
	Kind       string          `json:"kind"`
	EntityID   uint32          `json:"entity_id"`
	Snapshot   json.RawMessage `json:"snapshot"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Ledger maps creation fingerprints to the entity they produced.
// With a zero limit entries live for the life of the process; otherwise the
// oldest fingerprint is evicted once the limit is reached.
type Ledger struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]LedgerEntry
	fifo    []string
}

func newLedger(limit int) *Ledger {
	return &Ledger{limit: limit, entries: make(map[string]LedgerEntry)}
}

// Check looks fp up. A found entry means the request is a duplicate.
func (l *Ledger) Check(fp string) (LedgerEntry, bool) {
	e, ok := l.entries[fp]
	return e, ok
}

// Record stores fp with the resulting entity's snapshot.
func (l *Ledger) Record(fp, kind string, entityID uint32, entity any, at time.Time) error {
	snap, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	if _, ok := l.entries[fp]; !ok {
		l.fifo = append(l.fifo, fp)
	}
	l.entries[fp] = LedgerEntry{Kind: kind, EntityID: entityID, Snapshot: snap, RecordedAt: at}

	for l.limit > 0 && len(l.fifo) > l.limit {
		oldest := l.fifo[0]
		l.fifo = l.fifo[1:]
		delete(l.entries, oldest)
	}
	return nil
}

// Len returns the number of remembered fingerprints.
func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) reset() {
	l.entries = make(map[string]LedgerEntry)
	l.fifo = nil
}
