package store

import (
	"sync"

	"github.com/hpungsan/keepsake/internal/capsule"
)

// MergeLog is the append-only history of completed merges.
type MergeLog struct {
	mu      sync.RWMutex
	records []capsule.MergeRecord
}

// Append adds rec to the end of the log.
func (m *MergeLog) Append(rec capsule.MergeRecord) {
	m.records = append(m.records, rec.Clone())
}

// List returns copies of every record in append order.
func (m *MergeLog) List() []capsule.MergeRecord {
	out := make([]capsule.MergeRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	return out
}

// Len returns the number of records.
func (m *MergeLog) Len() int {
	return len(m.records)
}
