package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/keepsake/internal/capsule"
)

// Scope selects the shared resources a unit of work touches.
type Scope uint8

// Bits are declared in the canonical lock order. Every unit of work acquires
// its guards lowest bit first and releases them in reverse, so two units of
// work can never wait on each other in a cycle.
const (
	ScopeContributors Scope = 1 << iota
	ScopeCapsules
	ScopeItems
	ScopeLedger
	ScopeMerges

	ScopeAll = ScopeContributors | ScopeCapsules | ScopeItems | ScopeLedger | ScopeMerges
)

func (s Scope) String() string {
	var parts []string
	for _, g := range []struct {
		bit  Scope
		name string
	}{
		{ScopeContributors, "contributors"},
		{ScopeCapsules, "capsules"},
		{ScopeItems, "items"},
		{ScopeLedger, "ledger"},
		{ScopeMerges, "merges"},
	} {
		if s&g.bit != 0 {
			parts = append(parts, g.name)
		}
	}
	return strings.Join(parts, "|")
}

// Store owns the three entity collections, the idempotency ledger and the merge log.
// It is safe for concurrent use; all access goes through Update or View.
type Store struct {
	contributors *Collection[capsule.Contributor]
	capsules     *Collection[capsule.Capsule]
	items        *Collection[capsule.Item]
	ledger       *Ledger
	merges       *MergeLog
	clock        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and window checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

// WithLedgerLimit bounds the idempotency ledger to n fingerprints (0 = unbounded).
func WithLedgerLimit(n int) Option {
	return func(s *Store) { s.ledger.limit = n }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		contributors: newCollection("contributors",
			func(c *capsule.Contributor) uint32 { return c.ID }, capsule.Contributor.Clone),
		capsules: newCollection("capsules",
			func(c *capsule.Capsule) uint32 { return c.ID }, capsule.Capsule.Clone),
		items: newCollection("items",
			func(i *capsule.Item) uint32 { return i.ID }, capsule.Item.Clone),
		ledger: newLedger(0),
		merges: &MergeLog{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock's current time in UTC.
func (s *Store) Now() time.Time {
	return s.clock().UTC()
}

// Update runs fn with exclusive access to every resource in scope.
// fn must check all of its preconditions before its first mutation; there is no rollback.
func (s *Store) Update(scope Scope, fn func(*Tx) error) error {
	release := s.acquire(scope, true)
	defer release()
	return fn(&Tx{s: s, scope: scope})
}

// View runs fn with shared access to every resource in scope.
func (s *Store) View(scope Scope, fn func(*ReadTx) error) error {
	release := s.acquire(scope, false)
	defer release()
	return fn(&ReadTx{s: s, scope: scope})
}

func (s *Store) guards() []struct {
	bit Scope
	mu  *sync.RWMutex
} {
	return []struct {
		bit Scope
		mu  *sync.RWMutex
	}{
		{ScopeContributors, &s.contributors.mu},
		{ScopeCapsules, &s.capsules.mu},
		{ScopeItems, &s.items.mu},
		{ScopeLedger, &s.ledger.mu},
		{ScopeMerges, &s.merges.mu},
	}
}

func (s *Store) acquire(scope Scope, write bool) func() {
	held := make([]*sync.RWMutex, 0, 5)
	for _, g := range s.guards() {
		if scope&g.bit == 0 {
			continue
		}
		if write {
			g.mu.Lock()
		} else {
			g.mu.RLock()
		}
		held = append(held, g.mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			if write {
				held[i].Unlock()
			} else {
				held[i].RUnlock()
			}
		}
	}
}

// Tx is the handle passed to Update. Accessors panic when the resource is
// outside the unit of work's scope, since that would bypass the lock order.
type Tx struct {
	s     *Store
	scope Scope
}

func (tx *Tx) require(bit Scope) {
	if tx.scope&bit == 0 {
		panic(fmt.Sprintf("store: %s accessed outside unit of work scope %s", bit, tx.scope))
	}
}

// Now returns the store clock's current time.
func (tx *Tx) Now() time.Time { return tx.s.Now() }

// Contributors returns the contributor collection.
func (tx *Tx) Contributors() *Collection[capsule.Contributor] {
	tx.require(ScopeContributors)
	return tx.s.contributors
}

// Capsules returns the capsule collection.
func (tx *Tx) Capsules() *Collection[capsule.Capsule] {
	tx.require(ScopeCapsules)
	return tx.s.capsules
}

// Items returns the item collection.
func (tx *Tx) Items() *Collection[capsule.Item] {
	tx.require(ScopeItems)
	return tx.s.items
}

// Ledger returns the idempotency ledger.
func (tx *Tx) Ledger() *Ledger {
	tx.require(ScopeLedger)
	return tx.s.ledger
}

// Merges returns the merge log.
func (tx *Tx) Merges() *MergeLog {
	tx.require(ScopeMerges)
	return tx.s.merges
}

// ReadTx is the handle passed to View.
type ReadTx struct {
	s     *Store
	scope Scope
}

func (tx *ReadTx) require(bit Scope) {
	if tx.scope&bit == 0 {
		panic(fmt.Sprintf("store: %s read outside view scope %s", bit, tx.scope))
	}
}

// Now returns the store clock's current time.
func (tx *ReadTx) Now() time.Time { return tx.s.Now() }

// Contributors returns a read-only view of the contributor collection.
func (tx *ReadTx) Contributors() Reader[capsule.Contributor] {
	tx.require(ScopeContributors)
	return tx.s.contributors
}

// Capsules returns a read-only view of the capsule collection.
func (tx *ReadTx) Capsules() Reader[capsule.Capsule] {
	tx.require(ScopeCapsules)
	return tx.s.capsules
}

// Items returns a read-only view of the item collection.
func (tx *ReadTx) Items() Reader[capsule.Item] {
	tx.require(ScopeItems)
	return tx.s.items
}

// LedgerLen returns the number of remembered fingerprints.
func (tx *ReadTx) LedgerLen() int {
	tx.require(ScopeLedger)
	return tx.s.ledger.Len()
}

// MergeRecords returns copies of every merge record in append order.
func (tx *ReadTx) MergeRecords() []capsule.MergeRecord {
	tx.require(ScopeMerges)
	return tx.s.merges.List()
}

// MergeLen returns the number of merge records.
func (tx *ReadTx) MergeLen() int {
	tx.require(ScopeMerges)
	return tx.s.merges.Len()
}
