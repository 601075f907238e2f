package store

import (
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/errors"
)

// Snapshot is a point-in-time copy of every collection, used for seeding and export.
type Snapshot struct {
	Contributors []capsule.Contributor `json:"contributors" yaml:"contributors"`
	Capsules     []capsule.Capsule     `json:"capsules" yaml:"capsules"`
	Items        []capsule.Item        `json:"items" yaml:"items"`
	Merges       []capsule.MergeRecord `json:"merges,omitempty" yaml:"merges,omitempty"`
}

// LoadReport summarizes what Load installed and what it dropped as orphaned.
type LoadReport struct {
	Contributors    int      `json:"contributors"`
	Capsules        int      `json:"capsules"`
	Items           int      `json:"items"`
	Merges          int      `json:"merges"`
	DroppedCapsules []uint32 `json:"dropped_capsules,omitempty"`
	DroppedItems    []uint32 `json:"dropped_items,omitempty"`
}

// Snapshot copies the whole store under shared locks.
func (s *Store) Snapshot() Snapshot {
	var snap Snapshot
	_ = s.View(ScopeAll, func(tx *ReadTx) error {
		snap = Snapshot{
			Contributors: tx.Contributors().List(),
			Capsules:     tx.Capsules().List(),
			Items:        tx.Items().List(),
			Merges:       tx.MergeRecords(),
		}
		return nil
	})
	return snap
}

// Load replaces the store's contents with snap and clears the idempotency ledger.
//
// Cross-reference id lists are rebuilt from the child side: a capsule is
// attached to the contributor its contributor_id names, and an item to the
// capsule its capsule_id names. Listed order is kept where it agrees with the
// child side. Capsules whose contributor is missing, and items whose capsule
// is missing, are dropped and reported. Duplicate ids and duplicate emails
// reject the whole snapshot, leaving the store untouched.
//
// Zero timestamps and versions are filled in: time_created and time_added
// default to now, time_open to time_created, time_until_changed to
// time_created plus window, version to 1.
func (s *Store) Load(snap Snapshot, window time.Duration) (*LoadReport, error) {
	now := s.Now()

	contributors := newCollection("contributors",
		func(c *capsule.Contributor) uint32 { return c.ID }, capsule.Contributor.Clone)
	capsules := newCollection("capsules",
		func(c *capsule.Capsule) uint32 { return c.ID }, capsule.Capsule.Clone)
	items := newCollection("items",
		func(i *capsule.Item) uint32 { return i.ID }, capsule.Item.Clone)
	report := &LoadReport{}

	emails := make(map[string]uint32)
	for _, c := range snap.Contributors {
		key := capsule.NormalizeEmail(c.Email)
		if other, ok := emails[key]; ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("contributors %d and %d share email %q", other, c.ID, c.Email))
		}
		emails[key] = c.ID
		if err := contributors.Put(c.Clone()); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	for _, c := range snap.Capsules {
		if !contributors.Has(c.ContributorID) {
			report.DroppedCapsules = append(report.DroppedCapsules, c.ID)
			continue
		}
		c = c.Clone()
		if c.TimeCreated.IsZero() {
			c.TimeCreated = now
		}
		if c.TimeOpen.IsZero() {
			c.TimeOpen = c.TimeCreated
		}
		if c.TimeUntilChanged.IsZero() {
			c.TimeUntilChanged = c.TimeCreated.Add(window)
		}
		if c.Version == 0 {
			c.Version = 1
		}
		if err := capsules.Put(c); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	for _, it := range snap.Items {
		if !capsules.Has(it.CapsuleID) {
			report.DroppedItems = append(report.DroppedItems, it.ID)
			continue
		}
		it = it.Clone()
		if it.TimeAdded.IsZero() {
			it.TimeAdded = now
		}
		if it.Version == 0 {
			it.Version = 1
		}
		if err := items.Put(it); err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	children := make(map[uint32][]uint32)
	items.Each(func(it capsule.Item) bool {
		children[it.CapsuleID] = append(children[it.CapsuleID], it.ID)
		return true
	})
	for _, c := range capsules.List() {
		capsules.Update(c.ID, func(rec *capsule.Capsule) {
			rec.ItemIDs = reconcile(rec.ItemIDs, children[rec.ID])
		})
	}

	owned := make(map[uint32][]uint32)
	capsules.Each(func(c capsule.Capsule) bool {
		owned[c.ContributorID] = append(owned[c.ContributorID], c.ID)
		return true
	})
	for _, c := range contributors.List() {
		contributors.Update(c.ID, func(rec *capsule.Contributor) {
			rec.CapsuleIDs = reconcile(rec.CapsuleIDs, owned[rec.ID])
		})
	}

	report.Contributors = contributors.Len()
	report.Capsules = capsules.Len()
	report.Items = items.Len()
	report.Merges = len(snap.Merges)

	err := s.Update(ScopeAll, func(tx *Tx) error {
		tx.Contributors().swap(contributors)
		tx.Capsules().swap(capsules)
		tx.Items().swap(items)
		tx.Ledger().reset()
		tx.Merges().records = nil
		for _, m := range snap.Merges {
			tx.Merges().Append(m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// reconcile keeps the listed ids that actual confirms, in listed order,
// then appends the rest of actual in its own order.
func reconcile(listed, actual []uint32) []uint32 {
	out := make([]uint32, 0, len(actual))
	for _, id := range listed {
		if slices.Contains(actual, id) {
			out = capsule.AppendID(out, id)
		}
	}
	for _, id := range actual {
		out = capsule.AppendID(out, id)
	}
	return out
}

func (c *Collection[T]) swap(from *Collection[T]) {
	c.order = from.order
	c.byID = from.byID
}

// Verify checks the cross-reference invariants under shared locks:
// item/capsule linkage agrees in both directions, capsule/contributor
// linkage agrees in both directions, and no two contributors share an email.
// It returns every violation found, joined.
func (s *Store) Verify() error {
	var errs []error
	_ = s.View(ScopeContributors|ScopeCapsules|ScopeItems, func(tx *ReadTx) error {
		errs = verify(tx)
		return nil
	})
	return stderrors.Join(errs...)
}

func verify(tx *ReadTx) []error {
	var errs []error
	contributors, capsules, items := tx.Contributors(), tx.Capsules(), tx.Items()

	emails := make(map[string]uint32)
	contributors.Each(func(c capsule.Contributor) bool {
		key := capsule.NormalizeEmail(c.Email)
		if other, ok := emails[key]; ok {
			errs = append(errs, fmt.Errorf("contributors %d and %d share email %q", other, c.ID, c.Email))
		}
		emails[key] = c.ID

		for _, cid := range c.CapsuleIDs {
			cp, ok := capsules.Get(cid)
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("contributor %d lists missing capsule %d", c.ID, cid))
			case cp.ContributorID != c.ID:
				errs = append(errs, fmt.Errorf("contributor %d lists capsule %d owned by %d", c.ID, cid, cp.ContributorID))
			}
		}
		if dup := duplicated(c.CapsuleIDs); dup != 0 {
			errs = append(errs, fmt.Errorf("contributor %d lists capsule %d twice", c.ID, dup))
		}
		return true
	})

	capsules.Each(func(cp capsule.Capsule) bool {
		owner, ok := contributors.Get(cp.ContributorID)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("capsule %d owned by missing contributor %d", cp.ID, cp.ContributorID))
		case !capsule.ContainsID(owner.CapsuleIDs, cp.ID):
			errs = append(errs, fmt.Errorf("capsule %d not listed by contributor %d", cp.ID, cp.ContributorID))
		}

		for _, iid := range cp.ItemIDs {
			it, ok := items.Get(iid)
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("capsule %d lists missing item %d", cp.ID, iid))
			case it.CapsuleID != cp.ID:
				errs = append(errs, fmt.Errorf("capsule %d lists item %d owned by capsule %d", cp.ID, iid, it.CapsuleID))
			}
		}
		if dup := duplicated(cp.ItemIDs); dup != 0 {
			errs = append(errs, fmt.Errorf("capsule %d lists item %d twice", cp.ID, dup))
		}
		return true
	})

	items.Each(func(it capsule.Item) bool {
		parent, ok := capsules.Get(it.CapsuleID)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("item %d belongs to missing capsule %d", it.ID, it.CapsuleID))
		case !capsule.ContainsID(parent.ItemIDs, it.ID):
			errs = append(errs, fmt.Errorf("item %d not listed by capsule %d", it.ID, it.CapsuleID))
		}
		return true
	})

	return errs
}

func duplicated(ids []uint32) uint32 {
	seen := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return 0
}
