package ops

import (
	"context"
	"crypto/rand"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/keepsake/internal/audit"
	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/store"
)

// MergeInput names the surviving capsule and the capsule folded into it.
type MergeInput struct {
	CapsuleID1 uint32
	CapsuleID2 uint32
}

// MergeOutput contains the surviving capsule and the appended merge record.
type MergeOutput struct {
	Capsule capsule.Capsule     `json:"capsule"`
	Record  capsule.MergeRecord `json:"merge_record"`
}

// MergeCapsules folds capsule 2 into capsule 1.
//
// Every item of capsule 2 is re-parented to capsule 1, capsule 1's item_ids
// become the union of both, capsule 2 is removed from the store and from its
// contributor, and capsule 1's time_changed is set. Capsule 1 keeps its id and
// version. A merge record holding both pre-merge snapshots and the result is
// appended. Both capsules must exist, share a contributor, and be inside their
// modification windows.
func MergeCapsules(ctx context.Context, st *store.Store, input MergeInput) (*MergeOutput, error) {
	if input.CapsuleID1 == input.CapsuleID2 {
		return nil, errors.NewInvalidRequest("cannot merge a capsule with itself")
	}

	var out MergeOutput
	var moved int
	scope := store.ScopeContributors | store.ScopeCapsules | store.ScopeItems | store.ScopeMerges
	err := st.Update(scope, func(tx *store.Tx) error {
		c1, ok := tx.Capsules().Get(input.CapsuleID1)
		if !ok {
			return errors.NewNotFound("capsule", input.CapsuleID1)
		}
		c2, ok := tx.Capsules().Get(input.CapsuleID2)
		if !ok {
			return errors.NewNotFound("capsule", input.CapsuleID2)
		}
		if c1.ContributorID != c2.ContributorID {
			return errors.NewDifferentOwners(c1.ID, c2.ID)
		}
		now := tx.Now()
		if err := checkWindow(&c1, now); err != nil {
			return err
		}
		if err := checkWindow(&c2, now); err != nil {
			return err
		}
		recordID, err := ulid.New(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
		if err != nil {
			return errors.NewInternal(err)
		}

		// Re-parent by the child side so stray links cannot survive the merge.
		movedIDs := append([]uint32{}, c2.ItemIDs...)
		tx.Items().Each(func(it capsule.Item) bool {
			if it.CapsuleID == c2.ID {
				movedIDs = capsule.AppendID(movedIDs, it.ID)
			}
			return true
		})
		for _, id := range movedIDs {
			tx.Items().Update(id, func(it *capsule.Item) { it.CapsuleID = c1.ID })
		}
		moved = len(movedIDs)

		tx.Capsules().Update(c1.ID, func(rec *capsule.Capsule) {
			rec.ItemIDs = capsule.UnionIDs(rec.ItemIDs, movedIDs)
			rec.Touch(now)
		})
		tx.Capsules().Remove(c2.ID)
		tx.Contributors().Update(c2.ContributorID, func(owner *capsule.Contributor) {
			owner.CapsuleIDs = capsule.RemoveID(owner.CapsuleIDs, c2.ID)
		})

		merged, _ := tx.Capsules().Get(c1.ID)
		out.Capsule = merged
		out.Record = capsule.MergeRecord{
			ID:            recordID.String(),
			MergedAt:      now,
			OldCapsule1:   c1,
			OldCapsule2:   c2,
			MergedCapsule: merged,
		}
		tx.Merges().Append(out.Record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	audit.FromContext(ctx).LogMerge(out.Record.ID, input.CapsuleID1, input.CapsuleID2, moved)
	return &out, nil
}

// ListMergeRecordsOutput contains every merge record in append order.
type ListMergeRecordsOutput struct {
	Merges []capsule.MergeRecord `json:"merges"`
}

// ListMergeRecords returns the full merge history.
func ListMergeRecords(ctx context.Context, st *store.Store) (*ListMergeRecordsOutput, error) {
	out := &ListMergeRecordsOutput{}
	_ = st.View(store.ScopeMerges, func(tx *store.ReadTx) error {
		out.Merges = tx.MergeRecords()
		return nil
	})
	return out, nil
}
