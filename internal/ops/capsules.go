package ops

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/audit"
	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/store"
)

// CreateCapsuleInput contains parameters for CreateCapsule.
type CreateCapsuleInput struct {
	Name          string
	Description   string
	ContributorID uint32
	TimeOpen      time.Time
}

// CreateCapsule creates a capsule owned by an existing contributor.
// A request whose significant fields match an earlier one is rejected as a
// duplicate and allocates nothing.
func CreateCapsule(ctx context.Context, st *store.Store, cfg *config.Config, input CreateCapsuleInput) (*capsule.Capsule, error) {
	if err := requireText("name", input.Name); err != nil {
		return nil, err
	}
	if input.TimeOpen.IsZero() {
		return nil, errors.NewInvalidRequest("time_open is required")
	}
	fp := capsule.CapsuleFingerprint(input.Name, input.Description, input.ContributorID, input.TimeOpen)

	var out capsule.Capsule
	scope := store.ScopeContributors | store.ScopeCapsules | store.ScopeLedger
	err := st.Update(scope, func(tx *store.Tx) error {
		if !tx.Contributors().Has(input.ContributorID) {
			return errors.NewContributorNotFound(input.ContributorID)
		}
		if prev, dup := tx.Ledger().Check(fp); dup {
			audit.FromContext(ctx).LogDuplicateSubmission("capsule", fp, prev.EntityID)
			return errors.NewDuplicateSubmission("capsule", fp, prev.EntityID)
		}

		now := tx.Now()
		c, err := tx.Capsules().Insert(func(id uint32) capsule.Capsule {
			return capsule.Capsule{
				ID:               id,
				ContributorID:    input.ContributorID,
				Name:             input.Name,
				Description:      input.Description,
				TimeCreated:      now,
				TimeOpen:         input.TimeOpen.UTC(),
				TimeUntilChanged: now.Add(cfg.ModificationWindow()),
				ItemIDs:          []uint32{},
				Version:          1,
			}
		})
		if err != nil {
			return err
		}
		tx.Contributors().Update(input.ContributorID, func(owner *capsule.Contributor) {
			owner.CapsuleIDs = capsule.AppendID(owner.CapsuleIDs, c.ID)
		})
		out = c
		return tx.Ledger().Record(fp, "capsule", c.ID, c, now)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Uint32("capsule_id", out.ID).Str("fingerprint", fp).Msg("capsule created")
	return &out, nil
}

// GetCapsule returns a capsule by id.
func GetCapsule(ctx context.Context, st *store.Store, id uint32) (*capsule.Capsule, error) {
	var out capsule.Capsule
	err := st.View(store.ScopeCapsules, func(tx *store.ReadTx) error {
		c, ok := tx.Capsules().Get(id)
		if !ok {
			return errors.NewNotFound("capsule", id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCapsulesOutput contains one page of capsules.
type ListCapsulesOutput struct {
	Capsules   []capsule.Capsule `json:"capsules"`
	Pagination Pagination        `json:"pagination"`
}

// ListCapsules returns capsules in creation order.
func ListCapsules(ctx context.Context, st *store.Store, cfg *config.Config, input ListInput) (*ListCapsulesOutput, error) {
	offset, limit, page, err := resolvePage(cfg, input)
	if err != nil {
		return nil, err
	}
	out := &ListCapsulesOutput{Pagination: page}
	_ = st.View(store.ScopeCapsules, func(tx *store.ReadTx) error {
		out.Capsules = tx.Capsules().Page(offset, limit)
		out.Pagination.Total = tx.Capsules().Len()
		return nil
	})
	return out, nil
}

// PatchCapsuleInput contains parameters for PatchCapsule.
// Nil or blank fields are left unchanged.
type PatchCapsuleInput struct {
	ID           uint32
	Precondition Precondition
	Name         *string
	Description  *string
}

// PatchCapsule applies a conditional update to a capsule's name and/or description.
//
// Checks run in this order, all before any mutation: the capsule exists, the
// version precondition is unambiguous and present, the modification window
// is open, the expected version is current, at least one field is supplied.
// On success version increases by exactly one and time_changed is set.
func PatchCapsule(ctx context.Context, st *store.Store, input PatchCapsuleInput) (*capsule.Capsule, error) {
	var out capsule.Capsule
	err := st.Update(store.ScopeCapsules, func(tx *store.Tx) error {
		c, ok := tx.Capsules().Get(input.ID)
		if !ok {
			return errors.NewNotFound("capsule", input.ID)
		}
		expected, err := input.Precondition.resolve()
		if err != nil {
			return err
		}
		now := tx.Now()
		if err := checkWindow(&c, now); err != nil {
			return err
		}
		if err := checkVersion(ctx, "capsule", c.ID, expected, c.Version); err != nil {
			return err
		}
		if !present(input.Name) && !present(input.Description) {
			return errors.NewNoOpUpdate()
		}

		tx.Capsules().Update(input.ID, func(rec *capsule.Capsule) {
			if present(input.Name) {
				rec.Name = *input.Name
			}
			if present(input.Description) {
				rec.Description = *input.Description
			}
			rec.Touch(now)
			rec.Version++
		})
		out, _ = tx.Capsules().Get(input.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCapsule removes a capsule, every item it holds, and its id from the
// owning contributor, as one unit of work.
func DeleteCapsule(ctx context.Context, st *store.Store, id uint32) error {
	var items int
	err := st.Update(store.ScopeContributors|store.ScopeCapsules|store.ScopeItems, func(tx *store.Tx) error {
		c, ok := tx.Capsules().Remove(id)
		if !ok {
			return errors.NewNotFound("capsule", id)
		}
		items = len(tx.Items().RemoveWhere(func(it *capsule.Item) bool {
			return it.CapsuleID == id || capsule.ContainsID(c.ItemIDs, it.ID)
		}))
		tx.Contributors().Update(c.ContributorID, func(owner *capsule.Contributor) {
			owner.CapsuleIDs = capsule.RemoveID(owner.CapsuleIDs, id)
		})
		return nil
	})
	if err != nil {
		return err
	}

	audit.FromContext(ctx).LogCascadeDelete("capsule", id, 1, items)
	return nil
}
