package ops

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/audit"
	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/store"
)

// AddItemInput contains parameters for AddItem.
type AddItemInput struct {
	CapsuleID   uint32
	Type        string
	Description string
	Size        string
	Path        string
	Metadata    any
}

// AddItem creates an item inside an open capsule and links it from the capsule.
// A request whose significant fields match an earlier one is rejected as a
// duplicate and allocates nothing.
func AddItem(ctx context.Context, st *store.Store, input AddItemInput) (*capsule.Item, error) {
	if err := requireText("type", input.Type); err != nil {
		return nil, err
	}
	fp, err := capsule.ItemFingerprint(input.Type, input.Description, input.Size, input.Path, input.Metadata)
	if err != nil {
		return nil, errors.NewInvalidRequest("metadata is not encodable: " + err.Error())
	}

	var out capsule.Item
	scope := store.ScopeCapsules | store.ScopeItems | store.ScopeLedger
	err = st.Update(scope, func(tx *store.Tx) error {
		parent, ok := tx.Capsules().Get(input.CapsuleID)
		if !ok {
			return errors.NewCapsuleNotFound(input.CapsuleID)
		}
		now := tx.Now()
		if err := checkWindow(&parent, now); err != nil {
			return err
		}
		if prev, dup := tx.Ledger().Check(fp); dup {
			audit.FromContext(ctx).LogDuplicateSubmission("item", fp, prev.EntityID)
			return errors.NewDuplicateSubmission("item", fp, prev.EntityID)
		}

		it, err := tx.Items().Insert(func(id uint32) capsule.Item {
			return capsule.Item{
				ID:          id,
				CapsuleID:   input.CapsuleID,
				Type:        input.Type,
				Description: input.Description,
				Size:        input.Size,
				Path:        input.Path,
				Metadata:    capsule.CloneValue(input.Metadata),
				TimeAdded:   now,
				Version:     1,
			}
		})
		if err != nil {
			return err
		}
		tx.Capsules().Update(input.CapsuleID, func(c *capsule.Capsule) {
			c.ItemIDs = capsule.AppendID(c.ItemIDs, it.ID)
			c.Touch(now)
		})
		out = it
		return tx.Ledger().Record(fp, "item", it.ID, it, now)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Uint32("item_id", out.ID).Uint32("capsule_id", out.CapsuleID).Msg("item added")
	return &out, nil
}

// GetItem returns an item by id regardless of its capsule.
func GetItem(ctx context.Context, st *store.Store, id uint32) (*capsule.Item, error) {
	var out capsule.Item
	err := st.View(store.ScopeItems, func(tx *store.ReadTx) error {
		it, ok := tx.Items().Get(id)
		if !ok {
			return errors.NewNotFound("item", id)
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCapsuleItem returns an item only if the capsule lists it.
func GetCapsuleItem(ctx context.Context, st *store.Store, capsuleID, itemID uint32) (*capsule.Item, error) {
	var out capsule.Item
	err := st.View(store.ScopeCapsules|store.ScopeItems, func(tx *store.ReadTx) error {
		it, err := ownedItem(tx.Capsules(), tx.Items(), capsuleID, itemID)
		out = it
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ownedItem resolves an item addressed through its capsule.
func ownedItem(capsules store.Reader[capsule.Capsule], items store.Reader[capsule.Item], capsuleID, itemID uint32) (capsule.Item, error) {
	parent, ok := capsules.Get(capsuleID)
	if !ok {
		return capsule.Item{}, errors.NewNotFound("capsule", capsuleID)
	}
	if !capsule.ContainsID(parent.ItemIDs, itemID) {
		return capsule.Item{}, errors.NewItemNotInCapsule(capsuleID, itemID)
	}
	it, ok := items.Get(itemID)
	if !ok || it.CapsuleID != capsuleID {
		return capsule.Item{}, errors.NewItemNotInCapsule(capsuleID, itemID)
	}
	return it, nil
}

// ListCapsuleItemsOutput contains the items of one capsule.
type ListCapsuleItemsOutput struct {
	CapsuleID uint32         `json:"capsule_id"`
	Items     []capsule.Item `json:"items"`
}

// ListCapsuleItems returns a capsule's items in item_ids order.
func ListCapsuleItems(ctx context.Context, st *store.Store, capsuleID uint32) (*ListCapsuleItemsOutput, error) {
	out := &ListCapsuleItemsOutput{CapsuleID: capsuleID}
	err := st.View(store.ScopeCapsules|store.ScopeItems, func(tx *store.ReadTx) error {
		parent, ok := tx.Capsules().Get(capsuleID)
		if !ok {
			return errors.NewNotFound("capsule", capsuleID)
		}
		out.Items = make([]capsule.Item, 0, len(parent.ItemIDs))
		for _, id := range parent.ItemIDs {
			if it, ok := tx.Items().Get(id); ok {
				out.Items = append(out.Items, it)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListItemsOutput contains one page of items across all capsules.
type ListItemsOutput struct {
	Items      []capsule.Item `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// ListItems returns items in creation order.
func ListItems(ctx context.Context, st *store.Store, cfg *config.Config, input ListInput) (*ListItemsOutput, error) {
	offset, limit, page, err := resolvePage(cfg, input)
	if err != nil {
		return nil, err
	}
	out := &ListItemsOutput{Pagination: page}
	_ = st.View(store.ScopeItems, func(tx *store.ReadTx) error {
		out.Items = tx.Items().Page(offset, limit)
		out.Pagination.Total = tx.Items().Len()
		return nil
	})
	return out, nil
}

// PatchItemInput contains parameters for PatchItem.
// Nil or blank string fields are left unchanged; a nil Metadata is left unchanged.
type PatchItemInput struct {
	CapsuleID    uint32
	ItemID       uint32
	Precondition Precondition
	Type         *string
	Description  *string
	Size         *string
	Path         *string
	Metadata     any
}

func (in PatchItemInput) hasChanges() bool {
	return present(in.Type) || present(in.Description) || present(in.Size) ||
		present(in.Path) || in.Metadata != nil
}

// PatchItem applies a conditional update to an item addressed through its capsule.
// The item's version increases by one; the capsule's time_changed is set but
// its version is untouched.
func PatchItem(ctx context.Context, st *store.Store, input PatchItemInput) (*capsule.Item, error) {
	var out capsule.Item
	err := st.Update(store.ScopeCapsules|store.ScopeItems, func(tx *store.Tx) error {
		it, err := ownedItem(tx.Capsules(), tx.Items(), input.CapsuleID, input.ItemID)
		if err != nil {
			return err
		}
		expected, err := input.Precondition.resolve()
		if err != nil {
			return err
		}
		parent, _ := tx.Capsules().Get(input.CapsuleID)
		now := tx.Now()
		if err := checkWindow(&parent, now); err != nil {
			return err
		}
		if err := checkVersion(ctx, "item", it.ID, expected, it.Version); err != nil {
			return err
		}
		if !input.hasChanges() {
			return errors.NewNoOpUpdate()
		}

		tx.Items().Update(input.ItemID, func(rec *capsule.Item) {
			if present(input.Type) {
				rec.Type = *input.Type
			}
			if present(input.Description) {
				rec.Description = *input.Description
			}
			if present(input.Size) {
				rec.Size = *input.Size
			}
			if present(input.Path) {
				rec.Path = *input.Path
			}
			if input.Metadata != nil {
				rec.Metadata = capsule.CloneValue(input.Metadata)
			}
			rec.Version++
		})
		tx.Capsules().Update(input.CapsuleID, func(c *capsule.Capsule) { c.Touch(now) })
		out, _ = tx.Items().Get(input.ItemID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItemInput addresses an item through its capsule.
type DeleteItemInput struct {
	CapsuleID uint32
	ItemID    uint32
}

// DeleteItem removes an item from an open capsule.
func DeleteItem(ctx context.Context, st *store.Store, input DeleteItemInput) error {
	return st.Update(store.ScopeCapsules|store.ScopeItems, func(tx *store.Tx) error {
		if _, err := ownedItem(tx.Capsules(), tx.Items(), input.CapsuleID, input.ItemID); err != nil {
			return err
		}
		parent, _ := tx.Capsules().Get(input.CapsuleID)
		now := tx.Now()
		if err := checkWindow(&parent, now); err != nil {
			return err
		}

		tx.Items().Remove(input.ItemID)
		tx.Capsules().Update(input.CapsuleID, func(c *capsule.Capsule) {
			c.ItemIDs = capsule.RemoveID(c.ItemIDs, input.ItemID)
			c.Touch(now)
		})
		return nil
	})
}
