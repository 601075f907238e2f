package ops

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/audit"
	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/store"
)

// CreateContributorInput contains parameters for CreateContributor.
type CreateContributorInput struct {
	Name  string
	Email string
}

// CreateContributor adds a contributor with no capsules.
func CreateContributor(ctx context.Context, st *store.Store, input CreateContributorInput) (*capsule.Contributor, error) {
	if err := requireText("name", input.Name); err != nil {
		return nil, err
	}
	if err := requireText("email", input.Email); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(input.Email)

	var out capsule.Contributor
	err := st.Update(store.ScopeContributors, func(tx *store.Tx) error {
		col := tx.Contributors()
		if emailTaken(col, email, 0) {
			return errors.NewEmailInUse(email)
		}
		c, err := col.Insert(func(id uint32) capsule.Contributor {
			return capsule.Contributor{
				ID:         id,
				Name:       input.Name,
				Email:      email,
				CapsuleIDs: []uint32{},
			}
		})
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Uint32("contributor_id", out.ID).Msg("contributor created")
	return &out, nil
}

// emailTaken reports whether a live contributor other than except uses email.
func emailTaken(col store.Reader[capsule.Contributor], email string, except uint32) bool {
	key := capsule.NormalizeEmail(email)
	taken := false
	col.Each(func(c capsule.Contributor) bool {
		if c.ID != except && capsule.NormalizeEmail(c.Email) == key {
			taken = true
			return false
		}
		return true
	})
	return taken
}

// UpdateContributorInput contains parameters for UpdateContributor.
// Nil or blank fields are left unchanged.
type UpdateContributorInput struct {
	ID    uint32
	Name  *string
	Email *string
}

// UpdateContributor changes a contributor's name and/or email.
// Contributors are not versioned.
func UpdateContributor(ctx context.Context, st *store.Store, input UpdateContributorInput) (*capsule.Contributor, error) {
	var out capsule.Contributor
	err := st.Update(store.ScopeContributors, func(tx *store.Tx) error {
		col := tx.Contributors()
		if !col.Has(input.ID) {
			return errors.NewNotFound("contributor", input.ID)
		}
		if !present(input.Name) && !present(input.Email) {
			return errors.NewNoOpUpdate()
		}
		var email string
		if present(input.Email) {
			email = strings.TrimSpace(*input.Email)
			if emailTaken(col, email, input.ID) {
				return errors.NewEmailInUse(email)
			}
		}

		col.Update(input.ID, func(c *capsule.Contributor) {
			if present(input.Name) {
				c.Name = *input.Name
			}
			if email != "" {
				c.Email = email
			}
		})
		out, _ = col.Get(input.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContributorOutput is a contributor together with the capsules it owns.
type GetContributorOutput struct {
	Contributor capsule.Contributor `json:"contributor"`
	Capsules    []capsule.Capsule   `json:"capsules"`
}

// GetContributor returns a contributor with its capsules resolved, in capsule_ids order.
func GetContributor(ctx context.Context, st *store.Store, id uint32) (*GetContributorOutput, error) {
	var out GetContributorOutput
	err := st.View(store.ScopeContributors|store.ScopeCapsules, func(tx *store.ReadTx) error {
		c, ok := tx.Contributors().Get(id)
		if !ok {
			return errors.NewNotFound("contributor", id)
		}
		out.Contributor = c
		out.Capsules = make([]capsule.Capsule, 0, len(c.CapsuleIDs))
		for _, cid := range c.CapsuleIDs {
			if cp, ok := tx.Capsules().Get(cid); ok {
				out.Capsules = append(out.Capsules, cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContributorsOutput contains one page of contributors.
type ListContributorsOutput struct {
	Contributors []capsule.Contributor `json:"contributors"`
	Pagination   Pagination            `json:"pagination"`
}

// ListContributors returns contributors in creation order.
func ListContributors(ctx context.Context, st *store.Store, cfg *config.Config, input ListInput) (*ListContributorsOutput, error) {
	offset, limit, page, err := resolvePage(cfg, input)
	if err != nil {
		return nil, err
	}
	out := &ListContributorsOutput{Pagination: page}
	_ = st.View(store.ScopeContributors, func(tx *store.ReadTx) error {
		out.Contributors = tx.Contributors().Page(offset, limit)
		out.Pagination.Total = tx.Contributors().Len()
		return nil
	})
	return out, nil
}

// DeleteContributor removes a contributor, every capsule it owns, and every
// item belonging to those capsules, as one unit of work.
func DeleteContributor(ctx context.Context, st *store.Store, id uint32) error {
	var capsules, items int
	err := st.Update(store.ScopeContributors|store.ScopeCapsules|store.ScopeItems, func(tx *store.Tx) error {
		if !tx.Contributors().Has(id) {
			return errors.NewNotFound("contributor", id)
		}

		tx.Contributors().Remove(id)
		removed := tx.Capsules().RemoveWhere(func(c *capsule.Capsule) bool {
			return c.ContributorID == id
		})
		gone := make(map[uint32]bool, len(removed))
		for _, c := range removed {
			gone[c.ID] = true
		}
		items = len(tx.Items().RemoveWhere(func(it *capsule.Item) bool {
			return gone[it.CapsuleID]
		}))
		capsules = len(removed)
		return nil
	})
	if err != nil {
		return err
	}

	audit.FromContext(ctx).LogCascadeDelete("contributor", id, capsules, items)
	return nil
}
