package ops

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hpungsan/keepsake/internal/audit"
	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/errors"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// ListInput selects one page of a list. Zero values mean defaults.
type ListInput struct {
	Page    int
	PerPage int
}

// resolvePage validates page parameters and returns the slice bounds.
// page defaults to 1 and per_page to cfg.DefaultPerPage; per_page is clamped to cfg.MaxPerPage.
func resolvePage(cfg *config.Config, in ListInput) (offset, limit int, p Pagination, err error) {
	if in.Page < 0 || in.PerPage < 0 {
		return 0, 0, p, errors.NewInvalidRequest("page and per_page must not be negative")
	}
	p.Page = in.Page
	if p.Page == 0 {
		p.Page = 1
	}
	p.PerPage = in.PerPage
	if p.PerPage == 0 {
		p.PerPage = cfg.DefaultPerPage
	}
	if cfg.MaxPerPage > 0 && p.PerPage > cfg.MaxPerPage {
		p.PerPage = cfg.MaxPerPage
	}
	if p.PerPage <= 0 {
		p.PerPage = 1
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		// Past any collection's end.
		return math.MaxInt, p.PerPage, p, nil
	}
	return (p.Page - 1) * p.PerPage, p.PerPage, p, nil
}

// Precondition is the caller's expected version, from a query-string etag,
// from the update body, or both.
type Precondition struct {
	ETag        *uint32
	BodyVersion *uint32
}

// resolve returns the expected version. Both sources present and unequal is
// ambiguous; neither present means the update is unconditional, which is refused.
func (p Precondition) resolve() (uint32, error) {
	if p.ETag != nil && p.BodyVersion != nil && *p.ETag != *p.BodyVersion {
		return 0, errors.NewVersionConflictRequest(*p.ETag, *p.BodyVersion)
	}
	switch {
	case p.ETag != nil:
		return *p.ETag, nil
	case p.BodyVersion != nil:
		return *p.BodyVersion, nil
	default:
		return 0, errors.NewVersionRequired()
	}
}

// checkVersion fails with STALE_VERSION when expected no longer matches current.
func checkVersion(ctx context.Context, entity string, id, expected, current uint32) error {
	if expected != current {
		audit.FromContext(ctx).LogStaleVersion(entity, id, expected, current)
		return errors.NewStaleVersion(entity, id, expected, current)
	}
	return nil
}

// checkWindow fails with MODIFICATION_WINDOW_CLOSED once now is past the capsule's deadline.
func checkWindow(c *capsule.Capsule, now time.Time) error {
	if c.WindowClosed(now) {
		return errors.NewModificationWindowClosed(c.ID, c.TimeUntilChanged.Format(time.RFC3339Nano))
	}
	return nil
}

// present reports whether an optional string field carries a usable value.
func present(s *string) bool {
	return s != nil && !capsule.IsBlank(*s)
}

func requireText(field, value string) error {
	if capsule.IsBlank(value) {
		return errors.NewInvalidRequest(fmt.Sprintf("%s is required", field))
	}
	return nil
}
