package capsule

import "time"

// Contributor is an account that owns zero or more capsules by id.
type Contributor struct {
	// ID is unique and immutable; allocated as max+1 within the contributor collection
	ID uint32 `json:"id" yaml:"id"`

	Name string `json:"name" yaml:"name"`

	// Email is unique among live contributors (compared via NormalizeEmail)
	Email string `json:"email" yaml:"email"`

	// CapsuleIDs lists owned capsules in the order they were attached
	CapsuleIDs []uint32 `json:"capsule_ids" yaml:"capsule_ids"`
}

// Clone returns a deep copy safe to hand out past the store lock.
func (c Contributor) Clone() Contributor {
	c.CapsuleIDs = cloneIDs(c.CapsuleIDs)
	return c
}

// Capsule is a named, time-windowed container of items owned by one contributor.
type Capsule struct {
	ID            uint32 `json:"id" yaml:"id"`
	ContributorID uint32 `json:"contributor_id" yaml:"contributor_id"`
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description" yaml:"description"`

	TimeCreated time.Time  `json:"time_created" yaml:"time_created"`
	TimeChanged *time.Time `json:"time_changed" yaml:"time_changed,omitempty"`
	TimeOpen    time.Time  `json:"time_open" yaml:"time_open"`

	// TimeUntilChanged is the hard modification deadline: creation time plus the configured window
	TimeUntilChanged time.Time `json:"time_until_changed" yaml:"time_until_changed"`

	ItemIDs []uint32 `json:"item_ids" yaml:"item_ids"`

	// Version starts at 1 and increases by exactly one on every successful patch
	Version uint32 `json:"version" yaml:"version"`
}

// Clone returns a deep copy safe to hand out past the store lock.
func (c Capsule) Clone() Capsule {
	c.ItemIDs = cloneIDs(c.ItemIDs)
	if c.TimeChanged != nil {
		t := *c.TimeChanged
		c.TimeChanged = &t
	}
	return c
}

// WindowClosed reports whether now is past the capsule's modification deadline.
// The deadline instant itself is still open.
func (c *Capsule) WindowClosed(now time.Time) bool {
	return now.After(c.TimeUntilChanged)
}

// Touch sets the capsule's time_changed without bumping its version.
func (c *Capsule) Touch(now time.Time) {
	c.TimeChanged = &now
}

// Item is a typed artifact reference belonging to exactly one capsule.
type Item struct {
	ID          uint32 `json:"id" yaml:"id"`
	CapsuleID   uint32 `json:"capsule_id" yaml:"capsule_id"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Size        string `json:"size" yaml:"size"`
	Path        string `json:"path" yaml:"path"`

	// Metadata is an opaque structured value (anything encoding/json can represent)
	Metadata any `json:"metadata" yaml:"metadata"`

	TimeAdded time.Time `json:"time_added" yaml:"time_added"`
	Version   uint32    `json:"version" yaml:"version"`
}

// Clone returns a deep copy safe to hand out past the store lock.
func (i Item) Clone() Item {
	i.Metadata = CloneValue(i.Metadata)
	return i
}

// MergeRecord is the immutable audit entry appended once per successful merge.
type MergeRecord struct {
	// ID is a ULID, so records sort by merge time
	ID       string    `json:"id" yaml:"id"`
	MergedAt time.Time `json:"merged_at" yaml:"merged_at"`

	OldCapsule1   Capsule `json:"old_capsule1" yaml:"old_capsule1"`
	OldCapsule2   Capsule `json:"old_capsule2" yaml:"old_capsule2"`
	MergedCapsule Capsule `json:"merged_capsule" yaml:"merged_capsule"`
}

// Clone returns a deep copy safe to hand out past the store lock.
func (m MergeRecord) Clone() MergeRecord {
	m.OldCapsule1 = m.OldCapsule1.Clone()
	m.OldCapsule2 = m.OldCapsule2.Clone()
	m.MergedCapsule = m.MergedCapsule.Clone()
	return m
}

// CloneValue deep-copies the maps and slices of a decoded JSON/YAML value.
// Scalars are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneIDs(ids []uint32) []uint32 {
	return append(make([]uint32, 0, len(ids)), ids...)
}
