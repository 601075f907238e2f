package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/hpungsan/keepsake/internal/errors"
)

// Reader is the read-only view of a collection handed out inside View.
type Reader[T any] interface {
	Get(id uint32) (T, bool)
	Has(id uint32) bool
	List() []T
	Page(offset, limit int) []T
	Len() int
	Each(fn func(T) bool)
}

// Collection is an id-indexed set of records kept in insertion order.
// It does no locking of its own; callers reach it through a Store unit of work,
// which holds mu for the duration.
type Collection[T any] struct {
	mu    sync.RWMutex
	name  string
	order []uint32
	byID  map[uint32]*T
	idOf  func(*T) uint32
	clone func(T) T
}

func newCollection[T any](name string, idOf func(*T) uint32, clone func(T) T) *Collection[T] {
	return &Collection[T]{
		name:  name,
		byID:  make(map[uint32]*T),
		idOf:  idOf,
		clone: clone,
	}
}

// Name returns the collection name used in errors and metrics.
func (c *Collection[T]) Name() string { return c.name }

// NextID returns one more than the largest id present, or 1 when empty.
// Ids freed by deletion are therefore only reused once every larger id is gone too.
func (c *Collection[T]) NextID() (uint32, error) {
	var maxID uint32
	for _, id := range c.order {
		if id > maxID {
			maxID = id
		}
	}
	if maxID == math.MaxUint32 {
		return 0, errors.NewIDSpaceExhausted(c.name)
	}
	return maxID + 1, nil
}

// Insert allocates the next id, builds the record with it, and stores it.
// The returned value is a copy.
func (c *Collection[T]) Insert(build func(id uint32) T) (T, error) {
	id, err := c.NextID()
	if err != nil {
		var zero T
		return zero, err
	}
	rec := build(id)
	c.put(id, &rec)
	return c.clone(rec), nil
}

// Put stores rec under its own id. It fails if the id is zero or taken.
func (c *Collection[T]) Put(rec T) error {
	id := c.idOf(&rec)
	if id == 0 {
		return fmt.Errorf("%s: id 0 is not allowed", c.name)
	}
	if _, ok := c.byID[id]; ok {
		return fmt.Errorf("%s: duplicate id %d", c.name, id)
	}
	c.put(id, &rec)
	return nil
}

func (c *Collection[T]) put(id uint32, rec *T) {
	c.byID[id] = rec
	c.order = append(c.order, id)
}

// Get returns a copy of the record with the given id.
func (c *Collection[T]) Get(id uint32) (T, bool) {
	rec, ok := c.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(*rec), true
}

// Has reports whether id is present.
func (c *Collection[T]) Has(id uint32) bool {
	_, ok := c.byID[id]
	return ok
}

// Update applies fn to the stored record in place. It reports false if id is absent.
func (c *Collection[T]) Update(id uint32, fn func(*T)) bool {
	rec, ok := c.byID[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Remove deletes the record with the given id and returns it.
func (c *Collection[T]) Remove(id uint32) (T, bool) {
	rec, ok := c.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(c.byID, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return *rec, true
}

// RemoveWhere deletes every record matching pred and returns them in insertion order.
func (c *Collection[T]) RemoveWhere(pred func(*T) bool) []T {
	var removed []T
	kept := c.order[:0]
	for _, id := range c.order {
		rec := c.byID[id]
		if pred(rec) {
			removed = append(removed, *rec)
			delete(c.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

// List returns copies of all records in insertion order.
func (c *Collection[T]) List() []T {
	return c.Page(0, len(c.order))
}

// Page returns copies of records [offset, offset+limit) in insertion order,
// clamped to the collection length.
func (c *Collection[T]) Page(offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.order) || limit <= 0 {
		return []T{}
	}
	end := min(offset+limit, len(c.order))
	out := make([]T, 0, end-offset)
	for _, id := range c.order[offset:end] {
		out = append(out, c.clone(*c.byID[id]))
	}
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	return len(c.order)
}

// Each calls fn with a copy of every record in insertion order until fn returns false.
func (c *Collection[T]) Each(fn func(T) bool) {
	for _, id := range c.order {
		if !fn(c.clone(*c.byID[id])) {
			return
		}
	}
}
