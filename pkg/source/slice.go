package source

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// Slice serves pages from an in-memory item slice. Cursors are integer
// offsets into the slice. Useful for tests, demos, and small galleries that
// are already fully resolved.
type Slice struct {
	items    []tiler.Item
	pageSize int
}

// NewSlice creates a slice source with the given page size.
// A non-positive page size defaults to 60.
func NewSlice(items []tiler.Item, pageSize int) *Slice {
	if pageSize <= 0 {
		pageSize = 60
	}
	return &Slice{items: items, pageSize: pageSize}
}

// Get returns the page starting at the offset carried by key.
// A nil key starts from the beginning.
func (s *Slice) Get(ctx context.Context, key RequestKey) (Page, error) {
	offset := 0
	switch o := key.(type) {
	case nil:
	case int:
		offset = o
	case float64:
		// Cursors that round-tripped through JSON (source.Cached) come
		// back as float64.
		offset = int(o)
	default:
		return Page{}, errors.New(errors.ErrCodeInvalidKey, "slice source expects int cursors, got %T", key)
	}
	if offset < 0 || offset > len(s.items) {
		return Page{}, errors.New(errors.ErrCodeInvalidKey, "cursor %d out of range [0, %d]", offset, len(s.items))
	}

	end := min(offset+s.pageSize, len(s.items))
	page := Page{Items: s.items[offset:end]}
	if end < len(s.items) {
		page.Next = end
	}
	return page, nil
}

// Len returns the total number of items the source holds.
func (s *Slice) Len() int { return len(s.items) }

// GenerateItems builds n demo items with fresh uuid ids and aspect ratios
// drawn from rng in [0.5, 2.5). Used by the demo gallery and benchmarks.
func GenerateItems(n int, rng *rand.Rand) []tiler.Item {
	items := make([]tiler.Item, n)
	for i := range items {
		items[i] = tiler.Item{
			ID:          uuid.NewString(),
			AspectRatio: 0.5 + rng.Float64()*2,
		}
	}
	return items
}

// Ensure Slice implements Source.
var _ Source = (*Slice)(nil)
