package frame

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Selection is the result of a predicate over a RowBatch: the set of
// visible row positions that passed, in batch-local coordinates
// [0, batch.Len()). It wraps a roaring bitmap so predicate composition
// (And/Or/AndNot/Not) runs on compressed sets instead of index slices.
type Selection struct {
	bm *roaring.Bitmap
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{bm: roaring.New()}
}

// SelectAll returns a selection covering rows [0, n).
func SelectAll(n int) *Selection {
	s := NewSelection()
	if n > 0 {
		s.bm.AddRange(0, uint64(n))
	}
	return s
}

// Add marks row i selected.
func (s *Selection) Add(i uint32) {
	s.bm.Add(i)
}

// AddRange marks rows [start, end) selected.
func (s *Selection) AddRange(start, end uint32) {
	if end > start {
		s.bm.AddRange(uint64(start), uint64(end))
	}
}

// Contains reports whether row i is selected.
func (s *Selection) Contains(i uint32) bool {
	return s.bm.Contains(i)
}

// Count returns the number of selected rows.
func (s *Selection) Count() int {
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether nothing is selected.
func (s *Selection) IsEmpty() bool {
	return s.bm.IsEmpty()
}

// And intersects in place and returns s.
func (s *Selection) And(other *Selection) *Selection {
	s.bm.And(other.bm)
	return s
}

// Or unions in place and returns s.
func (s *Selection) Or(other *Selection) *Selection {
	s.bm.Or(other.bm)
	return s
}

// AndNot removes other's rows in place and returns s.
func (s *Selection) AndNot(other *Selection) *Selection {
	s.bm.AndNot(other.bm)
	return s
}

// Not complements the selection within [0, n) in place and returns s.
func (s *Selection) Not(n int) *Selection {
	s.bm.Flip(0, uint64(n))
	return s
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	return &Selection{bm: s.bm.Clone()}
}

// Indices returns the selected rows ascending as a fresh slice.
func (s *Selection) Indices() []uint32 {
	return s.bm.ToArray()
}

// AppendIndices appends the selected rows ascending to dst, growing it as
// needed. Lets callers draw dst from a pool.
func (s *Selection) AppendIndices(dst []uint32) []uint32 {
	it := s.bm.Iterator()
	for it.HasNext() {
		dst = append(dst, it.Next())
	}
	return dst
}
