package columnar

import (
	"github.com/ajitpratap0/quasar/pkg/errors"
	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// CategoricalColumn stores strings dictionary-encoded: every distinct value
// lives exactly once in a contiguous byte arena addressed by offsets, and
// each row holds a fixed-width code into that dictionary. A hash index from
// string to code keeps appends O(1) amortized regardless of dictionary
// size.
//
// The dictionary only grows. Existing entries are never merged, renumbered,
// or dropped while the column is live, so filtered data may leave unused
// codes behind; dictionaries stay small by the low-cardinality assumption,
// so the waste is accepted.
type CategoricalColumn struct {
	arena    []byte
	offsets  []uint32 // entry i spans arena[offsets[i]:offsets[i+1]]
	codes    []uint32
	index    map[string]uint32
	validity *ValidityMask
	view     bool
}

// NewCategoricalColumn creates an empty categorical column.
func NewCategoricalColumn() *CategoricalColumn {
	return &CategoricalColumn{
		arena:    make([]byte, 0, 1024),
		offsets:  []uint32{0},
		codes:    make([]uint32, 0, 1024),
		index:    make(map[string]uint32),
		validity: NewValidityMask(),
	}
}

// DType returns DTypeCategorical.
func (c *CategoricalColumn) DType() DType { return DTypeCategorical }

// Len returns the number of rows, valid and null alike.
func (c *CategoricalColumn) Len() int { return len(c.codes) }

// Append adds one string row, reusing the dictionary code when the value
// was seen before and growing the arena otherwise.
func (c *CategoricalColumn) Append(s string) error {
	if c.view {
		return errViewAppend()
	}
	code, ok := c.index[s]
	if !ok {
		code = uint32(len(c.offsets) - 1)
		c.arena = append(c.arena, s...)
		c.offsets = append(c.offsets, uint32(len(c.arena)))
		// The key must own its bytes; the caller's string may alias a
		// transient buffer.
		c.index[stringpool.Clone(s)] = code
	}
	c.codes = append(c.codes, code)
	return c.validity.Push(true)
}

// AppendNull adds one null row. The stored code is a placeholder and never
// read back.
func (c *CategoricalColumn) AppendNull() error {
	if c.view {
		return errViewAppend()
	}
	c.codes = append(c.codes, 0)
	return c.validity.Push(false)
}

// AppendBatch adds a sequence of optional strings.
func (c *CategoricalColumn) AppendBatch(vals []Nullable[string]) error {
	if c.view {
		return errViewAppend()
	}
	for _, v := range vals {
		if v.Valid {
			if err := c.Append(v.Value); err != nil {
				return err
			}
		} else {
			if err := c.AppendNull(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppendRepeated adds count copies of the same valid string, filling the
// validity mask word-wise.
func (c *CategoricalColumn) AppendRepeated(s string, count int) error {
	if c.view {
		return errViewAppend()
	}
	if count <= 0 {
		return nil
	}
	code, ok := c.index[s]
	if !ok {
		code = uint32(len(c.offsets) - 1)
		c.arena = append(c.arena, s...)
		c.offsets = append(c.offsets, uint32(len(c.arena)))
		c.index[stringpool.Clone(s)] = code
	}
	for i := 0; i < count; i++ {
		c.codes = append(c.codes, code)
	}
	return c.validity.PushN(true, count)
}

// Get returns the string at row i, reporting absence for null rows and
// indexes outside the column. A stored code pointing outside the dictionary
// is a core bug: Get fails fast with the structured internal error rather
// than decoding garbage.
func (c *CategoricalColumn) Get(i int) (string, bool) {
	if i < 0 || i >= len(c.codes) {
		return "", false
	}
	if !c.validity.get(i) {
		return "", false
	}
	code := c.codes[i]
	if int(code) >= c.DictionarySize() {
		panic(errors.Newf(errors.ErrorTypeInternal,
			"categorical code %d at row %d outside dictionary of size %d",
			code, i, c.DictionarySize()))
	}
	return c.dictValue(code), true
}

// IsNull reports whether row i is null.
func (c *CategoricalColumn) IsNull(i int) (bool, error) {
	valid, err := c.validity.Get(i)
	if err != nil {
		return false, err
	}
	return !valid, nil
}

// Value returns the dynamically-typed value at i.
func (c *CategoricalColumn) Value(i int) (any, bool) {
	v, ok := c.Get(i)
	if !ok {
		return nil, false
	}
	return v, true
}

// AppendValue adds a dynamically-typed value; nil appends a null.
func (c *CategoricalColumn) AppendValue(v any) error {
	if c.view {
		return errViewAppend()
	}
	if v == nil {
		return c.AppendNull()
	}
	s, ok := v.(string)
	if !ok {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"expected string, got %T", v)
	}
	return c.Append(s)
}

// DictionarySize returns the number of distinct strings seen.
func (c *CategoricalColumn) DictionarySize() int {
	return len(c.offsets) - 1
}

// CodeOf returns the dictionary code for s, if present.
func (c *CategoricalColumn) CodeOf(s string) (uint32, bool) {
	code, ok := c.index[s]
	return code, ok
}

// CodeAt returns the code stored at row i, reporting absence for null or
// out-of-range rows.
func (c *CategoricalColumn) CodeAt(i int) (uint32, bool) {
	if i < 0 || i >= len(c.codes) {
		return 0, false
	}
	if !c.validity.get(i) {
		return 0, false
	}
	return c.codes[i], true
}

// DictValue decodes a dictionary code, failing with the internal error for
// codes outside the dictionary.
func (c *CategoricalColumn) DictValue(code uint32) (string, error) {
	if int(code) >= c.DictionarySize() {
		return "", errors.Newf(errors.ErrorTypeInternal,
			"categorical code %d outside dictionary of size %d", code, c.DictionarySize())
	}
	return c.dictValue(code), nil
}

// dictValue decodes without bounds checks. The returned string aliases the
// arena, which never rewrites published bytes.
func (c *CategoricalColumn) dictValue(code uint32) string {
	return stringpool.BytesToString(c.arena[c.offsets[code]:c.offsets[code+1]])
}

// Slice returns a zero-copy view of rows [start, end) sharing the
// dictionary and backing buffers. The view rejects appends.
func (c *CategoricalColumn) Slice(start, end int) (Handle, error) {
	if start < 0 || end < start || end > len(c.codes) {
		return nil, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"column slice [%d, %d) out of range [0, %d]", start, end, len(c.codes))
	}
	mask, err := c.validity.Slice(start, end)
	if err != nil {
		return nil, err
	}
	return &CategoricalColumn{
		arena:    c.arena,
		offsets:  c.offsets,
		codes:    c.codes[start:end:end],
		index:    c.index,
		validity: mask,
		view:     true,
	}, nil
}

// Validity exposes the column's mask for vectorized readers. Treat it as
// read-only.
func (c *CategoricalColumn) Validity() *ValidityMask {
	return c.validity
}

// NullCount returns the number of null rows.
func (c *CategoricalColumn) NullCount() int {
	return len(c.codes) - c.validity.CountValid()
}

// MemoryUsage returns the bytes held by the arena, offsets, codes, index,
// and mask.
func (c *CategoricalColumn) MemoryUsage() int64 {
	total := int64(cap(c.arena)) +
		int64(cap(c.offsets))*4 +
		int64(cap(c.codes))*4 +
		c.validity.MemoryUsage()
	// Index keys duplicate the arena bytes, plus a code per entry.
	total += int64(len(c.arena)) + int64(len(c.index))*4
	return total
}

// Validate checks the column's internal invariants: mask length, offset
// monotonicity, and that every valid row's code points inside the
// dictionary. Null rows carry placeholder codes and are exempt.
func (c *CategoricalColumn) Validate() error {
	if c.validity.Len() != len(c.codes) {
		return errors.Newf(errors.ErrorTypeInternal,
			"validity length %d does not match %d codes", c.validity.Len(), len(c.codes))
	}
	if len(c.offsets) == 0 || c.offsets[0] != 0 {
		return errors.New(errors.ErrorTypeInternal, "dictionary offsets must start at 0")
	}
	for i := 1; i < len(c.offsets); i++ {
		if c.offsets[i] < c.offsets[i-1] {
			return errors.Newf(errors.ErrorTypeInternal,
				"dictionary offsets decrease at entry %d", i)
		}
	}
	if last := c.offsets[len(c.offsets)-1]; !c.view && int(last) != len(c.arena) {
		return errors.Newf(errors.ErrorTypeInternal,
			"dictionary offsets end at %d, arena holds %d bytes", last, len(c.arena))
	}
	size := uint32(c.DictionarySize())
	for i, code := range c.codes {
		if c.validity.get(i) && code >= size {
			return errors.Newf(errors.ErrorTypeInternal,
				"categorical code %d at row %d outside dictionary of size %d", code, i, size)
		}
	}
	return nil
}

func (c *CategoricalColumn) handleVariant() {}
