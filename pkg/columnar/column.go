package columnar

import (
	"time"
	"unsafe"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Nullable carries a value that may be absent, the option form bulk appends
// take.
type Nullable[T any] struct {
	Value T
	Valid bool
}

// Some wraps a present value.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Value: v, Valid: true}
}

// Null returns an absent value.
func Null[T any]() Nullable[T] {
	return Nullable[T]{}
}

// Column is a homogeneous, append-only value buffer paired with a validity
// mask. The blessed instantiations are Column[int64], Column[float64],
// Column[bool], and Column[time.Time]; strings live in CategoricalColumn.
// A value at an invalid position is unspecified: readers must consult
// validity before trusting it.
type Column[T any] struct {
	dtype    DType
	values   []T
	validity *ValidityMask
	view     bool
}

// NewIntColumn creates an empty int64 column.
func NewIntColumn() *Column[int64] { return newColumn[int64](DTypeInt) }

// NewFloatColumn creates an empty float64 column.
func NewFloatColumn() *Column[float64] { return newColumn[float64](DTypeFloat) }

// NewBoolColumn creates an empty bool column.
func NewBoolColumn() *Column[bool] { return newColumn[bool](DTypeBool) }

// NewTimestampColumn creates an empty time.Time column.
func NewTimestampColumn() *Column[time.Time] { return newColumn[time.Time](DTypeTimestamp) }

func newColumn[T any](dt DType) *Column[T] {
	return &Column[T]{
		dtype:    dt,
		values:   make([]T, 0, 1024),
		validity: NewValidityMask(),
	}
}

// DType returns the column's type tag.
func (c *Column[T]) DType() DType { return c.dtype }

// Len returns the number of rows, valid and null alike.
func (c *Column[T]) Len() int { return len(c.values) }

// Append adds one valid value.
func (c *Column[T]) Append(v T) error {
	if c.view {
		return errViewAppend()
	}
	c.values = append(c.values, v)
	return c.validity.Push(true)
}

// AppendNull adds one null row. The stored placeholder value is unspecified.
func (c *Column[T]) AppendNull() error {
	if c.view {
		return errViewAppend()
	}
	var zero T
	c.values = append(c.values, zero)
	return c.validity.Push(false)
}

// AppendBatch adds a sequence of optional values.
func (c *Column[T]) AppendBatch(vals []Nullable[T]) error {
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

// Get returns the value at i, reporting absence for null rows. Indexes
// outside the column also report absence rather than failing.
func (c *Column[T]) Get(i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(c.values) {
		return zero, false
	}
	if !c.validity.get(i) {
		return zero, false
	}
	return c.values[i], true
}

// IsNull reports whether row i is null.
func (c *Column[T]) IsNull(i int) (bool, error) {
	valid, err := c.validity.Get(i)
	if err != nil {
		return false, err
	}
	return !valid, nil
}

// Value returns the dynamically-typed value at i, reporting absence for
// null or out-of-range rows.
func (c *Column[T]) Value(i int) (any, bool) {
	v, ok := c.Get(i)
	if !ok {
		return nil, false
	}
	return v, true
}

// AppendValue adds a dynamically-typed value; nil appends a null. Values of
// the wrong type fail with SchemaMismatch. Integer and float inputs widen
// to the column's width.
func (c *Column[T]) AppendValue(v any) error {
	if c.view {
		return errViewAppend()
	}
	if v == nil {
		return c.AppendNull()
	}

	switch col := any(c).(type) {
	case *Column[int64]:
		iv, err := AsInt64(v)
		if err != nil {
			return err
		}
		return col.Append(iv)
	case *Column[float64]:
		fv, err := AsFloat64(v)
		if err != nil {
			return err
		}
		return col.Append(fv)
	case *Column[bool]:
		bv, ok := v.(bool)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"expected bool, got %T", v)
		}
		return col.Append(bv)
	case *Column[time.Time]:
		tv, ok := v.(time.Time)
		if !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"expected timestamp, got %T", v)
		}
		return col.Append(tv)
	default:
		return errors.Newf(errors.ErrorTypeInternal,
			"unhandled column instantiation %T", c)
	}
}

// Slice returns a zero-copy view of rows [start, end). The view shares the
// backing buffers and rejects appends.
func (c *Column[T]) Slice(start, end int) (Handle, error) {
	if start < 0 || end < start || end > len(c.values) {
		return nil, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"column slice [%d, %d) out of range [0, %d]", start, end, len(c.values))
	}
	mask, err := c.validity.Slice(start, end)
	if err != nil {
		return nil, err
	}
	return &Column[T]{
		dtype:    c.dtype,
		values:   c.values[start:end:end],
		validity: mask,
		view:     true,
	}, nil
}

// Values exposes the raw value buffer for vectorized readers. Positions
// with a cleared validity bit hold unspecified placeholders.
func (c *Column[T]) Values() []T {
	return c.values
}

// Validity exposes the column's mask for vectorized readers. Treat it as
// read-only.
func (c *Column[T]) Validity() *ValidityMask {
	return c.validity
}

// NullCount returns the number of null rows.
func (c *Column[T]) NullCount() int {
	return len(c.values) - c.validity.CountValid()
}

// MemoryUsage returns the bytes held by the value buffer and mask.
func (c *Column[T]) MemoryUsage() int64 {
	var zero T
	return int64(cap(c.values))*int64(unsafe.Sizeof(zero)) + c.validity.MemoryUsage()
}

// Validate checks the column's internal invariants.
func (c *Column[T]) Validate() error {
	if c.validity.Len() != len(c.values) {
		return errors.Newf(errors.ErrorTypeInternal,
			"validity length %d does not match %d values", c.validity.Len(), len(c.values))
	}
	return nil
}

func (c *Column[T]) handleVariant() {}

func errViewAppend() error {
	return errors.New(errors.ErrorTypeUnsupported, "append on a sliced view")
}
