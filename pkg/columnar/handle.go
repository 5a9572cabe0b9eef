package columnar

import (
	"time"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Handle is the polymorphic face of a column. The concrete set is closed:
// Column[int64], Column[float64], Column[bool], Column[time.Time], and
// CategoricalColumn. Code that needs the typed payload switches on DType
// (or type-switches the handle) and may treat any other variant as an
// internal error; the unexported marker method keeps outside packages from
// adding variants.
type Handle interface {
	// DType identifies the concrete variant.
	DType() DType
	// Len returns the number of rows, valid and null alike.
	Len() int
	// IsNull reports whether row i is null, failing for out-of-range i.
	IsNull(i int) (bool, error)
	// Value returns the dynamically-typed value at i: int64, float64,
	// bool, time.Time, or string depending on the variant. Null and
	// out-of-range rows report absence.
	Value(i int) (any, bool)
	// AppendValue adds a dynamically-typed value; nil appends a null.
	// Values of the wrong type fail with a schema mismatch, and views
	// reject all appends.
	AppendValue(v any) error
	// AppendNull adds one null row.
	AppendNull() error
	// Slice returns a zero-copy read-only view of rows [start, end).
	Slice(start, end int) (Handle, error)
	// Validity exposes the column's mask. Treat it as read-only.
	Validity() *ValidityMask
	// NullCount returns the number of null rows.
	NullCount() int
	// MemoryUsage returns the bytes held by the column's buffers.
	MemoryUsage() int64
	// Validate checks internal invariants, returning an internal error
	// on corruption.
	Validate() error

	handleVariant()
}

// NewHandle creates an empty appendable column of the given dtype.
func NewHandle(dtype DType) (Handle, error) {
	switch dtype {
	case DTypeInt:
		return NewIntColumn(), nil
	case DTypeFloat:
		return NewFloatColumn(), nil
	case DTypeBool:
		return NewBoolColumn(), nil
	case DTypeTimestamp:
		return NewTimestampColumn(), nil
	case DTypeCategorical:
		return NewCategoricalColumn(), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}

// AsInt64 widens any integer value to int64. Floats are rejected even when
// integral: silent truncation across an append boundary hides data bugs.
func AsInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	default:
		return 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"expected integer, got %T", v)
	}
}

// AsFloat64 widens numeric values to float64. Integers are accepted since
// every int32 and smaller converts exactly.
func AsFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"expected float, got %T", v)
	}
}

// CheckValue reports whether v could be appended to a column of the given
// dtype without performing the append. nil passes for every dtype since any
// column accepts a null. Batch validation uses this to reject a whole batch
// before any column grows.
func CheckValue(dtype DType, v any) error {
	if v == nil {
		return nil
	}
	switch dtype {
	case DTypeInt:
		_, err := AsInt64(v)
		return err
	case DTypeFloat:
		_, err := AsFloat64(v)
		return err
	case DTypeBool:
		if _, ok := v.(bool); !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"expected bool, got %T", v)
		}
		return nil
	case DTypeTimestamp:
		if _, ok := v.(time.Time); !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"expected timestamp, got %T", v)
		}
		return nil
	case DTypeCategorical:
		if _, ok := v.(string); !ok {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"expected string, got %T", v)
		}
		return nil
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}
