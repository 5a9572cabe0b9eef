package frame

import (
	"time"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Batch is the producer-side form of a group of rows: column name to value
// sequence, one entry per schema field, nil element = null. Producers fill
// batches; Table.AppendBatch and stream sources validate them against the
// declared schema before any column grows.
type Batch map[string][]any

// validateBatch checks b against schema: every declared column present,
// no undeclared columns, equal lengths, every value appendable to its
// column's dtype. Returns the row count. Nothing is mutated, which is what
// makes batch appends atomic: validation either clears the whole batch or
// rejects it before a single value lands.
func validateBatch(schema *columnar.Schema, b Batch) (int, error) {
	rows := -1
	for _, f := range schema.Fields() {
		vals, ok := b[f.Name]
		if !ok {
			return 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"batch missing column %q", f.Name)
		}
		if rows == -1 {
			rows = len(vals)
		} else if len(vals) != rows {
			return 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"ragged batch: column %q has %d values, expected %d", f.Name, len(vals), rows)
		}
		for i, v := range vals {
			if err := columnar.CheckValue(f.DType, v); err != nil {
				return 0, errors.Wrapf(err, errors.ErrorTypeSchemaMismatch,
					"column %q row %d", f.Name, i)
			}
		}
	}
	if len(b) != schema.Len() {
		for name := range b {
			if !schema.Has(name) {
				return 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
					"batch has undeclared column %q", name)
			}
		}
	}
	if rows == -1 {
		rows = 0
	}
	return rows, nil
}

// RowBatch is a non-owning window over a set of columns: shared handles, a
// contiguous span, and optionally a selection of visible rows inside that
// span. Values are never copied; only the selection threads through
// transformations. A batch with a nil selection exposes every span row.
type RowBatch struct {
	schema  *columnar.Schema
	handles []columnar.Handle
	span    int
	sel     []uint32 // ascending positions in [0, span); nil = all
}

// NewRowBatch wraps handles in a batch view. Every handle must cover
// exactly span rows and pair up with the schema field at the same
// position.
func NewRowBatch(schema *columnar.Schema, handles []columnar.Handle, span int) (*RowBatch, error) {
	if len(handles) != schema.Len() {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"%d handles for %d schema fields", len(handles), schema.Len())
	}
	for i, h := range handles {
		if h.Len() != span {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column %q has %d rows, window expects %d", schema.Field(i).Name, h.Len(), span)
		}
		if h.DType() != schema.Field(i).DType {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column %q is %v, schema declares %v", schema.Field(i).Name, h.DType(), schema.Field(i).DType)
		}
	}
	return &RowBatch{schema: schema, handles: handles, span: span}, nil
}

// Schema returns the batch's schema.
func (rb *RowBatch) Schema() *columnar.Schema { return rb.schema }

// Len returns the number of visible rows.
func (rb *RowBatch) Len() int {
	if rb.sel != nil {
		return len(rb.sel)
	}
	return rb.span
}

// Span returns the length of the underlying window, selected or not.
func (rb *RowBatch) Span() int { return rb.span }

// pos maps a visible row index to its position within the span.
func (rb *RowBatch) pos(i int) int {
	if rb.sel != nil {
		return int(rb.sel[i])
	}
	return i
}

// Indices returns the visible positions within the span, or nil when every
// span row is visible. Shared, read-only.
func (rb *RowBatch) Indices() []uint32 { return rb.sel }

// Handle returns the named column over the full span. Positions into it
// are span positions; respect the batch's selection when reading.
func (rb *RowBatch) Handle(name string) (columnar.Handle, error) {
	i, ok := rb.schema.Index(name)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", name)
	}
	return rb.handles[i], nil
}

// HandleAt returns the column at schema position i over the full span.
func (rb *RowBatch) HandleAt(i int) columnar.Handle { return rb.handles[i] }

// Value returns the value of the named column at visible row i.
func (rb *RowBatch) Value(name string, i int) (any, bool, error) {
	h, err := rb.Handle(name)
	if err != nil {
		return nil, false, err
	}
	if i < 0 || i >= rb.Len() {
		return nil, false, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"row %d out of range [0, %d)", i, rb.Len())
	}
	v, ok := h.Value(rb.pos(i))
	return v, ok, nil
}

// IsNull reports whether the named column is null at visible row i.
func (rb *RowBatch) IsNull(name string, i int) (bool, error) {
	h, err := rb.Handle(name)
	if err != nil {
		return false, err
	}
	if i < 0 || i >= rb.Len() {
		return false, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"row %d out of range [0, %d)", i, rb.Len())
	}
	return h.IsNull(rb.pos(i))
}

// withSelection narrows the batch to the given visible rows. rel holds
// positions in visible coordinates [0, rb.Len()), ascending. The result
// shares all storage.
func (rb *RowBatch) withSelection(rel []uint32) *RowBatch {
	sel := rel
	if rb.sel != nil {
		sel = make([]uint32, len(rel))
		for i, r := range rel {
			sel[i] = rb.sel[r]
		}
	}
	return &RowBatch{schema: rb.schema, handles: rb.handles, span: rb.span, sel: sel}
}

// project returns a batch exposing only the named columns, sharing
// storage and selection.
func (rb *RowBatch) project(names []string) (*RowBatch, error) {
	schema, err := rb.schema.Project(names)
	if err != nil {
		return nil, err
	}
	handles := make([]columnar.Handle, len(names))
	for i, name := range names {
		idx, _ := rb.schema.Index(name)
		handles[i] = rb.handles[idx]
	}
	return &RowBatch{schema: schema, handles: handles, span: rb.span, sel: rb.sel}, nil
}

// Materialize copies the visible rows into fresh columns, compacting the
// selection away. The result owns its storage and exposes a contiguous
// span.
func (rb *RowBatch) Materialize() (*RowBatch, error) {
	handles := make([]columnar.Handle, len(rb.handles))
	for i, src := range rb.handles {
		dst, err := columnar.NewHandle(src.DType())
		if err != nil {
			return nil, err
		}
		if err := appendVisible(dst, src, rb, 0, rb.Len()); err != nil {
			return nil, err
		}
		handles[i] = dst
	}
	return &RowBatch{schema: rb.schema, handles: handles, span: rb.Len()}, nil
}

// appendVisible copies visible rows [from, to) of src (one of rb's
// columns) into dst, preserving nulls. Dispatch is typed so values move
// without boxing.
func appendVisible(dst, src columnar.Handle, rb *RowBatch, from, to int) error {
	switch s := src.(type) {
	case *columnar.Column[int64]:
		return copyRows(dst.(*columnar.Column[int64]), s, rb, from, to)
	case *columnar.Column[float64]:
		return copyRows(dst.(*columnar.Column[float64]), s, rb, from, to)
	case *columnar.Column[bool]:
		return copyRows(dst.(*columnar.Column[bool]), s, rb, from, to)
	case *columnar.Column[time.Time]:
		return copyRows(dst.(*columnar.Column[time.Time]), s, rb, from, to)
	case *columnar.CategoricalColumn:
		d := dst.(*columnar.CategoricalColumn)
		for i := from; i < to; i++ {
			if v, ok := s.Get(rb.pos(i)); ok {
				if err := d.Append(v); err != nil {
					return err
				}
			} else if err := d.AppendNull(); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unhandled column variant %T", src)
	}
}

func copyRows[T any](dst, src *columnar.Column[T], rb *RowBatch, from, to int) error {
	for i := from; i < to; i++ {
		if v, ok := src.Get(rb.pos(i)); ok {
			if err := dst.Append(v); err != nil {
				return err
			}
		} else if err := dst.AppendNull(); err != nil {
			return err
		}
	}
	return nil
}
