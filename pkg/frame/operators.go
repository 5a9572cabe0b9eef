package frame

import (
	"cmp"
	"context"
	"time"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/pool"
)

// Predicate inspects a batch and returns the visible rows that pass, in
// batch-local coordinates. Predicates must not mutate the batch.
type Predicate func(rb *RowBatch) (*Selection, error)

// MapFunc derives one value per visible row. Returning nil yields a null.
type MapFunc func(rb *RowBatch, row int) (any, error)

// Filter narrows the stream to rows the predicate selects. Only the index
// selection threads downstream; no values are copied. Batches where
// nothing passes are skipped entirely.
func (s *Stream) Filter(pred Predicate) *Stream {
	return &Stream{src: &filterStage{up: s.src, pred: pred}}
}

// Select projects the stream to the named columns, zero-copy. Unknown
// names fail with UnknownColumn on first pull.
func (s *Stream) Select(names ...string) *Stream {
	st := &selectStage{up: s.src, names: names}
	if up := s.src.schema(); up != nil {
		projected, err := up.Project(names)
		if err != nil {
			return failed(err)
		}
		st.projected = projected
	}
	return &Stream{src: st}
}

// MapColumn adds a derived column computed per batch on pull, never
// materialized into the source table. fn runs exactly once per visible
// row. When name already exists the derived column replaces it; otherwise
// the schema grows by one field.
func (s *Stream) MapColumn(name string, dtype columnar.DType, fn MapFunc) *Stream {
	st := &mapStage{up: s.src, name: name, dtype: dtype, fn: fn}
	if up := s.src.schema(); up != nil {
		out, err := mapSchema(up, name, dtype)
		if err != nil {
			return failed(err)
		}
		st.out = out
	}
	return &Stream{src: st}
}

type filterStage struct {
	up   stage
	pred Predicate
}

func (f *filterStage) schema() *columnar.Schema { return f.up.schema() }

func (f *filterStage) next(ctx context.Context) (*RowBatch, error) {
	for {
		rb, err := f.up.next(ctx)
		if err != nil {
			return nil, err
		}
		sel, err := f.pred(rb)
		if err != nil {
			return nil, err
		}
		if sel == nil || sel.IsEmpty() {
			continue
		}
		if sel.Count() == rb.Len() {
			return rb, nil
		}
		if rb.sel == nil {
			// The index list rides on the batch, so it owns its storage.
			return rb.withSelection(sel.Indices()), nil
		}
		// Composing with an existing selection copies, so the relative
		// list is scratch and goes back to the pool.
		scratch := pool.GetRowIndex(sel.Count())
		scratch = sel.AppendIndices(scratch)
		out := rb.withSelection(scratch)
		pool.PutRowIndex(scratch)
		return out, nil
	}
}

type selectStage struct {
	up        stage
	names     []string
	projected *columnar.Schema
}

func (p *selectStage) schema() *columnar.Schema { return p.projected }

func (p *selectStage) next(ctx context.Context) (*RowBatch, error) {
	rb, err := p.up.next(ctx)
	if err != nil {
		return nil, err
	}
	return rb.project(p.names)
}

type mapStage struct {
	up    stage
	name  string
	dtype columnar.DType
	fn    MapFunc
	out   *columnar.Schema
}

func (m *mapStage) schema() *columnar.Schema { return m.out }

func (m *mapStage) next(ctx context.Context) (*RowBatch, error) {
	rb, err := m.up.next(ctx)
	if err != nil {
		return nil, err
	}

	out := m.out
	if out == nil {
		if out, err = mapSchema(rb.Schema(), m.name, m.dtype); err != nil {
			return nil, err
		}
	}

	derived, err := m.derive(rb)
	if err != nil {
		return nil, err
	}

	handles := make([]columnar.Handle, out.Len())
	for i, f := range out.Fields() {
		if f.Name == m.name {
			handles[i] = derived
			continue
		}
		src, _ := rb.Schema().Index(f.Name)
		handles[i] = rb.handles[src]
	}
	return &RowBatch{schema: out, handles: handles, span: rb.span, sel: rb.sel}, nil
}

// derive materializes the new column across the batch's full span so the
// batch's one selection keeps applying to every column. fn runs only for
// visible rows; hidden positions hold nulls.
func (m *mapStage) derive(rb *RowBatch) (columnar.Handle, error) {
	col, err := columnar.NewHandle(m.dtype)
	if err != nil {
		return nil, err
	}
	if rb.sel == nil {
		for i := 0; i < rb.span; i++ {
			v, err := m.fn(rb, i)
			if err != nil {
				return nil, err
			}
			if err := col.AppendValue(v); err != nil {
				return nil, err
			}
		}
		return col, nil
	}

	filled := 0
	for vis, p := range rb.sel {
		for filled < int(p) {
			if err := col.AppendNull(); err != nil {
				return nil, err
			}
			filled++
		}
		v, err := m.fn(rb, vis)
		if err != nil {
			return nil, err
		}
		if err := col.AppendValue(v); err != nil {
			return nil, err
		}
		filled++
	}
	for filled < rb.span {
		if err := col.AppendNull(); err != nil {
			return nil, err
		}
		filled++
	}
	return col, nil
}

func mapSchema(up *columnar.Schema, name string, dtype columnar.DType) (*columnar.Schema, error) {
	fields := make([]columnar.Field, 0, up.Len()+1)
	replaced := false
	for _, f := range up.Fields() {
		if f.Name == name {
			f.DType = dtype
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, columnar.Field{Name: name, DType: dtype})
	}
	return columnar.NewSchema(fields)
}

// Equal selects rows where the named column equals value. For categorical
// columns the dictionary is probed once and rows compare by code, so each
// row costs one integer compare instead of a string compare.
func Equal(name string, value any) Predicate {
	return compare(name, value, cmpEQ)
}

// NotEqual selects rows where the named column differs from value. Null
// rows never pass.
func NotEqual(name string, value any) Predicate {
	return compare(name, value, cmpNE)
}

// GreaterThan selects rows where the named column exceeds value. Ordered
// dtypes only (int, float, timestamp, categorical by string order).
func GreaterThan(name string, value any) Predicate {
	return compare(name, value, cmpGT)
}

// LessThan selects rows strictly below value.
func LessThan(name string, value any) Predicate {
	return compare(name, value, cmpLT)
}

// NotNull selects rows where the named column holds a value.
func NotNull(name string) Predicate {
	return func(rb *RowBatch) (*Selection, error) {
		h, err := rb.Handle(name)
		if err != nil {
			return nil, err
		}
		sel := NewSelection()
		for i := 0; i < rb.Len(); i++ {
			null, err := h.IsNull(rb.pos(i))
			if err != nil {
				return nil, err
			}
			if !null {
				sel.Add(uint32(i))
			}
		}
		return sel, nil
	}
}

// And selects rows passing every predicate.
func And(preds ...Predicate) Predicate {
	return func(rb *RowBatch) (*Selection, error) {
		out := SelectAll(rb.Len())
		for _, p := range preds {
			sel, err := p(rb)
			if err != nil {
				return nil, err
			}
			out.And(sel)
			if out.IsEmpty() {
				return out, nil
			}
		}
		return out, nil
	}
}

// Or selects rows passing any predicate.
func Or(preds ...Predicate) Predicate {
	return func(rb *RowBatch) (*Selection, error) {
		out := NewSelection()
		for _, p := range preds {
			sel, err := p(rb)
			if err != nil {
				return nil, err
			}
			out.Or(sel)
		}
		return out, nil
	}
}

// Not selects the complement of pred within the batch.
func Not(pred Predicate) Predicate {
	return func(rb *RowBatch) (*Selection, error) {
		sel, err := pred(rb)
		if err != nil {
			return nil, err
		}
		return sel.Not(rb.Len()), nil
	}
}

type cmpOp uint8

const (
	cmpEQ cmpOp = iota
	cmpNE
	cmpGT
	cmpLT
)

// compare builds a typed row loop per batch: one type switch, one value
// conversion, then a tight scan over visible rows. Null rows never pass
// any comparison.
func compare(name string, value any, op cmpOp) Predicate {
	return func(rb *RowBatch) (*Selection, error) {
		h, err := rb.Handle(name)
		if err != nil {
			return nil, err
		}
		switch c := h.(type) {
		case *columnar.Column[int64]:
			want, err := columnar.AsInt64(value)
			if err != nil {
				return nil, err
			}
			return scanOrdered(rb, c, want, op), nil
		case *columnar.Column[float64]:
			want, err := columnar.AsFloat64(value)
			if err != nil {
				return nil, err
			}
			// IEEE comparisons: NaN rows fail every test except NotEqual.
			return scanOrdered(rb, c, want, op), nil
		case *columnar.Column[bool]:
			want, ok := value.(bool)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
					"expected bool for column %q, got %T", name, value)
			}
			if op != cmpEQ && op != cmpNE {
				return nil, errors.Newf(errors.ErrorTypeUnsupported,
					"ordered comparison on bool column %q", name)
			}
			return scanBool(rb, c, want, op), nil
		case *columnar.Column[time.Time]:
			want, ok := value.(time.Time)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
					"expected timestamp for column %q, got %T", name, value)
			}
			return scanTime(rb, c, want, op), nil
		case *columnar.CategoricalColumn:
			return scanCategorical(rb, c, name, value, op)
		default:
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"unhandled column variant %T", h)
		}
	}
}

func scanOrdered[T cmp.Ordered](rb *RowBatch, c *columnar.Column[T], want T, op cmpOp) *Selection {
	sel := NewSelection()
	for i := 0; i < rb.Len(); i++ {
		v, ok := c.Get(rb.pos(i))
		if !ok {
			continue
		}
		var pass bool
		switch op {
		case cmpEQ:
			pass = v == want
		case cmpNE:
			pass = v != want
		case cmpGT:
			pass = v > want
		default:
			pass = v < want
		}
		if pass {
			sel.Add(uint32(i))
		}
	}
	return sel
}

func scanBool(rb *RowBatch, c *columnar.Column[bool], want bool, op cmpOp) *Selection {
	sel := NewSelection()
	for i := 0; i < rb.Len(); i++ {
		v, ok := c.Get(rb.pos(i))
		if !ok {
			continue
		}
		if (op == cmpEQ) == (v == want) {
			sel.Add(uint32(i))
		}
	}
	return sel
}

func scanTime(rb *RowBatch, c *columnar.Column[time.Time], want time.Time, op cmpOp) *Selection {
	sel := NewSelection()
	for i := 0; i < rb.Len(); i++ {
		v, ok := c.Get(rb.pos(i))
		if !ok {
			continue
		}
		var pass bool
		switch op {
		case cmpEQ:
			pass = v.Equal(want)
		case cmpNE:
			pass = !v.Equal(want)
		case cmpGT:
			pass = v.After(want)
		default:
			pass = v.Before(want)
		}
		if pass {
			sel.Add(uint32(i))
		}
	}
	return sel
}

func scanCategorical(rb *RowBatch, c *columnar.CategoricalColumn, name string, value any, op cmpOp) (*Selection, error) {
	want, ok := value.(string)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"expected string for column %q, got %T", name, value)
	}

	sel := NewSelection()
	switch op {
	case cmpEQ, cmpNE:
		code, present := c.CodeOf(want)
		for i := 0; i < rb.Len(); i++ {
			rowCode, valid := c.CodeAt(rb.pos(i))
			if !valid {
				continue
			}
			eq := present && rowCode == code
			if (op == cmpEQ) == eq {
				sel.Add(uint32(i))
			}
		}
	default:
		// Order is not encoded in the dictionary, so ordered compares
		// decode each row.
		for i := 0; i < rb.Len(); i++ {
			v, valid := c.Get(rb.pos(i))
			if !valid {
				continue
			}
			if (op == cmpGT && v > want) || (op == cmpLT && v < want) {
				sel.Add(uint32(i))
			}
		}
	}
	return sel, nil
}
