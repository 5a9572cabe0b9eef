package frame

import (
	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Table is the top-level dataframe: an ordered set of named column handles
// sharing one row count. Tables grow only by whole batches during
// construction; there is no row-level insert, delete, or update anywhere
// in the API. A fully built table is immutable and safe to share across
// readers.
type Table struct {
	schema  *columnar.Schema
	handles []columnar.Handle
	rows    int
	view    bool
}

// NewTable creates an empty table with one appendable column per schema
// field.
func NewTable(schema *columnar.Schema) (*Table, error) {
	handles := make([]columnar.Handle, schema.Len())
	for i, f := range schema.Fields() {
		h, err := columnar.NewHandle(f.DType)
		if err != nil {
			return nil, err
		}
		handles[i] = h
	}
	return &Table{schema: schema, handles: handles}, nil
}

// NewTableFromHandles assembles a table around existing columns. Every
// handle must match its schema field and all must agree on length.
func NewTableFromHandles(schema *columnar.Schema, handles []columnar.Handle) (*Table, error) {
	if len(handles) != schema.Len() {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"%d columns for %d schema fields", len(handles), schema.Len())
	}
	rows := 0
	for i, h := range handles {
		f := schema.Field(i)
		if h.DType() != f.DType {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q is %v, schema declares %v", f.Name, h.DType(), f.DType)
		}
		if i == 0 {
			rows = h.Len()
		} else if h.Len() != rows {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"column %q has %d rows, expected %d", f.Name, h.Len(), rows)
		}
	}
	return &Table{schema: schema, handles: handles, rows: rows}, nil
}

// Schema returns the table's schema.
func (t *Table) Schema() *columnar.Schema { return t.schema }

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.handles) }

// Column returns the named column handle.
func (t *Table) Column(name string) (columnar.Handle, error) {
	i, ok := t.schema.Index(name)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", name)
	}
	return t.handles[i], nil
}

// ColumnAt returns the column handle at schema position i.
func (t *Table) ColumnAt(i int) columnar.Handle { return t.handles[i] }

// AppendBatch grows every column by the batch's rows. The append is strict
// and atomic: a missing or undeclared column, ragged lengths, or a value
// that does not fit its column's dtype fails with SchemaMismatch before
// any column mutates, leaving RowCount unchanged.
func (t *Table) AppendBatch(b Batch) error {
	if t.view {
		return errors.New(errors.ErrorTypeUnsupported, "append through a table view")
	}
	rows, err := validateBatch(t.schema, b)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	for i, f := range t.schema.Fields() {
		h := t.handles[i]
		for _, v := range b[f.Name] {
			if err := h.AppendValue(v); err != nil {
				// Validation cleared the batch, so this is a core bug.
				return errors.Wrapf(err, errors.ErrorTypeInternal,
					"append to validated column %q", f.Name)
			}
		}
	}
	t.rows += rows
	return nil
}

// Select returns a zero-copy view exposing only the named columns, in the
// order given. The view shares column storage with the parent and rejects
// appends.
func (t *Table) Select(names ...string) (*Table, error) {
	schema, err := t.schema.Project(names)
	if err != nil {
		return nil, err
	}
	handles := make([]columnar.Handle, len(names))
	for i, name := range names {
		idx, _ := t.schema.Index(name)
		handles[i] = t.handles[idx]
	}
	return &Table{schema: schema, handles: handles, rows: t.rows, view: true}, nil
}

// Window returns a zero-copy RowBatch over rows [start, end).
func (t *Table) Window(start, end int) (*RowBatch, error) {
	if start < 0 || end < start || end > t.rows {
		return nil, errors.Newf(errors.ErrorTypeIndexOutOfRange,
			"window [%d, %d) out of range [0, %d]", start, end, t.rows)
	}
	handles := make([]columnar.Handle, len(t.handles))
	for i, h := range t.handles {
		view, err := h.Slice(start, end)
		if err != nil {
			return nil, err
		}
		handles[i] = view
	}
	return &RowBatch{schema: t.schema, handles: handles, span: end - start}, nil
}

// Stream begins a lazy pull pipeline scanning the table in batches.
func (t *Table) Stream(opts ...StreamOption) *Stream {
	cfg := streamConfig{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stream{src: &tableScan{table: t, batchSize: cfg.batchSize}}
}

// Filter begins a lazy pull pipeline yielding only rows the predicate
// selects. Equivalent to Stream().Filter(pred).
func (t *Table) Filter(pred Predicate) *Stream {
	return t.Stream().Filter(pred)
}

// MemoryUsage returns the bytes held by all column buffers.
func (t *Table) MemoryUsage() int64 {
	var total int64
	for _, h := range t.handles {
		total += h.MemoryUsage()
	}
	return total
}

// Validate checks that every column passes its own invariants and agrees
// on the table's row count.
func (t *Table) Validate() error {
	for i, h := range t.handles {
		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeInternal,
				"column %q", t.schema.Field(i).Name)
		}
		if h.Len() != t.rows {
			return errors.Newf(errors.ErrorTypeInternal,
				"column %q has %d rows, table reports %d", t.schema.Field(i).Name, h.Len(), t.rows)
		}
	}
	return nil
}

// appendRowBatch copies a batch's visible rows into the table. Used by
// Collect; the batch's schema must equal the table's.
func (t *Table) appendRowBatch(rb *RowBatch) error {
	if t.view {
		return errors.New(errors.ErrorTypeUnsupported, "append through a table view")
	}
	if !t.schema.Equal(rb.Schema()) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"batch schema (%s) does not match table schema (%s)", rb.Schema(), t.schema)
	}
	for i, h := range t.handles {
		if err := appendVisible(h, rb.handles[i], rb, 0, rb.Len()); err != nil {
			return err
		}
	}
	t.rows += rb.Len()
	return nil
}
