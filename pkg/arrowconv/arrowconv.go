// Package arrowconv converts between the engine's columnar types and
// Apache Arrow records, and adapts a slice of records into a batch
// producer.
//
// Mapping: Int is arrow int64, Float is arrow float64, Bool is arrow
// boolean, Timestamp is arrow timestamp[ns, UTC], Categorical is arrow
// utf8. Converted records carry plain string columns; dictionary
// encoding stays an engine-side representation.
package arrowconv

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
)

// ToSchema converts an engine schema to an arrow schema.
func ToSchema(schema *columnar.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, schema.Len())
	for i, f := range schema.Fields() {
		at, err := arrowType(f.DType)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: f.Name, Type: at, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// FromSchema converts an arrow schema back. Only the engine's five
// column types have a mapping; anything else is rejected.
func FromSchema(as *arrow.Schema) (*columnar.Schema, error) {
	fields := make([]columnar.Field, len(as.Fields()))
	for i, f := range as.Fields() {
		dt, err := engineType(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeUnsupported, "column %q", f.Name)
		}
		fields[i] = columnar.Field{Name: f.Name, DType: dt}
	}
	return columnar.NewSchema(fields)
}

// ToRecord converts a whole table into one arrow record. The caller
// releases the record.
func ToRecord(tbl *frame.Table, mem memory.Allocator) (arrow.Record, error) {
	rb, err := tbl.Window(0, tbl.RowCount())
	if err != nil {
		return nil, err
	}
	return BatchToRecord(rb, mem)
}

// BatchToRecord converts the visible rows of a batch into one arrow
// record. The caller releases the record.
func BatchToRecord(rb *frame.RowBatch, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	as, err := ToSchema(rb.Schema())
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(mem, as)
	defer builder.Release()

	sel := rb.Indices()
	n := rb.Len()
	for j := 0; j < rb.Schema().Len(); j++ {
		if err := appendColumn(builder.Field(j), rb.HandleAt(j), sel, n); err != nil {
			return nil, err
		}
	}
	return builder.NewRecord(), nil
}

// appendColumn copies the visible rows of one handle into an arrow
// builder, dispatching on the handle's concrete type.
func appendColumn(b array.Builder, h columnar.Handle, sel []uint32, n int) error {
	pos := func(i int) int {
		if sel != nil {
			return int(sel[i])
		}
		return i
	}
	switch col := h.(type) {
	case *columnar.Column[int64]:
		ib := b.(*array.Int64Builder)
		for i := 0; i < n; i++ {
			if v, ok := col.Get(pos(i)); ok {
				ib.Append(v)
			} else {
				ib.AppendNull()
			}
		}
	case *columnar.Column[float64]:
		fb := b.(*array.Float64Builder)
		for i := 0; i < n; i++ {
			if v, ok := col.Get(pos(i)); ok {
				fb.Append(v)
			} else {
				fb.AppendNull()
			}
		}
	case *columnar.Column[bool]:
		bb := b.(*array.BooleanBuilder)
		for i := 0; i < n; i++ {
			if v, ok := col.Get(pos(i)); ok {
				bb.Append(v)
			} else {
				bb.AppendNull()
			}
		}
	case *columnar.Column[time.Time]:
		tb := b.(*array.TimestampBuilder)
		for i := 0; i < n; i++ {
			if v, ok := col.Get(pos(i)); ok {
				tb.Append(arrow.Timestamp(v.UnixNano()))
			} else {
				tb.AppendNull()
			}
		}
	case *columnar.CategoricalColumn:
		sb := b.(*array.StringBuilder)
		for i := 0; i < n; i++ {
			if v, ok := col.Get(pos(i)); ok {
				sb.Append(v)
			} else {
				sb.AppendNull()
			}
		}
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unhandled handle type %T", h)
	}
	return nil
}

// RecordToBatch converts one arrow record into a producer batch. The
// record is read, not retained.
func RecordToBatch(rec arrow.Record) (frame.Batch, error) {
	schema, err := FromSchema(rec.Schema())
	if err != nil {
		return nil, err
	}

	b := make(frame.Batch, schema.Len())
	for j, f := range schema.Fields() {
		vals, err := columnValues(rec.Column(j), int(rec.NumRows()))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeUnsupported, "column %q", f.Name)
		}
		b[f.Name] = vals
	}
	return b, nil
}

// columnValues unloads one arrow array into boxed values, nil for null.
func columnValues(col arrow.Array, n int) ([]any, error) {
	vals := make([]any, n)
	switch c := col.(type) {
	case *array.Int64:
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				vals[i] = c.Value(i)
			}
		}
	case *array.Float64:
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				vals[i] = c.Value(i)
			}
		}
	case *array.Boolean:
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				vals[i] = c.Value(i)
			}
		}
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				vals[i] = c.Value(i).ToTime(unit)
			}
		}
	case *array.String:
		for i := 0; i < n; i++ {
			if !c.IsNull(i) {
				vals[i] = c.Value(i)
			}
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupported, "arrow array type %T", col)
	}
	return vals, nil
}

// ToTable loads a slice of records sharing one schema into a new table.
func ToTable(ctx context.Context, recs []arrow.Record) (*frame.Table, error) {
	src, err := NewRecordSource(recs)
	if err != nil {
		return nil, err
	}
	return frame.LoadTable(ctx, src)
}

// RecordSource adapts arrow records into a batch producer, one batch
// per record. The records stay owned by the caller.
type RecordSource struct {
	schema *columnar.Schema
	recs   []arrow.Record
	pos    int
}

// NewRecordSource creates a source over records that all share the
// first record's schema.
func NewRecordSource(recs []arrow.Record) (*RecordSource, error) {
	if len(recs) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "record source needs at least one record")
	}
	schema, err := FromSchema(recs[0].Schema())
	if err != nil {
		return nil, err
	}
	for i, rec := range recs[1:] {
		if !rec.Schema().Equal(recs[0].Schema()) {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"record %d schema differs from record 0", i+1)
		}
	}
	return &RecordSource{schema: schema, recs: recs}, nil
}

// Schema returns the shared schema.
func (s *RecordSource) Schema() *columnar.Schema { return s.schema }

// Next converts the next record, or returns io.EOF.
func (s *RecordSource) Next(ctx context.Context) (frame.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "record source canceled")
	}
	if s.pos >= len(s.recs) {
		return nil, io.EOF
	}
	b, err := RecordToBatch(s.recs[s.pos])
	if err != nil {
		return nil, err
	}
	s.pos++
	return b, nil
}

func arrowType(dtype columnar.DType) (arrow.DataType, error) {
	switch dtype {
	case columnar.DTypeInt:
		return arrow.PrimitiveTypes.Int64, nil
	case columnar.DTypeFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case columnar.DTypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case columnar.DTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	case columnar.DTypeCategorical:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}

func engineType(at arrow.DataType) (columnar.DType, error) {
	switch at.ID() {
	case arrow.INT64:
		return columnar.DTypeInt, nil
	case arrow.FLOAT64:
		return columnar.DTypeFloat, nil
	case arrow.BOOL:
		return columnar.DTypeBool, nil
	case arrow.TIMESTAMP:
		return columnar.DTypeTimestamp, nil
	case arrow.STRING:
		return columnar.DTypeCategorical, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeUnsupported, "no mapping for arrow type %s", at)
	}
}
