package frame

import (
	"context"
	"io"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// Melt column names in the long layout.
const (
	MeltVariableColumn = "variable"
	MeltValueColumn    = "value"
)

// Melt reshapes wide rows into long rows: each input row yields one output
// row per value column, carrying the id columns, the value column's name
// under "variable", and its value under "value". All value columns must
// share a dtype. The reshape stays a stream transformation: id and value
// storage is shared with the input, only the small "variable" column is
// materialized per batch, and each pull produces one (input batch, value
// column) pairing.
func (s *Stream) Melt(idCols, valueCols []string) *Stream {
	st := &meltStage{up: s.src, idCols: idCols, valueCols: valueCols}
	if up := s.src.schema(); up != nil {
		out, err := meltSchema(up, idCols, valueCols)
		if err != nil {
			return failed(err)
		}
		st.out = out
	}
	return &Stream{src: st}
}

// Pivot reshapes long rows back into wide rows: one output row per
// distinct indexCol value, one output column per distinct columnsCol
// string, cells taken from valuesCol. This is the engine's one eager
// stage: the output column set is unknowable before all input is seen, so
// the first pull drains the upstream completely, builds the wide table,
// and re-emits it in scan batches. Rows where indexCol or columnsCol is
// null are dropped; when several input rows land in the same cell the last
// one wins; cells never filled stay null. columnsCol must be categorical.
func (s *Stream) Pivot(indexCol, columnsCol, valuesCol string) *Stream {
	return &Stream{src: &pivotStage{
		up:         s.src,
		indexCol:   indexCol,
		columnsCol: columnsCol,
		valuesCol:  valuesCol,
	}}
}

type meltStage struct {
	up        stage
	idCols    []string
	valueCols []string
	out       *columnar.Schema
	cur       *RowBatch
	vi        int
}

func (m *meltStage) schema() *columnar.Schema { return m.out }

func (m *meltStage) next(ctx context.Context) (*RowBatch, error) {
	for m.cur == nil || m.vi >= len(m.valueCols) {
		rb, err := m.up.next(ctx)
		if err != nil {
			return nil, err
		}
		if rb.Len() == 0 {
			continue
		}
		if m.out == nil {
			if m.out, err = meltSchema(rb.Schema(), m.idCols, m.valueCols); err != nil {
				return nil, err
			}
		}
		m.cur = rb
		m.vi = 0
	}

	rb := m.cur
	valueName := m.valueCols[m.vi]
	m.vi++

	handles := make([]columnar.Handle, 0, m.out.Len())
	for _, name := range m.idCols {
		h, err := rb.Handle(name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	// One dictionary entry repeated across the span keeps the batch's
	// selection valid for this column too.
	variable := columnar.NewCategoricalColumn()
	if err := variable.AppendRepeated(valueName, rb.Span()); err != nil {
		return nil, err
	}
	handles = append(handles, variable)

	value, err := rb.Handle(valueName)
	if err != nil {
		return nil, err
	}
	handles = append(handles, value)

	return &RowBatch{schema: m.out, handles: handles, span: rb.span, sel: rb.sel}, nil
}

func meltSchema(up *columnar.Schema, idCols, valueCols []string) (*columnar.Schema, error) {
	if len(valueCols) == 0 {
		return nil, errors.New(errors.ErrorTypeSchemaMismatch, "melt needs at least one value column")
	}
	fields := make([]columnar.Field, 0, len(idCols)+2)
	for _, name := range idCols {
		f, ok := up.Lookup(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", name)
		}
		fields = append(fields, f)
	}
	var valueType columnar.DType
	for i, name := range valueCols {
		f, ok := up.Lookup(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", name)
		}
		if i == 0 {
			valueType = f.DType
		} else if f.DType != valueType {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"melt value columns disagree: %q is %v, %q is %v",
				valueCols[0], valueType, name, f.DType)
		}
	}
	fields = append(fields,
		columnar.Field{Name: MeltVariableColumn, DType: columnar.DTypeCategorical},
		columnar.Field{Name: MeltValueColumn, DType: valueType},
	)
	return columnar.NewSchema(fields)
}

type pivotStage struct {
	up         stage
	indexCol   string
	columnsCol string
	valuesCol  string
	emit       *tableScan
}

func (p *pivotStage) schema() *columnar.Schema {
	if p.emit != nil {
		return p.emit.schema()
	}
	return nil
}

func (p *pivotStage) next(ctx context.Context) (*RowBatch, error) {
	if p.emit == nil {
		built, err := p.build(ctx)
		if err != nil {
			return nil, err
		}
		p.emit = &tableScan{table: built, batchSize: DefaultBatchSize}
	}
	return p.emit.next(ctx)
}

type cellKey struct {
	row int
	col int
}

// build drains the upstream and assembles the wide table. The buffering is
// inherent: no pivoted row can be emitted until every distinct columnsCol
// value has been seen.
func (p *pivotStage) build(ctx context.Context) (*Table, error) {
	var (
		idxType, valType columnar.DType
		typesKnown       bool
		rowKeys          []any
		rowIndex         = make(map[any]int)
		colNames         []string
		colIndex         = make(map[string]int)
		cells            = make(map[cellKey]any)
	)

	if up := p.up.schema(); up != nil {
		var err error
		if idxType, valType, err = p.resolveTypes(up); err != nil {
			return nil, err
		}
		typesKnown = true
	}

	for {
		rb, err := p.up.next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !typesKnown {
			if idxType, valType, err = p.resolveTypes(rb.Schema()); err != nil {
				return nil, err
			}
			typesKnown = true
		}

		idxH, err := rb.Handle(p.indexCol)
		if err != nil {
			return nil, err
		}
		valH, err := rb.Handle(p.valuesCol)
		if err != nil {
			return nil, err
		}
		colH, err := rb.Handle(p.columnsCol)
		if err != nil {
			return nil, err
		}
		cats, ok := colH.(*columnar.CategoricalColumn)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
				"pivot columns column %q must be categorical, got %v", p.columnsCol, colH.DType())
		}

		for i := 0; i < rb.Len(); i++ {
			pos := rb.pos(i)
			name, ok := cats.Get(pos)
			if !ok {
				continue
			}
			idxV, ok := idxH.Value(pos)
			if !ok {
				continue
			}

			r, seen := rowIndex[idxV]
			if !seen {
				r = len(rowKeys)
				rowIndex[idxV] = r
				rowKeys = append(rowKeys, idxV)
			}
			c, seen := colIndex[name]
			if !seen {
				c = len(colNames)
				colIndex[name] = c
				colNames = append(colNames, name)
			}

			v, ok := valH.Value(pos)
			if !ok {
				v = nil
			}
			cells[cellKey{row: r, col: c}] = v
		}
	}

	if !typesKnown {
		return nil, errors.New(errors.ErrorTypeUnsupported,
			"pivot of an empty stream with unknown schema")
	}

	fields := make([]columnar.Field, 0, len(colNames)+1)
	fields = append(fields, columnar.Field{Name: p.indexCol, DType: idxType})
	for _, name := range colNames {
		fields = append(fields, columnar.Field{Name: name, DType: valType})
	}
	schema, err := columnar.NewSchema(fields)
	if err != nil {
		return nil, err
	}

	handles := make([]columnar.Handle, len(fields))
	idxCol, err := columnar.NewHandle(idxType)
	if err != nil {
		return nil, err
	}
	for _, v := range rowKeys {
		if err := idxCol.AppendValue(v); err != nil {
			return nil, err
		}
	}
	handles[0] = idxCol

	for c := range colNames {
		col, err := columnar.NewHandle(valType)
		if err != nil {
			return nil, err
		}
		for r := range rowKeys {
			v, present := cells[cellKey{row: r, col: c}]
			if !present {
				v = nil
			}
			if err := col.AppendValue(v); err != nil {
				return nil, err
			}
		}
		handles[c+1] = col
	}

	return NewTableFromHandles(schema, handles)
}

func (p *pivotStage) resolveTypes(up *columnar.Schema) (columnar.DType, columnar.DType, error) {
	idx, ok := up.Lookup(p.indexCol)
	if !ok {
		return 0, 0, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", p.indexCol)
	}
	cols, ok := up.Lookup(p.columnsCol)
	if !ok {
		return 0, 0, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", p.columnsCol)
	}
	if cols.DType != columnar.DTypeCategorical {
		return 0, 0, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"pivot columns column %q must be categorical, got %v", p.columnsCol, cols.DType)
	}
	val, ok := up.Lookup(p.valuesCol)
	if !ok {
		return 0, 0, errors.Newf(errors.ErrorTypeUnknownColumn, "no column named %q", p.valuesCol)
	}
	return idx.DType, val.DType, nil
}
