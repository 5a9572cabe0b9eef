package frame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

func wideTable(t *testing.T) *Table {
	t.Helper()
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "city", DType: columnar.DTypeCategorical},
		{Name: "q1", DType: columnar.DTypeFloat},
		{Name: "q2", DType: columnar.DTypeFloat},
		{Name: "q3", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)

	tbl, err := NewTable(schema)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(Batch{
		"city": {"oslo", "lima", "pune"},
		"q1":   {1.0, 4.0, 7.0},
		"q2":   {2.0, nil, 8.0},
		"q3":   {3.0, 6.0, 9.0},
	}))
	return tbl
}

func TestMeltShape(t *testing.T) {
	tbl := wideTable(t)

	out, err := tbl.Stream().
		Melt([]string{"city"}, []string{"q1", "q2", "q3"}).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "variable", "value"}, out.Schema().Names())
	assert.Equal(t, 9, out.RowCount(), "one long row per wide row per value column")

	f, ok := out.Schema().Lookup("variable")
	require.True(t, ok)
	assert.Equal(t, columnar.DTypeCategorical, f.DType)
	f, ok = out.Schema().Lookup("value")
	require.True(t, ok)
	assert.Equal(t, columnar.DTypeFloat, f.DType)

	// The melt emits one batch per value column, so rows group by
	// variable with original row order inside each group.
	assert.Equal(t,
		[]any{"oslo", "lima", "pune", "oslo", "lima", "pune", "oslo", "lima", "pune"},
		collectColumn(t, out, "city"))
	assert.Equal(t,
		[]any{"q1", "q1", "q1", "q2", "q2", "q2", "q3", "q3", "q3"},
		collectColumn(t, out, "variable"))
	assert.Equal(t,
		[]any{1.0, 4.0, 7.0, 2.0, nil, 8.0, 3.0, 6.0, 9.0},
		collectColumn(t, out, "value"))
}

func TestMeltValidation(t *testing.T) {
	tbl := ordersTable(t)
	ctx := context.Background()

	_, err := tbl.Stream().Melt([]string{"id"}, []string{"ghost"}).Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownColumn(err))

	_, err = tbl.Stream().Melt([]string{"id"}, []string{"price", "region"}).Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err), "value columns of mixed dtypes cannot melt")

	_, err = tbl.Stream().Melt([]string{"id"}, nil).Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestMeltPivotRoundTrip(t *testing.T) {
	tbl := wideTable(t)

	out, err := tbl.Stream().
		Melt([]string{"city"}, []string{"q1", "q2", "q3"}).
		Pivot("city", "variable", "value").
		Collect(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"city", "q1", "q2", "q3"}, out.Schema().Names(),
		"columns return in first-seen order")
	require.Equal(t, tbl.RowCount(), out.RowCount())

	for _, name := range []string{"city", "q1", "q2", "q3"} {
		assert.Equal(t, collectColumn(t, tbl, name), collectColumn(t, out, name), "column %q", name)
	}
}

func TestPivotLastWinsAndMissingCells(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "key", DType: columnar.DTypeInt},
		{Name: "metric", DType: columnar.DTypeCategorical},
		{Name: "reading", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)
	tbl, err := NewTable(schema)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(Batch{
		"key":     {int64(1), int64(1), int64(2), int64(1)},
		"metric":  {"temp", "load", "temp", "temp"},
		"reading": {10.0, 0.5, 20.0, 11.0},
	}))

	out, err := tbl.Stream().
		Pivot("key", "metric", "reading").
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"key", "temp", "load"}, out.Schema().Names())
	assert.Equal(t, []any{int64(1), int64(2)}, collectColumn(t, out, "key"))
	assert.Equal(t, []any{11.0, 20.0}, collectColumn(t, out, "temp"),
		"the last duplicate cell wins")
	assert.Equal(t, []any{0.5, nil}, collectColumn(t, out, "load"),
		"cells never filled stay null")
}

func TestPivotSkipsNullKeys(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "key", DType: columnar.DTypeInt},
		{Name: "metric", DType: columnar.DTypeCategorical},
		{Name: "reading", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)
	tbl, err := NewTable(schema)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(Batch{
		"key":     {int64(1), nil, int64(2)},
		"metric":  {"a", "a", nil},
		"reading": {1.0, 2.0, 3.0},
	}))

	out, err := tbl.Stream().
		Pivot("key", "metric", "reading").
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{int64(1)}, collectColumn(t, out, "key"),
		"rows with a null index or null column name cannot be placed")
	assert.Equal(t, []any{1.0}, collectColumn(t, out, "a"))
}

func TestPivotRequiresCategoricalColumns(t *testing.T) {
	tbl := ordersTable(t)

	_, err := tbl.Stream().
		Pivot("id", "price", "region").
		Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestPivotAfterFilter(t *testing.T) {
	tbl := wideTable(t)

	out, err := tbl.Stream().
		Melt([]string{"city"}, []string{"q1", "q2"}).
		Filter(Equal("variable", "q1")).
		Pivot("city", "variable", "value").
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"city", "q1"}, out.Schema().Names())
	assert.Equal(t, collectColumn(t, tbl, "q1"), collectColumn(t, out, "q1"))
}

func TestPivotEmptyInputKeepsIndexColumn(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "key", DType: columnar.DTypeInt},
		{Name: "metric", DType: columnar.DTypeCategorical},
		{Name: "reading", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)
	tbl, err := NewTable(schema)
	require.NoError(t, err)

	out, err := tbl.Stream().
		Pivot("key", "metric", "reading").
		Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, out.Schema().Names())
	assert.Equal(t, 0, out.RowCount())
}

func TestMeltAfterFilterSharesSelection(t *testing.T) {
	tbl := wideTable(t)

	out, err := tbl.Stream().
		Filter(NotEqual("city", "lima")).
		Melt([]string{"city"}, []string{"q1", "q2"}).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		[]any{"oslo", "pune", "oslo", "pune"},
		collectColumn(t, out, "city"))
	assert.Equal(t,
		[]any{1.0, 7.0, 2.0, 8.0},
		collectColumn(t, out, "value"))
}
