package frame

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

func TestFilterPreservesOrder(t *testing.T) {
	tbl, err := NewTable(measureSchema(t))
	require.NoError(t, err)
	vals := make([]any, 100)
	for i := range vals {
		vals[i] = int64(i)
	}
	require.NoError(t, tbl.AppendBatch(Batch{"n": vals}))

	// Small scan batches force the selection to thread across pulls.
	out, err := tbl.Stream(WithBatchSize(7)).
		Filter(func(rb *RowBatch) (*Selection, error) {
			h, err := rb.Handle("n")
			require.NoError(t, err)
			c := h.(*columnar.Column[int64])
			sel := NewSelection()
			for i := 0; i < rb.Len(); i++ {
				if v, ok := c.Get(rb.pos(i)); ok && v%3 == 0 {
					sel.Add(uint32(i))
				}
			}
			return sel, nil
		}).
		Collect(context.Background())
	require.NoError(t, err)

	got := collectColumn(t, out, "n")
	want := []any{}
	for i := 0; i < 100; i += 3 {
		want = append(want, int64(i))
	}
	assert.Equal(t, want, got, "filtered rows must keep original relative order")
}

func TestFilterChaining(t *testing.T) {
	tbl := ordersTable(t)

	out, err := tbl.Stream().
		Filter(GreaterThan("id", int64(1))).
		Filter(Equal("region", "east")).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{int64(3)}, collectColumn(t, out, "id"))
}

func TestFilterSkipsEmptyBatches(t *testing.T) {
	tbl, err := NewTable(measureSchema(t))
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(Batch{"n": {int64(1), int64(2), int64(3), int64(4)}}))

	s := tbl.Stream(WithBatchSize(2)).Filter(Equal("n", int64(4)))
	ctx := context.Background()

	rb, err := s.Next(ctx)
	require.NoError(t, err, "the first matching batch must arrive even when earlier batches match nothing")
	assert.Equal(t, 1, rb.Len())
}

func TestSelectProjection(t *testing.T) {
	tbl := ordersTable(t)

	out, err := tbl.Stream().Select("region", "price").Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "price"}, out.Schema().Names())
	assert.Equal(t, tbl.RowCount(), out.RowCount())
}

func TestSelectUnknownColumn(t *testing.T) {
	tbl := ordersTable(t)

	_, err := tbl.Stream().Select("ghost").Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnknownColumn(err))
}

func TestMapColumnDerives(t *testing.T) {
	tbl := ordersTable(t)

	calls := 0
	out, err := tbl.Stream().
		MapColumn("double_id", columnar.DTypeInt, func(rb *RowBatch, row int) (any, error) {
			calls++
			v, ok, err := rb.Value("id", row)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return v.(int64) * 2, nil
		}).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tbl.RowCount(), calls, "fn must run exactly once per visible row")
	assert.Equal(t, []string{"id", "price", "region", "double_id"}, out.Schema().Names())
	assert.Equal(t, []any{int64(2), int64(4), int64(6), int64(8)}, collectColumn(t, out, "double_id"))
}

func TestMapColumnAfterFilterOnlyVisibleRows(t *testing.T) {
	tbl := ordersTable(t)

	calls := 0
	out, err := tbl.Stream().
		Filter(Equal("region", "east")).
		MapColumn("flag", columnar.DTypeBool, func(rb *RowBatch, row int) (any, error) {
			calls++
			return true, nil
		}).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "hidden rows must not be computed")
	assert.Equal(t, []any{true, true}, collectColumn(t, out, "flag"))
}

func TestMapColumnReplacesExisting(t *testing.T) {
	tbl := ordersTable(t)

	out, err := tbl.Stream().
		MapColumn("price", columnar.DTypeInt, func(rb *RowBatch, row int) (any, error) {
			v, ok, err := rb.Value("id", row)
			if err != nil || !ok {
				return nil, err
			}
			return v, nil
		}).
		Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "price", "region"}, out.Schema().Names())
	f, ok := out.Schema().Lookup("price")
	require.True(t, ok)
	assert.Equal(t, columnar.DTypeInt, f.DType)
	assert.Equal(t, collectColumn(t, out, "id"), collectColumn(t, out, "price"))
}

func TestEqualPredicates(t *testing.T) {
	tbl := ordersTable(t)
	ctx := context.Background()

	t.Run("int", func(t *testing.T) {
		out, err := tbl.Filter(Equal("id", int64(2))).Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(2)}, collectColumn(t, out, "id"))
	})

	t.Run("float null never matches", func(t *testing.T) {
		out, err := tbl.Filter(NotEqual("price", 9.5)).Collect(ctx)
		require.NoError(t, err)
		// Row 3 holds a null price and must not pass NotEqual.
		assert.Equal(t, []any{int64(2), int64(4)}, collectColumn(t, out, "id"))
	})

	t.Run("categorical equal", func(t *testing.T) {
		out, err := tbl.Filter(Equal("region", "east")).Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(3)}, collectColumn(t, out, "id"))
	})

	t.Run("categorical not equal", func(t *testing.T) {
		out, err := tbl.Filter(NotEqual("region", "east")).Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(2), int64(4)}, collectColumn(t, out, "id"))
	})

	t.Run("categorical value outside dictionary", func(t *testing.T) {
		s := tbl.Filter(Equal("region", "atlantis"))
		_, err := s.Next(ctx)
		assert.Equal(t, io.EOF, err, "no row can match a string the dictionary has never seen")
	})

	t.Run("wrong comparison type", func(t *testing.T) {
		_, err := tbl.Filter(Equal("id", "one")).Next(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsSchemaMismatch(err))
	})
}

func TestOrderedPredicates(t *testing.T) {
	tbl := ordersTable(t)
	ctx := context.Background()

	out, err := tbl.Filter(GreaterThan("price", 4.0)).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(4)}, collectColumn(t, out, "id"))

	out, err = tbl.Filter(LessThan("price", 4.0)).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, collectColumn(t, out, "id"))

	out, err = tbl.Filter(GreaterThan("region", "north")).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, collectColumn(t, out, "id"), "categorical order is string order")
}

func TestTimestampPredicates(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "at", DType: columnar.DTypeTimestamp},
	})
	require.NoError(t, err)
	tbl, err := NewTable(schema)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, tbl.AppendBatch(Batch{
		"at": {base, base.Add(time.Hour), nil, base.Add(2 * time.Hour)},
	}))

	out, err := tbl.Filter(GreaterThan("at", base)).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())

	out, err = tbl.Filter(Equal("at", base.Add(time.Hour))).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
}

func TestNotNullPredicate(t *testing.T) {
	tbl := ordersTable(t)

	out, err := tbl.Filter(NotNull("price")).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(4)}, collectColumn(t, out, "id"))
}

func TestPredicateCombinators(t *testing.T) {
	tbl := ordersTable(t)
	ctx := context.Background()

	out, err := tbl.Filter(And(
		NotNull("price"),
		GreaterThan("id", int64(1)),
	)).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(4)}, collectColumn(t, out, "id"))

	out, err = tbl.Filter(Or(
		Equal("region", "north"),
		Equal("id", int64(1)),
	)).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(4)}, collectColumn(t, out, "id"))

	out, err = tbl.Filter(Not(Equal("region", "east"))).Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(4)}, collectColumn(t, out, "id"))
}

func TestBoolOrderedComparisonUnsupported(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "flag", DType: columnar.DTypeBool},
	})
	require.NoError(t, err)
	tbl, err := NewTable(schema)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(Batch{"flag": {true, false}}))

	_, err = tbl.Filter(GreaterThan("flag", true)).Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))
}

func TestFilterUnknownColumn(t *testing.T) {
	tbl := ordersTable(t)
	_, err := tbl.Filter(Equal("ghost", int64(1))).Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnknownColumn(err))
}
