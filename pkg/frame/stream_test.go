package frame

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// countingSource wraps SliceSource and counts how many batches were
// actually pulled, to observe evaluation laziness.
type countingSource struct {
	inner *SliceSource
	pulls int
}

func (c *countingSource) Schema() *columnar.Schema { return c.inner.Schema() }

func (c *countingSource) Next(ctx context.Context) (Batch, error) {
	b, err := c.inner.Next(ctx)
	if err == nil {
		c.pulls++
	}
	return b, err
}

func measureSchema(t *testing.T) *columnar.Schema {
	t.Helper()
	s, err := columnar.NewSchema([]columnar.Field{
		{Name: "n", DType: columnar.DTypeInt},
	})
	require.NoError(t, err)
	return s
}

func TestStreamIsLazy(t *testing.T) {
	src := &countingSource{inner: NewSliceSource(measureSchema(t),
		Batch{"n": {int64(1), int64(2)}},
		Batch{"n": {int64(3), int64(4)}},
		Batch{"n": {int64(5)}},
	)}

	s := FromSource(src).Filter(GreaterThan("n", int64(0))).Select("n")
	assert.Equal(t, 0, src.pulls, "building a chain must not pull the source")

	ctx := context.Background()
	_, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.pulls, "one pull must evaluate exactly one source batch")

	_, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.pulls)
}

func TestStreamNextExhaustion(t *testing.T) {
	src := NewSliceSource(measureSchema(t), Batch{"n": {int64(1)}})
	s := FromSource(src)
	ctx := context.Background()

	rb, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rb.Len())

	_, err = s.Next(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = s.Next(ctx)
	assert.Equal(t, io.EOF, err, "exhausted streams stay exhausted")
}

func TestTableScanBatching(t *testing.T) {
	tbl, err := NewTable(measureSchema(t))
	require.NoError(t, err)
	vals := make([]any, 10)
	for i := range vals {
		vals[i] = int64(i)
	}
	require.NoError(t, tbl.AppendBatch(Batch{"n": vals}))

	s := tbl.Stream(WithBatchSize(4))
	ctx := context.Background()

	sizes := []int{}
	for {
		rb, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, rb.Len())
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
}

func TestStreamCollectRoundTrip(t *testing.T) {
	tbl := ordersTable(t)

	out, err := tbl.Stream().Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, tbl.RowCount(), out.RowCount())
	assert.True(t, tbl.Schema().Equal(out.Schema()))

	for _, name := range tbl.Schema().Names() {
		assert.Equal(t, collectColumn(t, tbl, name), collectColumn(t, out, name), "column %q", name)
	}
}

func TestStreamSourceValidation(t *testing.T) {
	src := NewSliceSource(measureSchema(t),
		Batch{"n": {int64(1)}},
		Batch{"n": {"two"}},
	)
	s := FromSource(src)
	ctx := context.Background()

	_, err := s.Next(ctx)
	require.NoError(t, err)

	_, err = s.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestStreamContextCancellation(t *testing.T) {
	tbl := ordersTable(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tbl.Stream().Next(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadTable(t *testing.T) {
	src := NewSliceSource(measureSchema(t),
		Batch{"n": {int64(1), int64(2)}},
		Batch{"n": {nil, int64(4)}},
	)

	tbl, err := LoadTable(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.RowCount())
	assert.Equal(t, []any{int64(1), int64(2), nil, int64(4)}, collectColumn(t, tbl, "n"))
}

func TestLoadTableStopsOnBadBatch(t *testing.T) {
	src := NewSliceSource(measureSchema(t),
		Batch{"n": {int64(1)}},
		Batch{"wrong": {int64(2)}},
	)

	_, err := LoadTable(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestCollectEmptyStreamKeepsSchema(t *testing.T) {
	src := NewSliceSource(measureSchema(t))
	out, err := FromSource(src).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())
	assert.True(t, measureSchema(t).Equal(out.Schema()))
}
