package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
)

// memorySink records the calls Drain makes against the Sink contract.
type memorySink struct {
	schema    *columnar.Schema
	opens     int
	closes    int
	batchLens []int
	failWrite bool
}

func (m *memorySink) Open(_ context.Context, schema *columnar.Schema) error {
	m.opens++
	m.schema = schema
	return nil
}

func (m *memorySink) WriteBatch(_ context.Context, rb *frame.RowBatch) error {
	if m.failWrite {
		return errors.New(errors.ErrorTypeSink, "disk full")
	}
	m.batchLens = append(m.batchLens, rb.Len())
	return nil
}

func (m *memorySink) Close(_ context.Context) error {
	m.closes++
	return nil
}

func intTable(t *testing.T, n int) *frame.Table {
	t.Helper()
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "n", DType: columnar.DTypeInt},
	})
	require.NoError(t, err)
	tbl, err := frame.NewTable(schema)
	require.NoError(t, err)
	vals := make([]any, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	if n > 0 {
		require.NoError(t, tbl.AppendBatch(frame.Batch{"n": vals}))
	}
	return tbl
}

func TestDrainWritesAllChunks(t *testing.T) {
	tbl := intTable(t, 10)
	snk := &memorySink{}

	rows, err := Drain(context.Background(), tbl.Stream().Chunks(4), snk)
	require.NoError(t, err)

	assert.Equal(t, int64(10), rows)
	assert.Equal(t, 1, snk.opens)
	assert.Equal(t, 1, snk.closes)
	assert.Equal(t, []int{4, 4, 2}, snk.batchLens)
	assert.Equal(t, []string{"n"}, snk.schema.Names())
}

func TestDrainEmptyStreamStillOpens(t *testing.T) {
	tbl := intTable(t, 0)
	snk := &memorySink{}

	rows, err := Drain(context.Background(), tbl.Stream().Chunks(4), snk)
	require.NoError(t, err)

	assert.Equal(t, int64(0), rows)
	assert.Equal(t, 1, snk.opens, "empty output still gets a valid file")
	assert.Equal(t, 1, snk.closes)
	assert.Empty(t, snk.batchLens)
}

func TestDrainOpensWithResolvedSchema(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "key", DType: columnar.DTypeCategorical},
		{Name: "metric", DType: columnar.DTypeCategorical},
		{Name: "reading", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)
	tbl, err := frame.NewTable(schema)
	require.NoError(t, err)
	require.NoError(t, tbl.AppendBatch(frame.Batch{
		"key":     []any{"a", "a", "b"},
		"metric":  []any{"temp", "load", "temp"},
		"reading": []any{1.0, 2.0, 3.0},
	}))

	snk := &memorySink{}
	it := tbl.Stream().Pivot("key", "metric", "reading").Chunks(16)
	rows, err := Drain(context.Background(), it, snk)
	require.NoError(t, err)

	assert.Equal(t, int64(2), rows)
	assert.Equal(t, []string{"key", "temp", "load"}, snk.schema.Names(),
		"sink sees the pivoted schema, not the input schema")
}

func TestDrainStopsOnWriteError(t *testing.T) {
	tbl := intTable(t, 10)
	snk := &memorySink{failWrite: true}

	rows, err := Drain(context.Background(), tbl.Stream().Chunks(4), snk)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.Equal(t, int64(0), rows)
	assert.Equal(t, 1, snk.opens)
	assert.Equal(t, 1, snk.closes, "sink is closed even when a write fails")
}

func TestDrainPropagatesStreamError(t *testing.T) {
	tbl := intTable(t, 4)
	snk := &memorySink{}

	_, err := Drain(context.Background(), tbl.Stream().Chunks(0), snk)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, 0, snk.opens, "nothing is opened when the stream fails up front")
	assert.Equal(t, 0, snk.closes)
}
