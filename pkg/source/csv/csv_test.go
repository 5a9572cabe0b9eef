package csv

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/testutil"
)

func orderSchema(t *testing.T) *columnar.Schema {
	t.Helper()
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "id", DType: columnar.DTypeInt},
		{Name: "price", DType: columnar.DTypeFloat},
		{Name: "region", DType: columnar.DTypeCategorical},
		{Name: "rush", DType: columnar.DTypeBool},
		{Name: "placed", DType: columnar.DTypeTimestamp},
	})
	require.NoError(t, err)
	return schema
}

const orderCSV = `id,price,region,rush,placed
1,9.5,east,true,2024-03-01T10:00:00Z
2,,west,false,2024-03-01 11:30:00
3,12.25,,true,2024-03-02
`

func TestSourceReadsDeclaredSchema(t *testing.T) {
	src, err := New(strings.NewReader(orderCSV), orderSchema(t), Options{})
	require.NoError(t, err)

	tbl, err := frame.LoadTable(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.RowCount())

	ids, err := tbl.Column("id")
	require.NoError(t, err)
	v, ok := ids.Value(2)
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	prices, err := tbl.Column("price")
	require.NoError(t, err)
	_, ok = prices.Value(1)
	assert.False(t, ok, "empty cell lands as null")
	v, ok = prices.Value(2)
	require.True(t, ok)
	assert.Equal(t, 12.25, v)

	regions, err := tbl.Column("region")
	require.NoError(t, err)
	_, ok = regions.Value(2)
	assert.False(t, ok, "empty categorical cell lands as null")

	rush, err := tbl.Column("rush")
	require.NoError(t, err)
	v, ok = rush.Value(1)
	require.True(t, ok)
	assert.Equal(t, false, v)

	placed, err := tbl.Column("placed")
	require.NoError(t, err)
	v, ok = placed.Value(0)
	require.True(t, ok)
	assert.True(t, v.(time.Time).Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	v, ok = placed.Value(2)
	require.True(t, ok)
	assert.True(t, v.(time.Time).Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSourceBatchSize(t *testing.T) {
	src, err := New(strings.NewReader(orderCSV), orderSchema(t), Options{BatchSize: 2})
	require.NoError(t, err)

	ctx := context.Background()
	b, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, b["id"], 2)

	b, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, b["id"], 1)
	assert.Equal(t, int64(3), src.Rows())

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err, "drained source stays drained")
}

func TestSourceRecyclesBatchStorage(t *testing.T) {
	src, err := New(strings.NewReader(orderCSV), orderSchema(t), Options{BatchSize: 1})
	require.NoError(t, err)

	ctx := context.Background()
	tbl, err := frame.NewTable(src.Schema())
	require.NoError(t, err)
	for {
		b, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, tbl.AppendBatch(b))
	}
	require.Equal(t, 3, tbl.RowCount())

	ids, err := tbl.Column("id")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		v, ok := ids.Value(i)
		require.True(t, ok)
		assert.Equal(t, int64(i+1), v, "recycled buffers must not bleed between batches")
	}
}

func TestSourceHeaderValidation(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "id", DType: columnar.DTypeInt},
		{Name: "amount", DType: columnar.DTypeFloat},
	})
	require.NoError(t, err)

	src, err := New(strings.NewReader("id,total\n1,2.5\n"), schema, Options{})
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "total")
}

func TestSourceNoHeader(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "n", DType: columnar.DTypeInt},
	})
	require.NoError(t, err)

	src, err := New(strings.NewReader("7\n8\n"), schema, Options{NoHeader: true})
	require.NoError(t, err)

	tbl, err := frame.LoadTable(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.RowCount())
	col, err := tbl.Column("n")
	require.NoError(t, err)
	v, ok := col.Value(0)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestSourceOptionsDialect(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "a", DType: columnar.DTypeInt},
		{Name: "b", DType: columnar.DTypeCategorical},
	})
	require.NoError(t, err)

	data := "# comment line\na;b\n1;x\n# another\n2;y\n"
	src, err := New(strings.NewReader(data), schema, Options{Delimiter: ';', Comment: '#'})
	require.NoError(t, err)

	tbl, err := frame.LoadTable(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())
}

func TestSourceBadCell(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "id", DType: columnar.DTypeInt},
	})
	require.NoError(t, err)

	src, err := New(strings.NewReader("id\nnot-a-number\n"), schema, Options{})
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.Contains(t, err.Error(), `"id"`)
	assert.Contains(t, err.Error(), "not-a-number")
}

func TestSourceRaggedRow(t *testing.T) {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "a", DType: columnar.DTypeInt},
		{Name: "b", DType: columnar.DTypeInt},
	})
	require.NoError(t, err)

	src, err := New(strings.NewReader("a,b\n1,2\n3\n"), schema, Options{})
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}

func TestSourceEmptyFile(t *testing.T) {
	src, err := New(strings.NewReader(""), orderSchema(t), Options{})
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteCompressed(t, dir, "orders.csv.gz", []byte(orderCSV))

	src, err := Open(path, orderSchema(t), Options{})
	require.NoError(t, err)
	defer src.Close()

	tbl, err := frame.LoadTable(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.RowCount())
	assert.NoError(t, src.Close(), "close after drain is a no-op")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/does/not/exist.csv", orderSchema(t), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}

func TestSourceCanceledContext(t *testing.T) {
	src, err := New(strings.NewReader(orderCSV), orderSchema(t), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}
