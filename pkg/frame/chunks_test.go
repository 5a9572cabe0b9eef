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

func sequenceTable(t *testing.T, n int) *Table {
	t.Helper()
	tbl, err := NewTable(measureSchema(t))
	require.NoError(t, err)
	vals := make([]any, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	require.NoError(t, tbl.AppendBatch(Batch{"n": vals}))
	return tbl
}

func drainChunks(t *testing.T, it *ChunkIter) []*RowBatch {
	t.Helper()
	var chunks []*RowBatch
	for {
		rb, err := it.Next(context.Background())
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, rb)
	}
}

func TestChunksRegroupScanBatches(t *testing.T) {
	tbl := sequenceTable(t, 10)

	// Scan batches of 4 regrouped into chunks of 6: chunk edges must not
	// line up with scan edges.
	it := tbl.Stream(WithBatchSize(4)).Chunks(6)
	chunks := drainChunks(t, it)

	require.Len(t, chunks, 2)
	assert.Equal(t, 6, chunks[0].Len())
	assert.Equal(t, 4, chunks[1].Len())

	next := int64(0)
	for _, rb := range chunks {
		assert.Nil(t, rb.Indices(), "chunks own their rows with no selection attached")
		for i := 0; i < rb.Len(); i++ {
			v, ok, err := rb.Value("n", i)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, next, v)
			next++
		}
	}
	assert.Equal(t, int64(10), next)
}

func TestChunksExactMultiple(t *testing.T) {
	it := sequenceTable(t, 20).Stream().Chunks(10)

	chunks := drainChunks(t, it)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, chunks[0].Len())
	assert.Equal(t, 10, chunks[1].Len())

	_, err := it.Next(context.Background())
	assert.Equal(t, io.EOF, err, "a drained iterator stays drained")
}

func TestChunksAfterFilter(t *testing.T) {
	tbl := sequenceTable(t, 25)

	even := func(rb *RowBatch) (*Selection, error) {
		sel := NewSelection()
		for i := 0; i < rb.Len(); i++ {
			v, ok, err := rb.Value("n", i)
			if err != nil {
				return nil, err
			}
			if ok && v.(int64)%2 == 0 {
				sel.Add(uint32(i))
			}
		}
		return sel, nil
	}

	it := tbl.Stream(WithBatchSize(7)).Filter(even).Chunks(5)
	chunks := drainChunks(t, it)

	require.Len(t, chunks, 3)
	assert.Equal(t, 5, chunks[0].Len())
	assert.Equal(t, 5, chunks[1].Len())
	assert.Equal(t, 3, chunks[2].Len())

	var got []int64
	for _, rb := range chunks {
		require.Nil(t, rb.Indices())
		for i := 0; i < rb.Len(); i++ {
			v, ok, err := rb.Value("n", i)
			require.NoError(t, err)
			require.True(t, ok)
			got = append(got, v.(int64))
		}
	}
	want := make([]int64, 0, 13)
	for i := int64(0); i < 25; i += 2 {
		want = append(want, i)
	}
	assert.Equal(t, want, got)
}

func TestChunksOwnStorage(t *testing.T) {
	tbl := sequenceTable(t, 4)

	it := tbl.Stream().Chunks(10)
	chunks := drainChunks(t, it)
	require.Len(t, chunks, 1)

	src, err := tbl.Column("n")
	require.NoError(t, err)
	got, err := chunks[0].Handle("n")
	require.NoError(t, err)
	assert.NotSame(t, src, got, "a chunk must copy rows out of the scan window")
}

func TestChunksInvalidSize(t *testing.T) {
	it := sequenceTable(t, 3).Stream().Chunks(0)

	_, err := it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, again := it.Next(context.Background())
	assert.Equal(t, err, again, "the configuration error is sticky")
}

func TestChunksEmptyStream(t *testing.T) {
	tbl, err := NewTable(measureSchema(t))
	require.NoError(t, err)

	it := tbl.Stream().Chunks(8)
	_, err = it.Next(context.Background())
	assert.Equal(t, io.EOF, err, "no partial chunk comes out of an empty stream")
}

func TestChunksSchema(t *testing.T) {
	tbl := ordersTable(t)

	it := tbl.Stream().Select("id", "price").Chunks(2)
	sch := it.Schema()
	require.NotNil(t, sch, "a scan-backed iterator knows its schema before pulling")
	assert.Equal(t, []string{"id", "price"}, sch.Names())

	it = tbl.Stream().Pivot("id", "region", "price").Chunks(2)
	assert.Nil(t, it.Schema(), "a pivot's output schema exists only after the drain")
	_, err := it.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, it.Schema())
}

// flipStage yields batches whose schemas disagree, which no built-in stage
// produces; the chunk iterator must refuse to mix them.
type flipStage struct {
	batches []*RowBatch
	pos     int
}

func (f *flipStage) schema() *columnar.Schema { return nil }

func (f *flipStage) next(context.Context) (*RowBatch, error) {
	if f.pos >= len(f.batches) {
		return nil, io.EOF
	}
	rb := f.batches[f.pos]
	f.pos++
	return rb, nil
}

func TestChunksSchemaChangeMidStream(t *testing.T) {
	first, err := sequenceTable(t, 3).Window(0, 3)
	require.NoError(t, err)
	second, err := ordersTable(t).Window(0, 4)
	require.NoError(t, err)

	it := (&Stream{src: &flipStage{batches: []*RowBatch{first, second}}}).Chunks(10)
	_, err = it.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsInternal(err))
}
