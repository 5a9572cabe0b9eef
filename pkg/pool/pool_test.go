package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scratch struct {
	n int
}

func TestPoolGetPutReset(t *testing.T) {
	p := New(
		func() *scratch { return &scratch{} },
		func(s *scratch) { s.n = 0 },
	)

	s := p.Get()
	s.n = 42
	p.Put(s)

	s2 := p.Get()
	assert.Equal(t, 0, s2.n, "reset must run before reuse")
	p.Put(s2)
}

func TestPoolStats(t *testing.T) {
	p := New(
		func() []int { return make([]int, 0, 8) },
		nil,
	)

	a := p.Get()
	p.Put(a)
	b := p.Get()

	allocated, inUse, hits, _ := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(1), inUse)
	assert.Equal(t, int64(2), hits)
	p.Put(b)
}

func TestGetRowIndexCapacity(t *testing.T) {
	idx := GetRowIndex(4096)
	require.Zero(t, len(idx))
	assert.GreaterOrEqual(t, cap(idx), 4096)

	idx = append(idx, 1, 2, 3)
	PutRowIndex(idx)

	again := GetRowIndex(16)
	assert.Zero(t, len(again), "pooled slice must come back empty")
	PutRowIndex(again)
}

func TestGetBatchColumnsCleared(t *testing.T) {
	m := GetBatchColumns()
	m["id"] = []interface{}{int64(1), int64(2)}
	PutBatchColumns(m)

	again := GetBatchColumns()
	assert.Empty(t, again, "pooled map must come back cleared")
	PutBatchColumns(again)
}

func TestPutNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		PutBatchColumns(nil)
		PutRowIndex(nil)
		PutValueSlice(nil)
		PutStringSlice(nil)
	})
}

func TestGetGlobalStats(t *testing.T) {
	s := GetValueSlice(8)
	PutValueSlice(s)

	stats := GetGlobalStats()
	require.Contains(t, stats, "value_slice")
	assert.GreaterOrEqual(t, stats["value_slice"].Hits, int64(1))
}
