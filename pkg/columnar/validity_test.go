package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

func TestValidityMaskPushGet(t *testing.T) {
	m := NewValidityMask()
	require.Equal(t, 0, m.Len())

	pattern := []bool{true, false, true, true, false}
	for _, v := range pattern {
		require.NoError(t, m.Push(v))
	}
	require.Equal(t, len(pattern), m.Len())

	for i, want := range pattern {
		got, err := m.Get(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "bit %d", i)
	}
}

func TestValidityMaskGetOutOfRange(t *testing.T) {
	m := NewValidityMask()
	require.NoError(t, m.Push(true))

	for _, i := range []int{-1, 1, 100} {
		_, err := m.Get(i)
		require.Error(t, err)
		assert.True(t, errors.IsIndexOutOfRange(err), "index %d", i)
	}
}

func TestValidityMaskPushN(t *testing.T) {
	tests := []struct {
		name  string
		lead  int // bits pushed one at a time before the bulk append
		count int
		valid bool
	}{
		{name: "within one word", lead: 3, count: 10, valid: true},
		{name: "exactly to word edge", lead: 1, count: 63, valid: true},
		{name: "full word aligned", lead: 0, count: 64, valid: true},
		{name: "spans two words", lead: 60, count: 10, valid: true},
		{name: "spans interior words", lead: 7, count: 200, valid: true},
		{name: "invalid run", lead: 5, count: 130, valid: false},
		{name: "zero count", lead: 2, count: 0, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewValidityMask()
			for i := 0; i < tt.lead; i++ {
				require.NoError(t, m.Push(i%2 == 0))
			}
			require.NoError(t, m.PushN(tt.valid, tt.count))
			require.Equal(t, tt.lead+tt.count, m.Len())

			for i := 0; i < tt.lead; i++ {
				got, err := m.Get(i)
				require.NoError(t, err)
				assert.Equal(t, i%2 == 0, got, "lead bit %d", i)
			}
			for i := tt.lead; i < tt.lead+tt.count; i++ {
				got, err := m.Get(i)
				require.NoError(t, err)
				assert.Equal(t, tt.valid, got, "bulk bit %d", i)
			}
		})
	}
}

func TestValidityMaskPushNThenPush(t *testing.T) {
	m := NewValidityMask()
	require.NoError(t, m.PushN(true, 70))
	require.NoError(t, m.Push(false))
	require.NoError(t, m.Push(true))

	require.Equal(t, 72, m.Len())
	assert.Equal(t, 71, m.CountValid())

	got, err := m.Get(70)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestValidityMaskCountValid(t *testing.T) {
	m := NewValidityMask()
	assert.Equal(t, 0, m.CountValid())

	want := 0
	for i := 0; i < 300; i++ {
		valid := i%3 == 0
		require.NoError(t, m.Push(valid))
		if valid {
			want++
		}
	}
	assert.Equal(t, want, m.CountValid())
}

func TestValidityMaskSlice(t *testing.T) {
	m := NewValidityMask()
	for i := 0; i < 150; i++ {
		require.NoError(t, m.Push(i%5 != 0))
	}

	view, err := m.Slice(60, 140)
	require.NoError(t, err)
	require.Equal(t, 80, view.Len())

	for i := 0; i < view.Len(); i++ {
		got, err := view.Get(i)
		require.NoError(t, err)
		want, err := m.Get(60 + i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "view bit %d", i)
	}

	valid := 0
	for i := 60; i < 140; i++ {
		if v, _ := m.Get(i); v {
			valid++
		}
	}
	assert.Equal(t, valid, view.CountValid())
}

func TestValidityMaskSliceOfSlice(t *testing.T) {
	m := NewValidityMask()
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Push(i%2 == 0))
	}

	outer, err := m.Slice(10, 90)
	require.NoError(t, err)
	inner, err := outer.Slice(5, 25)
	require.NoError(t, err)

	require.Equal(t, 20, inner.Len())
	for i := 0; i < inner.Len(); i++ {
		got, err := inner.Get(i)
		require.NoError(t, err)
		want, err := m.Get(15 + i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "inner bit %d", i)
	}
}

func TestValidityMaskSliceRejectsPush(t *testing.T) {
	m := NewValidityMask()
	require.NoError(t, m.PushN(true, 10))

	view, err := m.Slice(2, 8)
	require.NoError(t, err)

	err = view.Push(true)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))

	err = view.PushN(true, 4)
	require.Error(t, err)
	assert.True(t, errors.IsUnsupported(err))
}

func TestValidityMaskSliceBounds(t *testing.T) {
	m := NewValidityMask()
	require.NoError(t, m.PushN(true, 10))

	for _, bounds := range [][2]int{{-1, 5}, {3, 2}, {0, 11}} {
		_, err := m.Slice(bounds[0], bounds[1])
		require.Error(t, err, "slice [%d, %d)", bounds[0], bounds[1])
		assert.True(t, errors.IsIndexOutOfRange(err))
	}

	empty, err := m.Slice(4, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 0, empty.CountValid())
}
