// Package pool provides unified object pooling for Quasar.
// It offers type-safe recycling of the engine's working set: batch column
// maps, row-index selections, and value scratch slices, reducing garbage
// collection pressure during streaming evaluation.
//
// Example usage:
//
//	idx := pool.GetRowIndex(1024)
//	defer pool.PutRowIndex(idx)
//
//	// Using custom pools
//	myPool := pool.New(
//	    func() *MyType { return &MyType{} },
//	    func(obj *MyType) { obj.Reset() },
//	)
//	obj := myPool.Get()
//	defer myPool.Put(obj)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty. The reset function is
// called before an object returns to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, allocating when empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	obj := p.pool.Get().(T)
	atomic.AddInt64(&p.stats.hits, 1)
	return obj
}

// Put returns an object to the pool for reuse, resetting it first when a
// reset function was provided.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics: total objects created, objects
// currently checked out, Get calls served, and Gets that had to allocate.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// Global pools for the engine's common types.
var (
	// BatchColumnsPool recycles the column-name -> value-sequence maps that
	// batch producers hand to Table.AppendBatch.
	BatchColumnsPool = New(
		func() map[string][]interface{} {
			return make(map[string][]interface{}, 8)
		},
		func(m map[string][]interface{}) {
			for k := range m {
				delete(m, k)
			}
		},
	)

	// RowIndexPool recycles the absolute row-index lists threaded through
	// filtered batches.
	RowIndexPool = New(
		func() []uint32 {
			return make([]uint32, 0, 1024)
		},
		func(s []uint32) {
			// Length reset happens on Get.
		},
	)

	// ValueSlicePool recycles the per-column []interface{} buffers that
	// batch producers fill between pulls.
	ValueSlicePool = New(
		func() []interface{} {
			return make([]interface{}, 0, 64)
		},
		func(s []interface{}) {
			for i := range s {
				s[i] = nil
			}
		},
	)

	// StringSlicePool recycles column-name lists.
	StringSlicePool = New(
		func() []string {
			return make([]string, 0, 16)
		},
		func(s []string) {
			for i := range s {
				s[i] = ""
			}
		},
	)
)

// GetBatchColumns retrieves an empty column map from the global pool.
func GetBatchColumns() map[string][]interface{} {
	return BatchColumnsPool.Get()
}

// PutBatchColumns returns a column map to the global pool.
// Safe to call with nil.
func PutBatchColumns(m map[string][]interface{}) {
	if m != nil {
		BatchColumnsPool.Put(m)
	}
}

// GetRowIndex retrieves a row-index slice with at least the given capacity
// and zero length.
func GetRowIndex(capacity int) []uint32 {
	s := RowIndexPool.Get()
	if cap(s) < capacity {
		s = make([]uint32, 0, capacity)
	}
	return s[:0]
}

// PutRowIndex returns a row-index slice to the global pool.
// Safe to call with nil.
func PutRowIndex(s []uint32) {
	if s != nil {
		RowIndexPool.Put(s)
	}
}

// GetValueSlice retrieves a value scratch slice with at least the given
// capacity and zero length.
func GetValueSlice(capacity int) []interface{} {
	s := ValueSlicePool.Get()
	if cap(s) < capacity {
		s = make([]interface{}, 0, capacity)
	}
	return s[:0]
}

// PutValueSlice returns a value scratch slice to the global pool.
// Safe to call with nil.
func PutValueSlice(s []interface{}) {
	if s != nil {
		ValueSlicePool.Put(s)
	}
}

// GetStringSlice retrieves a string slice with zero length.
func GetStringSlice() []string {
	return StringSlicePool.Get()[:0]
}

// PutStringSlice returns a string slice to the global pool.
// Safe to call with nil.
func PutStringSlice(s []string) {
	if s != nil {
		StringSlicePool.Put(s)
	}
}

// Stats represents pool statistics for monitoring.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64
	// InUse is the current number of objects checked out from the pool
	InUse int64
	// Hits is the number of Get calls served
	Hits int64
	// Misses is the number of Gets that had to allocate
	Misses int64
}

// GetGlobalStats returns statistics for all global pools, keyed by pool name.
func GetGlobalStats() map[string]Stats {
	collect := func(allocated, inUse, hits, misses int64) Stats {
		return Stats{Allocated: allocated, InUse: inUse, Hits: hits, Misses: misses}
	}

	return map[string]Stats{
		"batch_columns": collect(BatchColumnsPool.Stats()),
		"row_index":     collect(RowIndexPool.Stats()),
		"value_slice":   collect(ValueSlicePool.Stats()),
		"string_slice":  collect(StringSlicePool.Stats()),
	}
}
