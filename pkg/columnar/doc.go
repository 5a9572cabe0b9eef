// Package columnar implements Quasar's typed, append-only column storage:
// contiguous value buffers with bit-packed validity tracking, a
// dictionary-encoded categorical string column, and a polymorphic handle
// giving heterogeneous columns a uniform capability surface.
//
// # Overview
//
// The package provides the storage primitives the frame package builds
// tables and streams on:
//
//   - ValidityMask: bit-level null tracking, one bit per row
//   - Column[T]: a homogeneous value buffer paired with a ValidityMask
//   - CategoricalColumn: dictionary-encoded strings over a shared byte arena
//   - Handle: the closed polymorphic wrapper over the column variants
//   - Schema: the ordered name -> dtype mapping validated on every append
//
// # Storage model
//
// Columns grow only by appending, one value or a bulk batch at a time. No
// API path exists for interior insertion or deletion; dense buffers make
// those O(n), so the design rejects them structurally rather than
// documenting them as slow. Slicing is zero-copy for every variant: a
// sliced column shares its backing buffers and refuses further appends.
//
// Categorical storage keeps every distinct string exactly once in a
// contiguous arena, addressed by offsets, and stores a fixed-width code per
// row. A hash index from string to code keeps appends O(1) amortized. The
// dictionary only grows; codes are never renumbered while the column is
// live, so dictionary entries may go unreferenced after filtering.
//
// # Concurrency
//
// Columns are single-writer during construction. Once fully built and
// handed off, they are safe for concurrent readers because nothing mutates
// after the final append.
package columnar
