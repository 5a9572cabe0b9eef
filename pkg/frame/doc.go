// Package frame holds the table and stream layers of the engine: Table
// aggregates named columns behind a shared schema, RowBatch lends windows
// into those columns without copying, and Stream composes lazy pull-based
// transformations (filter, select, derived columns, melt, pivot, chunking)
// over batches.
//
// Evaluation is synchronous and single-threaded. Pulling one batch from a
// stream runs exactly the stages needed to produce it; no stage buffers
// more than the batch in flight, with pivot as the one documented
// exception (it must see all input before it knows its output columns).
// There are no goroutines or channels inside the engine: a blocking
// producer blocks inside its own Next call, and consumers cancel by not
// pulling again.
//
// Tables are single-writer during construction. Once building finishes, a
// table never mutates, so any number of readers may share it without
// locking.
package frame
