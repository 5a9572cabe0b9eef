package frame

import (
	"context"
	"io"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// ChunkIter is the terminal consumer of a stream: it regroups the pull
// sequence into materialized RowBatches of a fixed row count, sized for
// bulk writers. Each chunk owns its storage with no selection attached.
// Rows carry across upstream batch boundaries, so chunk edges do not line
// up with source batch edges; only the final chunk may run short. The
// upstream may be unbounded: each Next pulls just enough input to fill one
// chunk.
type ChunkIter struct {
	up       stage
	size     int
	sch      *columnar.Schema
	builders []columnar.Handle
	have     int
	cur      *RowBatch
	off      int
	done     bool
	err      error
}

// Chunks ends the stream with a chunked materializer of the given size.
func (s *Stream) Chunks(size int) *ChunkIter {
	it := &ChunkIter{up: s.src, size: size}
	if size <= 0 {
		it.err = errors.Newf(errors.ErrorTypeConfig, "chunk size %d must be positive", size)
	}
	return it
}

// Schema returns the chunk schema, or nil before the first pull when the
// upstream schema is only known once pulled.
func (it *ChunkIter) Schema() *columnar.Schema {
	if it.sch != nil {
		return it.sch
	}
	return it.up.schema()
}

// Next returns the next chunk, pulling upstream batches until size rows
// accumulate or input ends. Returns io.EOF after the final chunk.
func (it *ChunkIter) Next(ctx context.Context) (*RowBatch, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, io.EOF
	}

	for it.have < it.size {
		if it.cur == nil {
			rb, err := it.up.next(ctx)
			if err == io.EOF {
				it.done = true
				if it.have > 0 {
					return it.emit()
				}
				return nil, io.EOF
			}
			if err != nil {
				it.err = err
				return nil, err
			}
			if rb.Len() == 0 {
				continue
			}
			if err := it.adopt(rb.Schema()); err != nil {
				it.err = err
				return nil, err
			}
			it.cur = rb
			it.off = 0
		}

		take := it.size - it.have
		if rest := it.cur.Len() - it.off; take > rest {
			take = rest
		}
		for i, b := range it.builders {
			if err := appendVisible(b, it.cur.handles[i], it.cur, it.off, it.off+take); err != nil {
				it.err = err
				return nil, err
			}
		}
		it.have += take
		it.off += take
		if it.off == it.cur.Len() {
			it.cur = nil
		}
	}
	return it.emit()
}

// adopt fixes the chunk schema from the first batch and verifies later
// batches agree.
func (it *ChunkIter) adopt(sch *columnar.Schema) error {
	if it.sch == nil {
		it.sch = sch
		return it.reset()
	}
	if !it.sch.Equal(sch) {
		return errors.Newf(errors.ErrorTypeInternal,
			"batch schema changed mid-stream: %s vs %s", it.sch, sch)
	}
	return nil
}

// reset swaps in fresh builder columns for the next chunk.
func (it *ChunkIter) reset() error {
	it.builders = make([]columnar.Handle, it.sch.Len())
	for i, f := range it.sch.Fields() {
		h, err := columnar.NewHandle(f.DType)
		if err != nil {
			return err
		}
		it.builders[i] = h
	}
	return nil
}

func (it *ChunkIter) emit() (*RowBatch, error) {
	rb := &RowBatch{schema: it.sch, handles: it.builders, span: it.have}
	it.have = 0
	if err := it.reset(); err != nil {
		it.err = err
		return nil, err
	}
	return rb, nil
}
