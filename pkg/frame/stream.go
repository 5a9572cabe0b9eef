package frame

import (
	"context"
	"io"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// DefaultBatchSize is the number of rows a table scan yields per pull.
const DefaultBatchSize = 8192

// StreamOption adjusts how a stream pulls its source.
type StreamOption func(*streamConfig)

type streamConfig struct {
	batchSize int
}

// WithBatchSize sets the scan batch size. Values below 1 keep the default.
func WithBatchSize(n int) StreamOption {
	return func(cfg *streamConfig) {
		if n > 0 {
			cfg.batchSize = n
		}
	}
}

// stage is one link of a pull chain. next returns the following batch or
// io.EOF when exhausted; any other error is terminal. schema reports the
// stage's output schema, or nil when it is only known once pulled.
type stage interface {
	schema() *columnar.Schema
	next(ctx context.Context) (*RowBatch, error)
}

// Stream is a lazy sequence of RowBatch views. Chained operators build a
// new Stream around the previous one without running anything; work
// happens only when a consumer pulls via Next, Chunks, or Collect. A
// stream is single-use: once pulled to io.EOF it stays exhausted.
type Stream struct {
	src stage
}

// Schema returns the stream's output schema, or nil when the stream ends
// in a stage whose schema is known only after pulling (pivot).
func (s *Stream) Schema() *columnar.Schema {
	return s.src.schema()
}

// Next pulls the next batch, running exactly the stages needed to produce
// it. Returns io.EOF when the stream is exhausted.
func (s *Stream) Next(ctx context.Context) (*RowBatch, error) {
	return s.src.next(ctx)
}

// Collect drains the stream into a new table. Intended for tests, small
// results, and the CLI; bulk consumers should pull Chunks instead.
func (s *Stream) Collect(ctx context.Context) (*Table, error) {
	var t *Table
	for {
		rb, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if t == nil {
			t, err = NewTable(rb.Schema())
			if err != nil {
				return nil, err
			}
		}
		if err := t.appendRowBatch(rb); err != nil {
			return nil, err
		}
	}
	if t == nil {
		if sch := s.Schema(); sch != nil {
			return NewTable(sch)
		}
		return nil, errors.New(errors.ErrorTypeUnsupported,
			"collect of an empty stream with unknown schema")
	}
	return t, nil
}

// tableScan yields consecutive zero-copy windows over a table.
type tableScan struct {
	table     *Table
	batchSize int
	pos       int
}

func (sc *tableScan) schema() *columnar.Schema { return sc.table.Schema() }

func (sc *tableScan) next(ctx context.Context) (*RowBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "scan canceled")
	}
	if sc.pos >= sc.table.RowCount() {
		return nil, io.EOF
	}
	end := sc.pos + sc.batchSize
	if end > sc.table.RowCount() {
		end = sc.table.RowCount()
	}
	rb, err := sc.table.Window(sc.pos, end)
	if err != nil {
		return nil, err
	}
	sc.pos = end
	return rb, nil
}

// sourceStage adapts a BatchSource into the pull chain, materializing each
// produced Batch into fresh columns after strict schema validation.
type sourceStage struct {
	src BatchSource
}

func (ss *sourceStage) schema() *columnar.Schema { return ss.src.Schema() }

func (ss *sourceStage) next(ctx context.Context) (*RowBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "source canceled")
	}
	for {
		b, err := ss.src.Next(ctx)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		rb, err := batchToRowBatch(ss.src.Schema(), b)
		if err != nil {
			return nil, err
		}
		if rb.Len() == 0 {
			continue
		}
		return rb, nil
	}
}

// batchToRowBatch validates a producer batch against schema and builds
// owned columns from it.
func batchToRowBatch(schema *columnar.Schema, b Batch) (*RowBatch, error) {
	rows, err := validateBatch(schema, b)
	if err != nil {
		return nil, err
	}
	handles := make([]columnar.Handle, schema.Len())
	for i, f := range schema.Fields() {
		h, err := columnar.NewHandle(f.DType)
		if err != nil {
			return nil, err
		}
		for _, v := range b[f.Name] {
			if err := h.AppendValue(v); err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeInternal,
					"append to validated column %q", f.Name)
			}
		}
		handles[i] = h
	}
	return &RowBatch{schema: schema, handles: handles, span: rows}, nil
}

// errStage surfaces a deferred construction error on first pull, keeping
// operator chaining free of error returns.
type errStage struct {
	err error
}

func (es *errStage) schema() *columnar.Schema { return nil }

func (es *errStage) next(context.Context) (*RowBatch, error) {
	return nil, es.err
}

func failed(err error) *Stream {
	return &Stream{src: &errStage{err: err}}
}
