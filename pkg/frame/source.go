package frame

import (
	"context"
	"io"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// BatchSource is the external producer interface: a finite or unbounded
// sequence of batches conforming to a declared schema. Next returns io.EOF
// when the sequence ends. Blocking I/O belongs inside Next; the engine
// treats the call as opaque and synchronous, and a consumer cancels by not
// pulling again. Producers release their own resources when done.
type BatchSource interface {
	Schema() *columnar.Schema
	Next(ctx context.Context) (Batch, error)
}

// SliceSource serves pre-built in-memory batches. Handy in tests and for
// small programs.
type SliceSource struct {
	schema  *columnar.Schema
	batches []Batch
	pos     int
}

// NewSliceSource creates a source yielding the given batches in order.
func NewSliceSource(schema *columnar.Schema, batches ...Batch) *SliceSource {
	return &SliceSource{schema: schema, batches: batches}
}

// Schema returns the declared schema.
func (s *SliceSource) Schema() *columnar.Schema { return s.schema }

// Next returns the next batch or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "source canceled")
	}
	if s.pos >= len(s.batches) {
		return nil, io.EOF
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

// FromSource begins a lazy pull pipeline over a producer. Each pull
// validates and materializes one produced batch.
func FromSource(src BatchSource) *Stream {
	return &Stream{src: &sourceStage{src: src}}
}

// LoadTable drains a producer into a new table, validating every batch
// against the declared schema.
func LoadTable(ctx context.Context, src BatchSource) (*Table, error) {
	t, err := NewTable(src.Schema())
	if err != nil {
		return nil, err
	}
	for {
		b, err := src.Next(ctx)
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		if err := t.AppendBatch(b); err != nil {
			return nil, err
		}
	}
}
