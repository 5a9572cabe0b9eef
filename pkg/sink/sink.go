// Package sink defines the batch consumer side of the engine: a writer
// opened with a schema, fed row batches, and closed once. Drain
// connects a chunked stream to a writer.
package sink

import (
	"context"
	"io"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
)

// Sink consumes row batches. Open is called once before the first
// WriteBatch; Close exactly once after the last, whether or not an
// error cut the feed short. Implementations are driven by a single
// goroutine.
type Sink interface {
	Open(ctx context.Context, schema *columnar.Schema) error
	WriteBatch(ctx context.Context, rb *frame.RowBatch) error
	Close(ctx context.Context) error
}

// Drain pulls chunks until the stream ends and writes each to snk,
// returning the number of rows written. The sink is opened lazily with
// the first chunk's schema, so sinks downstream of reshaping stages see
// the resolved output schema. An empty stream still opens and closes
// the sink when its schema is knowable, producing a valid empty output.
func Drain(ctx context.Context, it *frame.ChunkIter, snk Sink) (rows int64, err error) {
	opened := false
	defer func() {
		if !opened {
			return
		}
		if cerr := snk.Close(ctx); err == nil && cerr != nil {
			err = cerr
		}
	}()

	for {
		rb, nerr := it.Next(ctx)
		if nerr == io.EOF {
			if !opened {
				sch := it.Schema()
				if sch == nil {
					return 0, errors.New(errors.ErrorTypeSink,
						"empty stream with unknown schema")
				}
				if oerr := snk.Open(ctx, sch); oerr != nil {
					return 0, oerr
				}
				opened = true
			}
			return rows, nil
		}
		if nerr != nil {
			return rows, nerr
		}
		if !opened {
			if oerr := snk.Open(ctx, rb.Schema()); oerr != nil {
				return rows, oerr
			}
			opened = true
		}
		if werr := snk.WriteBatch(ctx, rb); werr != nil {
			return rows, werr
		}
		rows += int64(rb.Len())
	}
}
