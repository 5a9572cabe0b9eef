// Package jsonl writes row batches as JSON, one object per line by
// default or as a single array. Nulls become explicit JSON nulls.
package jsonl

import (
	"bufio"
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
)

// Options configures a Writer.
type Options struct {
	// Array emits one JSON array instead of line-delimited objects.
	Array bool
	// Compression selects the codec for files created by Create. The
	// zero value defers to the path extension.
	Compression compression.Config
}

func (o Options) withDefaults() Options {
	if o.Compression.Level == 0 {
		o.Compression.Level = compression.Default
	}
	return o
}

// Writer is a Sink encoding rows as JSON objects keyed by column name.
type Writer struct {
	opts    Options
	enc     *json.StreamingEncoder
	buf     *bufio.Writer
	closers []io.Closer
	log     *zap.Logger
	path    string
	schema  *columnar.Schema
	fields  []columnar.Field
	rows    int64
	closed  bool
}

// New creates a writer over an open stream. The caller keeps ownership
// of w.
func New(w io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	buf := bufio.NewWriter(w)
	return &Writer{
		opts: opts,
		enc:  json.NewStreamingEncoder(buf, opts.Array),
		buf:  buf,
		log:  logger.Get().With(zap.String("sink", "jsonl")),
		path: "<writer>",
	}
}

// Create creates the file at path, compressing by the configured
// algorithm or, when that is none, by the path extension.
func Create(path string, opts Options) (*Writer, error) {
	opts = opts.withDefaults()
	algo := opts.Compression.Algorithm
	if algo == "" || algo == compression.None {
		if ext, ok := compression.ByExtension(path); ok {
			algo = ext
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSink, "create %s", path)
	}
	closers := []io.Closer{f}
	var dst io.Writer = f
	if algo != "" && algo != compression.None {
		wc, err := compression.NewWriter(f, algo, opts.Compression.Level)
		if err != nil {
			f.Close()
			return nil, err
		}
		dst = wc
		closers = []io.Closer{wc, f}
	}

	w := New(dst, opts)
	w.path = path
	w.closers = closers
	return w, nil
}

// Open records the schema.
func (w *Writer) Open(ctx context.Context, schema *columnar.Schema) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "jsonl open canceled")
	}
	w.schema = schema
	w.fields = schema.Fields()
	w.log.Info("jsonl sink opened",
		zap.String("path", w.path),
		zap.Int("columns", schema.Len()),
		zap.Bool("array", w.opts.Array))
	return nil
}

// WriteBatch encodes the visible rows of rb.
func (w *Writer) WriteBatch(ctx context.Context, rb *frame.RowBatch) error {
	if w.schema == nil {
		return errors.New(errors.ErrorTypeInternal, "jsonl sink written before open")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "jsonl write canceled")
	}
	if !rb.Schema().Equal(w.schema) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"batch schema does not match sink schema %v", w.schema.Names())
	}

	sel := rb.Indices()
	n := rb.Len()
	for i := 0; i < n; i++ {
		pos := i
		if sel != nil {
			pos = int(sel[i])
		}
		row := make(map[string]any, len(w.fields))
		for j, f := range w.fields {
			v, ok := rb.HandleAt(j).Value(pos)
			if !ok {
				row[f.Name] = nil
				continue
			}
			row[f.Name] = v
		}
		if err := w.enc.Encode(row); err != nil {
			metrics.RowsWritten.WithLabelValues("jsonl", "error").Inc()
			return errors.Wrapf(err, errors.ErrorTypeSink, "encode %s", w.path)
		}
	}

	w.rows += int64(n)
	metrics.RowsWritten.WithLabelValues("jsonl", "ok").Add(float64(n))
	return nil
}

// Close terminates the JSON sequence, flushes, and releases resources
// acquired by Create. Safe to call more than once.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.enc.Close()
	if ferr := w.buf.Flush(); ferr != nil && err == nil {
		err = ferr
	}

	for _, c := range w.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	w.closers = nil

	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSink, "close %s", w.path)
	}
	w.log.Info("jsonl sink closed",
		zap.String("path", w.path),
		zap.Int64("rows", w.rows))
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }
