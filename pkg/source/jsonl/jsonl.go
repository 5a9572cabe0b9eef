// Package jsonl reads line-delimited JSON objects into schema-declared
// row batches.
//
// One object per line is the usual shape, but any stream of
// concatenated JSON objects decodes the same way. Declared columns
// absent from an object, or set to JSON null, land as nulls; keys not
// in the schema are ignored. Files compressed with a recognized
// extension are decompressed transparently.
package jsonl

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/json"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/pool"
)

// DefaultBatchSize is the number of rows per produced batch when the
// options leave it unset.
const DefaultBatchSize = 8192

var defaultLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Options configures a Source.
type Options struct {
	// BatchSize is the number of rows per produced batch.
	BatchSize int
	// Layouts are timestamp layouts tried in order for string-valued
	// timestamp columns. Empty means RFC3339, then
	// "2006-01-02 15:04:05", then "2006-01-02".
	Layouts []string
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if len(o.Layouts) == 0 {
		o.Layouts = defaultLayouts
	}
	return o
}

// Source produces row batches from a stream of JSON objects. It is
// driven by a single consumer pulling Next and is not safe for
// concurrent use.
type Source struct {
	schema  *columnar.Schema
	opts    Options
	dec     *json.Decoder
	closers []io.Closer
	log     *zap.Logger
	path    string
	live    frame.Batch
	rows    int64
	done    bool
}

// New creates a source over an open reader. The caller keeps ownership
// of r; Close only releases resources acquired by Open.
func New(r io.Reader, schema *columnar.Schema, opts Options) (*Source, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "jsonl source needs a declared schema")
	}
	return &Source{
		schema: schema,
		opts:   opts.withDefaults(),
		dec:    json.NewDecoder(r),
		log:    logger.Get().With(zap.String("source", "jsonl")),
		path:   "<reader>",
	}, nil
}

// Open creates a source over a file, decompressing by extension.
func Open(path string, schema *columnar.Schema, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeSource, "open %s", path)
	}

	var r io.Reader = f
	closers := []io.Closer{f}
	if algo, ok := compression.ByExtension(path); ok {
		rc, err := compression.NewReader(f, algo)
		if err != nil {
			f.Close()
			return nil, err
		}
		r = rc
		closers = []io.Closer{rc, f}
	}

	s, err := New(r, schema, opts)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	s.path = path
	s.closers = closers
	s.log.Info("jsonl source opened",
		zap.String("path", path),
		zap.Int("columns", schema.Len()))
	return s, nil
}

// Schema returns the declared schema.
func (s *Source) Schema() *columnar.Schema { return s.schema }

// Rows returns the number of rows produced so far.
func (s *Source) Rows() int64 { return s.rows }

// Next decodes up to BatchSize objects and returns them as a batch, or
// io.EOF once the stream is drained. The batch's map and value slices are
// pooled and reclaimed by the following Next, so a batch stays valid only
// until then; materialize it before pulling again.
func (s *Source) Next(ctx context.Context) (frame.Batch, error) {
	s.recycle()
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "jsonl read canceled")
	}

	fields := s.schema.Fields()
	batch := frame.Batch(pool.GetBatchColumns())
	cols := make([][]any, len(fields))
	for i, f := range fields {
		cols[i] = pool.GetValueSlice(s.opts.BatchSize)
		batch[f.Name] = cols[i]
	}
	s.live = batch

	n := 0
	for n < s.opts.BatchSize {
		var row map[string]any
		err := s.dec.Decode(&row)
		if err == io.EOF {
			s.finish()
			break
		}
		if err != nil {
			metrics.RowsRead.WithLabelValues("jsonl", "error").Inc()
			return nil, errors.Wrapf(err, errors.ErrorTypeSource,
				"decode %s: row %d", s.path, s.rows+int64(n)+1)
		}
		for i, f := range fields {
			v, err := convert(f.DType, row[f.Name], s.opts.Layouts)
			if err != nil {
				metrics.RowsRead.WithLabelValues("jsonl", "error").Inc()
				return nil, errors.Wrapf(err, errors.ErrorTypeSource,
					"%s: row %d, column %q", s.path, s.rows+int64(n)+1, f.Name)
			}
			cols[i] = append(cols[i], v)
		}
		n++
	}
	if n == 0 {
		s.recycle()
		return nil, io.EOF
	}

	s.rows += int64(n)
	metrics.RowsRead.WithLabelValues("jsonl", "ok").Add(float64(n))

	for i, f := range fields {
		batch[f.Name] = cols[i]
	}
	return batch, nil
}

// recycle returns the previous batch's backing storage to the pools.
func (s *Source) recycle() {
	if s.live == nil {
		return
	}
	for _, c := range s.live {
		pool.PutValueSlice(c)
	}
	pool.PutBatchColumns(s.live)
	s.live = nil
}

// Close releases the file and decompressor when the source was opened
// from a path. Safe to call more than once.
func (s *Source) Close() error {
	if s.closers == nil {
		return nil
	}
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	if first != nil {
		return errors.Wrapf(first, errors.ErrorTypeSource, "close %s", s.path)
	}
	return nil
}

func (s *Source) finish() {
	s.done = true
	if err := s.Close(); err != nil {
		s.log.Warn("close after drain", zap.Error(err))
	}
	s.log.Debug("jsonl source drained",
		zap.String("path", s.path),
		zap.Int64("rows", s.rows))
}

// convert maps one decoded JSON value into the value domain of dtype.
// Decoded numbers arrive as json.Number so integers keep full
// precision.
func convert(dtype columnar.DType, v any, layouts []string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dtype {
	case columnar.DTypeInt:
		num, ok := v.(json.Number)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSource, "expected number, got %T", v)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeSource, "bad integer %q", num.String())
		}
		return n, nil
	case columnar.DTypeFloat:
		num, ok := v.(json.Number)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSource, "expected number, got %T", v)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeSource, "bad float %q", num.String())
		}
		return f, nil
	case columnar.DTypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSource, "expected bool, got %T", v)
		}
		return b, nil
	case columnar.DTypeTimestamp:
		str, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSource, "expected timestamp string, got %T", v)
		}
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, str); err == nil {
				return ts, nil
			}
		}
		return nil, errors.Newf(errors.ErrorTypeSource, "bad timestamp %q", str)
	case columnar.DTypeCategorical:
		str, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSource, "expected string, got %T", v)
		}
		return str, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}
