// Package csv reads delimited files into schema-declared row batches.
//
// The schema is always declared by the caller, never inferred from the
// file. When the file carries a header row it is validated against the
// declared column names. Files compressed with a recognized extension
// (.gz, .zst, .lz4, .s2, .sz, .snappy, .zz) are decompressed
// transparently.
package csv

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/pool"
)

// DefaultBatchSize is the number of rows per produced batch when the
// options leave it unset.
const DefaultBatchSize = 8192

// defaultLayouts are the timestamp layouts tried in order.
var defaultLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Options configures a Source. The zero value reads comma-separated
// files with a header row in batches of DefaultBatchSize.
type Options struct {
	// BatchSize is the number of rows per produced batch.
	BatchSize int
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// NoHeader skips header handling for files without a header row.
	// By default the first row must repeat the declared column names.
	NoHeader bool
	// Comment makes lines starting with this rune skipped. Zero disables.
	Comment rune
	// Layouts are timestamp layouts tried in order. Empty means RFC3339,
	// then "2006-01-02 15:04:05", then "2006-01-02".
	Layouts []string
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if len(o.Layouts) == 0 {
		o.Layouts = defaultLayouts
	}
	return o
}

// Source produces row batches from one delimited file or reader. It is
// driven by a single consumer pulling Next and is not safe for
// concurrent use.
type Source struct {
	schema  *columnar.Schema
	opts    Options
	reader  *csv.Reader
	closers []io.Closer
	log     *zap.Logger
	path    string
	live    frame.Batch
	rows    int64
	started bool
	done    bool
}

// New creates a source over an open reader. The caller keeps ownership
// of r; Close only releases resources acquired by Open.
func New(r io.Reader, schema *columnar.Schema, opts Options) (*Source, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "csv source needs a declared schema")
	}
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = schema.Len()
	cr.ReuseRecord = true
	if opts.Comment != 0 {
		cr.Comment = opts.Comment
	}

	return &Source{
		schema: schema,
		opts:   opts,
		reader: cr,
		log:    logger.Get().With(zap.String("source", "csv")),
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
		closeAll(closers)
		return nil, err
	}
	s.path = path
	s.closers = closers
	s.log.Info("csv source opened",
		zap.String("path", path),
		zap.Int("columns", schema.Len()))
	return s, nil
}

// Schema returns the declared schema.
func (s *Source) Schema() *columnar.Schema { return s.schema }

// Rows returns the number of data rows produced so far.
func (s *Source) Rows() int64 { return s.rows }

// Next reads up to BatchSize rows and returns them as a batch, or io.EOF
// once the file is drained. Empty cells become nulls. The batch's map and
// value slices are pooled and reclaimed by the following Next, so a batch
// stays valid only until then; materialize it before pulling again. Same
// contract as csv.Reader with ReuseRecord.
func (s *Source) Next(ctx context.Context) (frame.Batch, error) {
	s.recycle()
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "csv read canceled")
	}
	if !s.started {
		if err := s.consumeHeader(); err != nil {
			return nil, err
		}
		s.started = true
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
		rec, err := s.reader.Read()
		if err == io.EOF {
			s.finish()
			break
		}
		if err != nil {
			metrics.RowsRead.WithLabelValues("csv", "error").Inc()
			return nil, errors.Wrapf(err, errors.ErrorTypeSource, "read %s", s.path)
		}
		for i, f := range fields {
			v, err := parseValue(f.DType, rec[i], s.opts.Layouts)
			if err != nil {
				line, _ := s.reader.FieldPos(i)
				metrics.RowsRead.WithLabelValues("csv", "error").Inc()
				return nil, errors.Wrapf(err, errors.ErrorTypeSource,
					"%s: line %d, column %q", s.path, line, f.Name)
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
	metrics.RowsRead.WithLabelValues("csv", "ok").Add(float64(n))

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
	err := closeAll(s.closers)
	s.closers = nil
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSource, "close %s", s.path)
	}
	return nil
}

// consumeHeader reads the header row and checks it repeats the declared
// column names in order.
func (s *Source) consumeHeader() error {
	if s.opts.NoHeader {
		return nil
	}
	rec, err := s.reader.Read()
	if err == io.EOF {
		s.finish()
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSource, "read %s header", s.path)
	}
	for i, f := range s.schema.Fields() {
		if rec[i] != f.Name {
			return errors.Newf(errors.ErrorTypeSchemaMismatch,
				"%s: header column %d is %q, schema declares %q", s.path, i, rec[i], f.Name)
		}
	}
	return nil
}

func (s *Source) finish() {
	s.done = true
	if err := s.Close(); err != nil {
		s.log.Warn("close after drain", zap.Error(err))
	}
	s.log.Debug("csv source drained",
		zap.String("path", s.path),
		zap.Int64("rows", s.rows))
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// parseValue converts one raw cell to the value domain of dtype. The
// empty cell is null for every dtype.
func parseValue(dtype columnar.DType, raw string, layouts []string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch dtype {
	case columnar.DTypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeSource, "bad integer %q", raw)
		}
		return n, nil
	case columnar.DTypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeSource, "bad float %q", raw)
		}
		return f, nil
	case columnar.DTypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeSource, "bad bool %q", raw)
		}
		return b, nil
	case columnar.DTypeTimestamp:
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return nil, errors.Newf(errors.ErrorTypeSource, "bad timestamp %q", raw)
	case columnar.DTypeCategorical:
		return raw, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}
