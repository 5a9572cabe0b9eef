// Package csv writes row batches as delimited text. Nulls become empty
// cells, which means a categorical empty string and a null collapse to
// the same cell; readers treat both as null.
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

// Options configures a Writer. The zero value writes comma-separated
// rows with a header and RFC3339 timestamps.
type Options struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// NoHeader suppresses the header row.
	NoHeader bool
	// Layout formats timestamp cells. Empty means RFC3339.
	Layout string
	// Compression selects the codec for files created by Create. The
	// zero value defers to the path extension, so "out.csv.zst" comes
	// out zstd-compressed.
	Compression compression.Config
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Layout == "" {
		o.Layout = time.RFC3339
	}
	if o.Compression.Level == 0 {
		o.Compression.Level = compression.Default
	}
	return o
}

// Writer is a Sink writing delimited rows to one file or stream.
type Writer struct {
	opts    Options
	cw      *csv.Writer
	closers []io.Closer
	log     *zap.Logger
	path    string
	schema  *columnar.Schema
	fields  []columnar.Field
	record  []string
	rows    int64
	closed  bool
}

// New creates a writer over an open stream. The caller keeps ownership
// of w.
func New(w io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	cw := csv.NewWriter(w)
	cw.Comma = opts.Delimiter
	return &Writer{
		opts: opts,
		cw:   cw,
		log:  logger.Get().With(zap.String("sink", "csv")),
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

// Open records the schema and writes the header row.
func (w *Writer) Open(ctx context.Context, schema *columnar.Schema) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "csv open canceled")
	}
	w.schema = schema
	w.fields = schema.Fields()
	w.record = make([]string, len(w.fields))
	if !w.opts.NoHeader {
		names := pool.GetStringSlice()
		for _, f := range w.fields {
			names = append(names, f.Name)
		}
		err := w.cw.Write(names)
		pool.PutStringSlice(names)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeSink, "write %s header", w.path)
		}
	}
	w.log.Info("csv sink opened",
		zap.String("path", w.path),
		zap.Int("columns", schema.Len()))
	return nil
}

// WriteBatch writes the visible rows of rb.
func (w *Writer) WriteBatch(ctx context.Context, rb *frame.RowBatch) error {
	if w.schema == nil {
		return errors.New(errors.ErrorTypeInternal, "csv sink written before open")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "csv write canceled")
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
		for j := range w.fields {
			v, ok := rb.HandleAt(j).Value(pos)
			if !ok {
				w.record[j] = ""
				continue
			}
			s, err := formatValue(w.fields[j].DType, v, w.opts.Layout)
			if err != nil {
				return err
			}
			w.record[j] = s
		}
		if err := w.cw.Write(w.record); err != nil {
			metrics.RowsWritten.WithLabelValues("csv", "error").Inc()
			return errors.Wrapf(err, errors.ErrorTypeSink, "write %s", w.path)
		}
	}

	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		metrics.RowsWritten.WithLabelValues("csv", "error").Inc()
		return errors.Wrapf(err, errors.ErrorTypeSink, "flush %s", w.path)
	}

	w.rows += int64(n)
	metrics.RowsWritten.WithLabelValues("csv", "ok").Add(float64(n))
	return nil
}

// Close flushes buffered rows and releases resources acquired by
// Create. Safe to call more than once.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.cw.Flush()
	err := w.cw.Error()

	for _, c := range w.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	w.closers = nil

	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeSink, "close %s", w.path)
	}
	w.log.Info("csv sink closed",
		zap.String("path", w.path),
		zap.Int64("rows", w.rows))
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

func formatValue(dtype columnar.DType, v any, layout string) (string, error) {
	switch dtype {
	case columnar.DTypeInt:
		return strconv.FormatInt(v.(int64), 10), nil
	case columnar.DTypeFloat:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64), nil
	case columnar.DTypeBool:
		return strconv.FormatBool(v.(bool)), nil
	case columnar.DTypeTimestamp:
		return v.(time.Time).Format(layout), nil
	case columnar.DTypeCategorical:
		return v.(string), nil
	default:
		return "", errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", dtype)
	}
}
