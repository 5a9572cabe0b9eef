// Package postgres bulk-loads row batches into one table over the COPY
// protocol.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
)

// Options configures a Writer.
type Options struct {
	// DSN is the postgres connection string.
	DSN string
	// Table is the target table, optionally schema-qualified
	// ("analytics.orders").
	Table string
	// CreateTable issues CREATE TABLE IF NOT EXISTS from the declared
	// schema before the first copy.
	CreateTable bool
	// Truncate empties the table before the first copy.
	Truncate bool
}

// Writer is a Sink copying rows into one postgres table.
type Writer struct {
	opts   Options
	ident  pgx.Identifier
	pool   *pgxpool.Pool
	schema *columnar.Schema
	cols   []string
	log    *zap.Logger
	rows   int64
}

// New validates the options. The connection is established by Open.
func New(opts Options) (*Writer, error) {
	if opts.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres sink needs a dsn")
	}
	if opts.Table == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgres sink needs a table")
	}
	return &Writer{
		opts:  opts,
		ident: tableIdent(opts.Table),
		log: logger.Get().With(
			zap.String("sink", "postgres"),
			zap.String("table", opts.Table)),
	}, nil
}

// Open connects, verifies the connection, and prepares the table.
func (w *Writer) Open(ctx context.Context, schema *columnar.Schema) error {
	cfg, err := pgxpool.ParseConfig(w.opts.DSN)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "parse postgres dsn")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Wrap(err, errors.ErrorTypeSink, "ping postgres")
	}

	w.pool = pool
	w.schema = schema
	w.cols = schema.Names()

	if w.opts.CreateTable {
		if _, err := pool.Exec(ctx, CreateStatement(w.ident, schema)); err != nil {
			pool.Close()
			w.pool = nil
			return errors.Wrapf(err, errors.ErrorTypeSink, "create table %s", w.opts.Table)
		}
	}
	if w.opts.Truncate {
		if _, err := pool.Exec(ctx, "TRUNCATE "+w.ident.Sanitize()); err != nil {
			pool.Close()
			w.pool = nil
			return errors.Wrapf(err, errors.ErrorTypeSink, "truncate %s", w.opts.Table)
		}
	}

	w.log.Info("postgres sink opened", zap.Int("columns", schema.Len()))
	return nil
}

// WriteBatch copies the visible rows of rb into the table.
func (w *Writer) WriteBatch(ctx context.Context, rb *frame.RowBatch) error {
	if w.pool == nil {
		return errors.New(errors.ErrorTypeInternal, "postgres sink written before open")
	}
	if !rb.Schema().Equal(w.schema) {
		return errors.Newf(errors.ErrorTypeSchemaMismatch,
			"batch schema does not match sink schema %v", w.cols)
	}

	n, err := w.pool.CopyFrom(ctx, w.ident, w.cols, NewCopySource(rb))
	if err != nil {
		metrics.RowsWritten.WithLabelValues("postgres", "error").Inc()
		return errors.Wrapf(err, errors.ErrorTypeSink, "copy into %s", w.opts.Table)
	}

	w.rows += n
	metrics.RowsWritten.WithLabelValues("postgres", "ok").Add(float64(n))
	return nil
}

// Close releases the connection pool. Safe to call more than once.
func (w *Writer) Close(ctx context.Context) error {
	if w.pool == nil {
		return nil
	}
	w.pool.Close()
	w.pool = nil
	w.log.Info("postgres sink closed", zap.Int64("rows", w.rows))
	return nil
}

// Rows returns the number of rows copied so far.
func (w *Writer) Rows() int64 { return w.rows }

// tableIdent splits an optionally schema-qualified table name into a
// sanitizable identifier.
func tableIdent(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// CreateStatement renders CREATE TABLE IF NOT EXISTS for the schema,
// with every column nullable.
func CreateStatement(ident pgx.Identifier, schema *columnar.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(ident.Sanitize())
	b.WriteString(" (")
	for i, f := range schema.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{f.Name}.Sanitize())
		b.WriteByte(' ')
		b.WriteString(sqlType(f.DType))
	}
	b.WriteString(")")
	return b.String()
}

func sqlType(dtype columnar.DType) string {
	switch dtype {
	case columnar.DTypeInt:
		return "bigint"
	case columnar.DTypeFloat:
		return "double precision"
	case columnar.DTypeBool:
		return "boolean"
	case columnar.DTypeTimestamp:
		return "timestamptz"
	default:
		return "text"
	}
}

// copySource adapts a RowBatch to pgx's CopyFromSource, feeding visible
// rows in order with nulls as nil.
type copySource struct {
	rb      *frame.RowBatch
	handles []columnar.Handle
	sel     []uint32
	vals    []any
	idx     int
}

// NewCopySource wraps rb for use with pgx CopyFrom.
func NewCopySource(rb *frame.RowBatch) pgx.CopyFromSource {
	n := rb.Schema().Len()
	handles := make([]columnar.Handle, n)
	for j := 0; j < n; j++ {
		handles[j] = rb.HandleAt(j)
	}
	return &copySource{
		rb:      rb,
		handles: handles,
		sel:     rb.Indices(),
		vals:    make([]any, n),
		idx:     -1,
	}
}

func (c *copySource) Next() bool {
	c.idx++
	return c.idx < c.rb.Len()
}

func (c *copySource) Values() ([]any, error) {
	pos := c.idx
	if c.sel != nil {
		pos = int(c.sel[c.idx])
	}
	for j, h := range c.handles {
		v, ok := h.Value(pos)
		if !ok {
			c.vals[j] = nil
			continue
		}
		c.vals[j] = v
	}
	return c.vals, nil
}

func (c *copySource) Err() error { return nil }
