// Package pipeline assembles and runs config-driven jobs: one source,
// a declarative transform chain, one sink, executed as a single
// pull-driven pass. The runner owns wiring and observability; the
// stream machinery in pkg/frame does the actual work.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/metrics"
	"github.com/ajitpratap0/quasar/pkg/sink"
	sinkcsv "github.com/ajitpratap0/quasar/pkg/sink/csv"
	sinkjsonl "github.com/ajitpratap0/quasar/pkg/sink/jsonl"
	sinkpostgres "github.com/ajitpratap0/quasar/pkg/sink/postgres"
	sourcecsv "github.com/ajitpratap0/quasar/pkg/source/csv"
	sourcejsonl "github.com/ajitpratap0/quasar/pkg/source/jsonl"
)

// timestampLayouts are tried in order when a filter literal for a
// timestamp column arrives as a string.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// source is what the runner needs from either file source.
type source interface {
	frame.BatchSource
	Rows() int64
	Close() error
}

// Runner executes one pipeline config. Build it with New, run it once
// with Run; a Runner is not reusable across runs.
type Runner struct {
	cfg    *config.PipelineConfig
	schema *columnar.Schema
	log    *zap.Logger
}

// Result summarizes a finished run.
type Result struct {
	// RowsRead counts rows the source produced before transforms.
	RowsRead int64
	// RowsWritten counts rows the sink accepted after transforms.
	RowsWritten int64
	// Elapsed is wall time for the whole pass.
	Elapsed time.Duration
	// RowsPerSec is sink throughput over the run.
	RowsPerSec float64
}

// New builds a runner from a validated config. Filter literals are
// coerced eagerly so a typo in the file fails here, not mid-run.
func New(cfg *config.PipelineConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	schema, err := cfg.ToSchema()
	if err != nil {
		return nil, err
	}
	for _, fc := range cfg.Transform.Filters {
		if _, err := buildPredicate(schema, fc); err != nil {
			return nil, err
		}
	}
	return &Runner{
		cfg:    cfg,
		schema: schema,
		log:    logger.Get().With(zap.String("pipeline", cfg.Name)),
	}, nil
}

// Run executes the pipeline: open source, apply transforms, drain into
// the sink. It blocks until the source is exhausted, the context is
// canceled, or a stage fails.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	timer := metrics.NewTimer()
	r.log.Info("pipeline starting",
		zap.String("source", r.cfg.Source.Format),
		zap.String("source_path", r.cfg.Source.Path),
		zap.String("sink", r.cfg.Sink.Format),
		zap.Int("batch_size", r.cfg.Source.BatchSize),
		zap.Int("chunk_size", r.cfg.Sink.ChunkSize))

	src, err := r.openSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	stream, err := r.buildStream(src)
	if err != nil {
		return nil, err
	}

	snk, err := r.openSink()
	if err != nil {
		return nil, err
	}

	tracker := metrics.NewThroughputTracker(r.cfg.Source.Format, r.cfg.Sink.Format)
	it := stream.Chunks(r.cfg.Sink.ChunkSize)
	rows, err := sink.Drain(ctx, it, &meteredSink{inner: snk, tracker: tracker})
	if err != nil {
		r.log.Error("pipeline failed",
			zap.Int64("rows_written", rows),
			zap.Duration("elapsed", timer.Stop()),
			zap.Error(err))
		return nil, err
	}

	res := &Result{
		RowsRead:    src.Rows(),
		RowsWritten: rows,
		Elapsed:     timer.Stop(),
		RowsPerSec:  tracker.GetAndReset(),
	}
	r.log.Info("pipeline finished",
		zap.Int64("rows_read", res.RowsRead),
		zap.Int64("rows_written", res.RowsWritten),
		zap.Duration("elapsed", res.Elapsed),
		zap.Float64("rows_per_sec", res.RowsPerSec))
	return res, nil
}

func (r *Runner) openSource() (source, error) {
	sc := r.cfg.Source
	switch sc.Format {
	case "csv":
		opts := sourcecsv.Options{
			BatchSize: sc.BatchSize,
			NoHeader:  !sc.CSV.Header,
		}
		if sc.CSV.Delimiter != "" {
			opts.Delimiter = []rune(sc.CSV.Delimiter)[0]
		}
		if sc.CSV.Comment != "" {
			opts.Comment = []rune(sc.CSV.Comment)[0]
		}
		return sourcecsv.Open(sc.Path, r.schema, opts)
	case "jsonl":
		opts := sourcejsonl.Options{BatchSize: sc.BatchSize}
		return sourcejsonl.Open(sc.Path, r.schema, opts)
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled source format %q", sc.Format)
	}
}

func (r *Runner) openSink() (sink.Sink, error) {
	sc := r.cfg.Sink
	switch sc.Format {
	case "csv":
		return sinkcsv.Create(sc.Path, sinkcsv.Options{Compression: sc.Compression})
	case "jsonl":
		return sinkjsonl.Create(sc.Path, sinkjsonl.Options{
			Array:       sc.Array,
			Compression: sc.Compression,
		})
	case "postgres":
		return sinkpostgres.New(sinkpostgres.Options{
			DSN:         sc.Postgres.DSN,
			Table:       sc.Postgres.Table,
			CreateTable: sc.Postgres.CreateTable,
			Truncate:    sc.Postgres.Truncate,
		})
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled sink format %q", sc.Format)
	}
}

// buildStream applies the transform chain in declaration order:
// filters, then select, then melt, then pivot.
func (r *Runner) buildStream(src frame.BatchSource) (*frame.Stream, error) {
	tc := r.cfg.Transform
	stream := frame.FromSource(src)
	for _, fc := range tc.Filters {
		pred, err := buildPredicate(r.schema, fc)
		if err != nil {
			return nil, err
		}
		stream = stream.Filter(pred)
	}
	if len(tc.Select) > 0 {
		stream = stream.Select(tc.Select...)
	}
	if m := tc.Melt; m != nil {
		stream = stream.Melt(m.IDColumns, m.ValueColumns)
	}
	if p := tc.Pivot; p != nil {
		stream = stream.Pivot(p.Index, p.Columns, p.Values)
	}
	return stream, nil
}

// buildPredicate turns one filter clause into a frame predicate,
// coercing the YAML literal to the column's dtype.
func buildPredicate(schema *columnar.Schema, fc config.FilterConfig) (frame.Predicate, error) {
	if fc.Op == "not_null" {
		return frame.NotNull(fc.Column), nil
	}

	f, ok := schema.Lookup(fc.Column)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "filter on undeclared column %q", fc.Column)
	}
	value, err := coerceLiteral(f, fc.Value)
	if err != nil {
		return nil, err
	}

	switch fc.Op {
	case "eq":
		return frame.Equal(fc.Column, value), nil
	case "neq":
		return frame.NotEqual(fc.Column, value), nil
	case "gt":
		return frame.GreaterThan(fc.Column, value), nil
	case "lt":
		return frame.LessThan(fc.Column, value), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown filter op %q on column %q", fc.Op, fc.Column)
	}
}

// coerceLiteral converts a YAML scalar to the value type the column's
// comparison expects. YAML hands integers over as int, floats as
// float64, and RFC3339-looking scalars already parsed to time.Time.
func coerceLiteral(f columnar.Field, v any) (any, error) {
	if v == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"filter on column %q needs a value; use not_null to test presence", f.Name)
	}
	switch f.DType {
	case columnar.DTypeInt:
		n, err := columnar.AsInt64(v)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "filter value for int column %q", f.Name)
		}
		return n, nil
	case columnar.DTypeFloat:
		n, err := columnar.AsFloat64(v)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "filter value for float column %q", f.Name)
		}
		return n, nil
	case columnar.DTypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"filter value for bool column %q must be true or false, got %T", f.Name, v)
		}
		return b, nil
	case columnar.DTypeTimestamp:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			for _, layout := range timestampLayouts {
				if ts, err := time.Parse(layout, tv); err == nil {
					return ts, nil
				}
			}
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"filter value %q for timestamp column %q matches no known layout", tv, f.Name)
		default:
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"filter value for timestamp column %q must be a timestamp, got %T", f.Name, v)
		}
	case columnar.DTypeCategorical:
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"filter value for string column %q must be a string, got %T", f.Name, v)
		}
		return s, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unhandled dtype %v", f.DType)
	}
}

// meteredSink wraps the configured sink with per-batch latency and
// throughput accounting. The stream side is already counted by the
// sources, so only the write edge is instrumented here.
type meteredSink struct {
	inner   sink.Sink
	tracker *metrics.ThroughputTracker
}

func (m *meteredSink) Open(ctx context.Context, schema *columnar.Schema) error {
	return m.inner.Open(ctx, schema)
}

func (m *meteredSink) WriteBatch(ctx context.Context, rb *frame.RowBatch) error {
	timer := metrics.NewTimer()
	err := m.inner.WriteBatch(ctx, rb)
	metrics.StageLatency.WithLabelValues("sink").Observe(float64(timer.Stop().Nanoseconds()))
	if err != nil {
		return err
	}
	metrics.BatchesProcessed.WithLabelValues("sink").Inc()
	m.tracker.Add(int64(rb.Len()))
	return nil
}

func (m *meteredSink) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}
