// Command quasar runs config-driven dataframe pipelines and inspects
// columnar datasets from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/internal/pipeline"
	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/frame"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/pool"
	sourcecsv "github.com/ajitpratap0/quasar/pkg/source/csv"
	sourcejsonl "github.com/ajitpratap0/quasar/pkg/source/jsonl"
)

var version = "0.1.0"

func main() {
	// Load .env if present so ${VAR} config references resolve.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "quasar",
		Short: "Quasar - columnar dataframe pipelines",
		Long: `Quasar is an in-memory columnar dataframe engine with lazy streams.
It loads CSV and JSONL datasets into typed columns, applies declarative
filter, select, melt, and pivot transforms, and writes the result to
files or Postgres.`,
	}

	root.AddCommand(newVersionCmd(), newRunCmd(), newInspectCmd(), newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quasar v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		logLevel    string
		timeout     time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline from a config file",
		Long: `Run a pipeline described by a YAML config file: one source, an
optional transform chain, one sink.

Example:
  quasar run --config pipelines/orders.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := logger.Init(logger.Config{
				Level:    cfg.Logging.Level,
				Encoding: cfg.Logging.Encoding,
			}); err != nil {
				return fmt.Errorf("logger setup failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}

			r, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			res, err := r.Run(ctx)
			if err != nil {
				return fmt.Errorf("pipeline %q failed: %w", cfg.Name, err)
			}

			fmt.Printf("pipeline %s: read %d rows, wrote %d rows in %s (%s rows/sec)\n",
				cfg.Name, res.RowsRead, res.RowsWritten,
				res.Elapsed.Round(time.Millisecond), fmtCount(int64(res.RowsPerSec)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline YAML config (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the config's log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration (0 means no limit)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		schemaSpec string
		format     string
		delimiter  string
		noHeader   bool
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Load a dataset and print its shape",
		Long: `Load a CSV or JSONL file into memory and print row count, per-column
null counts, dictionary sizes, and memory usage. The schema is declared,
never inferred.

Example:
  quasar inspect data/orders.csv.gz --schema id:int,price:float,region:string`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: "warn", Encoding: "console"}); err != nil {
				return fmt.Errorf("logger setup failed: %w", err)
			}
			path := args[0]

			schema, err := parseSchemaSpec(schemaSpec)
			if err != nil {
				return err
			}
			if format == "" {
				if format, err = inferFormat(path); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := openSource(path, format, schema, batchSize, delimiter, noHeader)
			if err != nil {
				return err
			}
			tbl, err := frame.LoadTable(ctx, src)
			if err != nil {
				return err
			}

			fmt.Printf("File:    %s\n", path)
			fmt.Printf("Format:  %s\n", format)
			fmt.Printf("Rows:    %s\n", fmtCount(int64(tbl.RowCount())))
			fmt.Printf("Memory:  %s\n\n", fmtBytes(tbl.MemoryUsage()))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COLUMN\tTYPE\tNULLS\tDISTINCT\tMEMORY")
			for i, f := range tbl.Schema().Fields() {
				h := tbl.ColumnAt(i)
				distinct := "-"
				if cc, ok := h.(*columnar.CategoricalColumn); ok {
					distinct = fmt.Sprintf("%d", cc.DictionarySize())
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					f.Name, f.DType, h.NullCount(), distinct, fmtBytes(h.MemoryUsage()))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&schemaSpec, "schema", "", "Column declarations as name:dtype pairs, comma separated (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().StringVar(&format, "format", "", "Input format, csv or jsonl (default inferred from extension)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV field delimiter (default comma)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "CSV file has no header row")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per read batch (default 8192)")
	return cmd
}

func newBenchCmd() *cobra.Command {
	var (
		rows      int
		batchSize int
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark append, filter, and drain throughput",
		Long: `Generate a synthetic dataset in memory and report throughput for the
engine's hot paths: batch append, predicate scan, and chunked drain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: "warn", Encoding: "console"}); err != nil {
				return fmt.Errorf("logger setup failed: %w", err)
			}
			return runBench(cmd.Context(), rows, batchSize, chunkSize)
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 1_000_000, "Number of synthetic rows")
	cmd.Flags().IntVar(&batchSize, "batch-size", 8192, "Rows per appended batch")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 4096, "Rows per drained chunk")
	return cmd
}

func runBench(ctx context.Context, rows, batchSize, chunkSize int) error {
	schema, err := columnar.NewSchema([]columnar.Field{
		{Name: "id", DType: columnar.DTypeInt},
		{Name: "price", DType: columnar.DTypeFloat},
		{Name: "region", DType: columnar.DTypeCategorical},
		{Name: "rush", DType: columnar.DTypeBool},
		{Name: "placed", DType: columnar.DTypeTimestamp},
	})
	if err != nil {
		return err
	}
	tbl, err := frame.NewTable(schema)
	if err != nil {
		return err
	}

	regions := []string{"east", "west", "north", "south"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fmt.Printf("=== Quasar engine benchmark ===\n")
	fmt.Printf("rows: %s, batch size: %d, chunk size: %d\n\n", fmtCount(int64(rows)), batchSize, chunkSize)

	start := time.Now()
	for appended := 0; appended < rows; {
		n := min(batchSize, rows-appended)
		ids := pool.GetValueSlice(n)
		prices := pool.GetValueSlice(n)
		regs := pool.GetValueSlice(n)
		rush := pool.GetValueSlice(n)
		placed := pool.GetValueSlice(n)
		for i := 0; i < n; i++ {
			row := appended + i
			ids = append(ids, int64(row))
			if row%13 == 0 {
				prices = append(prices, nil)
			} else {
				prices = append(prices, rand.Float64()*100)
			}
			regs = append(regs, regions[row%len(regions)])
			rush = append(rush, row%3 == 0)
			placed = append(placed, base.Add(time.Duration(row)*time.Second))
		}
		b := frame.Batch(pool.GetBatchColumns())
		b["id"], b["price"], b["region"], b["rush"], b["placed"] = ids, prices, regs, rush, placed
		err := tbl.AppendBatch(b)
		// AppendBatch copies values into columns, so the batch storage
		// goes straight back to the pools.
		for _, col := range b {
			pool.PutValueSlice(col)
		}
		pool.PutBatchColumns(b)
		if err != nil {
			return err
		}
		appended += n
	}
	report("append", rows, time.Since(start))

	start = time.Now()
	matched, err := drain(ctx, tbl.Filter(frame.Equal("region", "east")).Chunks(chunkSize))
	if err != nil {
		return err
	}
	report(fmt.Sprintf("filter scan (%s matched)", fmtCount(matched)), rows, time.Since(start))

	start = time.Now()
	total, err := drain(ctx, tbl.Stream().Chunks(chunkSize))
	if err != nil {
		return err
	}
	report("chunked drain", int(total), time.Since(start))

	fmt.Printf("\ntable memory: %s\n", fmtBytes(tbl.MemoryUsage()))

	stats := pool.GetGlobalStats()
	for _, name := range []string{"batch_columns", "row_index", "value_slice"} {
		ps := stats[name]
		fmt.Printf("pool %-14s %d allocated, %d hits, %d misses\n",
			name, ps.Allocated, ps.Hits, ps.Misses)
	}
	return nil
}

func drain(ctx context.Context, it *frame.ChunkIter) (int64, error) {
	var rows int64
	for {
		rb, err := it.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows += int64(rb.Len())
	}
}

func report(name string, rows int, elapsed time.Duration) {
	rate := float64(rows) / elapsed.Seconds()
	fmt.Printf("%-28s %10s   %12s rows/sec\n",
		name+":", elapsed.Round(time.Millisecond), fmtCount(int64(rate)))
}

// openSource builds the file source for inspect.
func openSource(path, format string, schema *columnar.Schema, batchSize int, delimiter string, noHeader bool) (frame.BatchSource, error) {
	switch format {
	case "csv":
		opts := sourcecsv.Options{BatchSize: batchSize, NoHeader: noHeader}
		if delimiter != "" {
			opts.Delimiter = []rune(delimiter)[0]
		}
		return sourcecsv.Open(path, schema, opts)
	case "jsonl":
		return sourcejsonl.Open(path, schema, sourcejsonl.Options{BatchSize: batchSize})
	default:
		return nil, fmt.Errorf("unknown format %q, expected csv or jsonl", format)
	}
}

// inferFormat maps the file extension to a source format, looking past a
// trailing compression extension like .gz or .zst.
func inferFormat(path string) (string, error) {
	stem := path
	if _, ok := compression.ByExtension(stem); ok {
		stem = stem[:strings.LastIndex(stem, ".")]
	}
	switch {
	case strings.HasSuffix(stem, ".csv"):
		return "csv", nil
	case strings.HasSuffix(stem, ".jsonl"), strings.HasSuffix(stem, ".ndjson"), strings.HasSuffix(stem, ".json"):
		return "jsonl", nil
	default:
		return "", fmt.Errorf("cannot infer format of %q, pass --format", path)
	}
}

// parseSchemaSpec parses "id:int,price:float,region:string" into a schema.
func parseSchemaSpec(spec string) (*columnar.Schema, error) {
	if spec == "" {
		return nil, fmt.Errorf("schema spec is empty")
	}
	parts := strings.Split(spec, ",")
	fields := make([]columnar.Field, 0, len(parts))
	for _, part := range parts {
		name, dtype, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("schema entry %q is not name:dtype", part)
		}
		dt, err := columnar.ParseDType(dtype)
		if err != nil {
			return nil, err
		}
		fields = append(fields, columnar.Field{Name: name, DType: dt})
	}
	return columnar.NewSchema(fields)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Get().Warn("metrics server stopped", zap.Error(err))
	}
}

func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func fmtCount(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}
