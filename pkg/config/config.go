// Package config defines the YAML pipeline configuration: a declared
// schema, one source, an optional transform chain, and one sink. Files
// load through Load, which substitutes ${VAR} references from the
// environment before parsing, so credentials never live in the file.
//
// Example:
//
//	name: orders-load
//	source:
//	  format: csv
//	  path: data/orders.csv.gz
//	schema:
//	  - {name: id, dtype: int}
//	  - {name: price, dtype: float}
//	  - {name: region, dtype: string}
//	sink:
//	  format: postgres
//	  postgres:
//	    dsn: ${ORDERS_PG_DSN}
//	    table: orders
package config

import (
	"github.com/ajitpratap0/quasar/pkg/columnar"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
)

// PipelineConfig is the root of a pipeline file.
type PipelineConfig struct {
	// Name identifies the run in logs and metrics.
	Name string `yaml:"name" json:"name"`

	// Logging adjusts the run's logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Source declares where rows come from.
	Source SourceConfig `yaml:"source" json:"source"`

	// Schema declares the columns the source must produce.
	Schema []ColumnConfig `yaml:"schema" json:"schema"`

	// Transform lists the operations applied between source and sink.
	Transform TransformConfig `yaml:"transform" json:"transform"`

	// Sink declares where rows go.
	Sink SinkConfig `yaml:"sink" json:"sink"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// ColumnConfig declares one schema column.
type ColumnConfig struct {
	Name  string `yaml:"name" json:"name"`
	DType string `yaml:"dtype" json:"dtype"`
}

// SourceConfig declares the input.
type SourceConfig struct {
	// Format is csv or jsonl. Compression is inferred from Path's
	// extension, never configured.
	Format    string     `yaml:"format" json:"format"`
	Path      string     `yaml:"path" json:"path"`
	BatchSize int        `yaml:"batch_size" json:"batch_size"`
	CSV       CSVOptions `yaml:"csv" json:"csv"`
}

// CSVOptions tune csv parsing.
type CSVOptions struct {
	// Delimiter is a single rune; empty means comma.
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Header controls whether the first row names columns. Defaults true
	// via DefaultPipelineConfig.
	Header bool `yaml:"header" json:"header"`
	// Comment skips lines starting with this rune when non-empty.
	Comment string `yaml:"comment" json:"comment"`
}

// TransformConfig lists declarative stream operations, applied in the
// order: filters, select, melt, pivot.
type TransformConfig struct {
	Filters []FilterConfig `yaml:"filters" json:"filters"`
	Select  []string       `yaml:"select" json:"select"`
	Melt    *MeltConfig    `yaml:"melt" json:"melt"`
	Pivot   *PivotConfig   `yaml:"pivot" json:"pivot"`
}

// FilterConfig is one comparison predicate.
type FilterConfig struct {
	Column string `yaml:"column" json:"column"`
	// Op is one of eq, neq, gt, lt, not_null.
	Op    string      `yaml:"op" json:"op"`
	Value interface{} `yaml:"value" json:"value"`
}

// MeltConfig reshapes wide rows to long rows.
type MeltConfig struct {
	IDColumns    []string `yaml:"id_columns" json:"id_columns"`
	ValueColumns []string `yaml:"value_columns" json:"value_columns"`
}

// PivotConfig reshapes long rows to wide rows.
type PivotConfig struct {
	Index   string `yaml:"index" json:"index"`
	Columns string `yaml:"columns" json:"columns"`
	Values  string `yaml:"values" json:"values"`
}

// SinkConfig declares the output.
type SinkConfig struct {
	// Format is csv, jsonl, or postgres.
	Format    string `yaml:"format" json:"format"`
	Path      string `yaml:"path" json:"path"`
	ChunkSize int    `yaml:"chunk_size" json:"chunk_size"`
	// Array switches the jsonl sink to a single JSON array.
	Array       bool               `yaml:"array" json:"array"`
	Compression compression.Config `yaml:"compression" json:"compression"`
	Postgres    PostgresOptions    `yaml:"postgres" json:"postgres"`
}

// PostgresOptions configure the postgres bulk sink.
type PostgresOptions struct {
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
	// CreateTable issues CREATE TABLE IF NOT EXISTS from the declared
	// schema before loading.
	CreateTable bool `yaml:"create_table" json:"create_table"`
	// Truncate empties the table before loading.
	Truncate bool `yaml:"truncate" json:"truncate"`
}

// DefaultPipelineConfig returns a config with the engine's defaults
// filled in; Load starts from this before overlaying the file.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Source: SourceConfig{
			BatchSize: 8192,
			CSV:       CSVOptions{Delimiter: ",", Header: true},
		},
		Sink: SinkConfig{
			ChunkSize:   4096,
			Compression: compression.Config{Algorithm: compression.None, Level: compression.Default},
		},
	}
}

// ToSchema converts the declared columns into an engine schema.
func (pc *PipelineConfig) ToSchema() (*columnar.Schema, error) {
	if len(pc.Schema) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "schema must declare at least one column")
	}
	fields := make([]columnar.Field, len(pc.Schema))
	for i, col := range pc.Schema {
		dt, err := columnar.ParseDType(col.DType)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "schema column %q", col.Name)
		}
		fields[i] = columnar.Field{Name: col.Name, DType: dt}
	}
	return columnar.NewSchema(fields)
}

// Validate checks the config for problems the run would otherwise hit
// mid-flight.
func (pc *PipelineConfig) Validate() error {
	if pc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}

	switch pc.Source.Format {
	case "csv", "jsonl":
	case "":
		return errors.New(errors.ErrorTypeConfig, "source.format is required")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown source format %q", pc.Source.Format)
	}
	if pc.Source.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "source.path is required")
	}
	if pc.Source.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "source.batch_size must be positive")
	}
	if len(pc.Source.CSV.Delimiter) > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "csv delimiter %q must be a single character", pc.Source.CSV.Delimiter)
	}

	if _, err := pc.ToSchema(); err != nil {
		return err
	}

	for _, f := range pc.Transform.Filters {
		switch f.Op {
		case "eq", "neq", "gt", "lt", "not_null":
		default:
			return errors.Newf(errors.ErrorTypeConfig, "unknown filter op %q on column %q", f.Op, f.Column)
		}
		if f.Column == "" {
			return errors.New(errors.ErrorTypeConfig, "filter column is required")
		}
	}
	if m := pc.Transform.Melt; m != nil && len(m.ValueColumns) == 0 {
		return errors.New(errors.ErrorTypeConfig, "melt.value_columns must not be empty")
	}
	if p := pc.Transform.Pivot; p != nil {
		if p.Index == "" || p.Columns == "" || p.Values == "" {
			return errors.New(errors.ErrorTypeConfig, "pivot needs index, columns, and values")
		}
	}

	switch pc.Sink.Format {
	case "csv", "jsonl":
		if pc.Sink.Path == "" {
			return errors.Newf(errors.ErrorTypeConfig, "%s sink needs a path", pc.Sink.Format)
		}
	case "postgres":
		if pc.Sink.Postgres.DSN == "" {
			return errors.New(errors.ErrorTypeConfig, "postgres sink needs a dsn")
		}
		if pc.Sink.Postgres.Table == "" {
			return errors.New(errors.ErrorTypeConfig, "postgres sink needs a table")
		}
	case "":
		return errors.New(errors.ErrorTypeConfig, "sink.format is required")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown sink format %q", pc.Sink.Format)
	}
	if pc.Sink.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "sink.chunk_size must be positive")
	}
	if _, err := compression.ParseAlgorithm(string(pc.Sink.Compression.Algorithm)); err != nil {
		return err
	}
	return nil
}
