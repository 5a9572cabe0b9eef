// Package quasar provides an in-memory columnar dataframe engine with
// lazy, pull-based streams.
//
// Data lives in typed append-only columns with bit-packed validity
// masks; string columns are dictionary encoded. Tables group columns
// under a schema and stay cheap to window and share: streams, slices,
// and projections reference column storage, they never copy values.
// Transformations build lazily and run only when chunks are pulled.
//
// # Architecture
//
// The engine is layered bottom up:
//
// 1. Columns: Column[T] stores values contiguously with a ValidityMask
// for nulls; CategoricalColumn maps strings through a dictionary so each
// row costs one code. Handles erase the element type at package
// boundaries while keeping typed access inside hot loops.
//
// 2. Tables: a Schema plus one handle per field. Appends come in
// column-oriented batches and are validated atomically, so a table
// never exposes a half-appended row.
//
// 3. Streams: filter, select, map_column, melt, and pivot compose into
// a stage chain evaluated per batch on pull. Only pivot buffers; every
// other stage threads index selections over shared storage.
//
// 4. Edges: sources parse CSV and JSONL into batches, sinks write
// chunks to CSV, JSONL, or Postgres, and arrowconv bridges tables to
// Arrow records. Compression is transparent at both edges.
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/quasar/pkg/columnar"
//	    "github.com/ajitpratap0/quasar/pkg/frame"
//	)
//
//	schema, _ := columnar.NewSchema([]columnar.Field{
//	    {Name: "id", DType: columnar.DTypeInt},
//	    {Name: "price", DType: columnar.DTypeFloat},
//	    {Name: "region", DType: columnar.DTypeCategorical},
//	})
//	tbl, _ := frame.NewTable(schema)
//	_ = tbl.AppendBatch(frame.Batch{
//	    "id":     {int64(1), int64(2)},
//	    "price":  {9.99, nil},
//	    "region": {"east", "west"},
//	})
//
//	it := tbl.Filter(frame.NotNull("price")).Select("id", "price").Chunks(1024)
//	for {
//	    rb, err := it.Next(context.Background())
//	    if err != nil {
//	        break
//	    }
//	    _ = rb
//	}
//
// # Key Packages
//
//	pkg/columnar     - Columns, validity masks, dictionaries, schemas
//	pkg/frame        - Tables, row batch views, lazy streams, reshaping
//	pkg/source       - CSV and JSONL batch sources
//	pkg/sink         - CSV, JSONL, and Postgres batch sinks
//	pkg/arrowconv    - Arrow record conversion
//	pkg/compression  - Transparent stream compression codecs
//	pkg/config       - YAML pipeline configuration
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus instrumentation
//
// # Pipelines
//
// Whole jobs can be declared in YAML and run with the CLI:
//
//	name: orders-load
//	source:
//	  format: csv
//	  path: data/orders.csv.gz
//	schema:
//	  - {name: id, dtype: int}
//	  - {name: price, dtype: float}
//	  - {name: region, dtype: string}
//	transform:
//	  filters:
//	    - {column: price, op: not_null}
//	sink:
//	  format: postgres
//	  postgres:
//	    dsn: ${ORDERS_PG_DSN}
//	    table: orders
//
//	quasar run --config orders.yaml
//
// Environment variables are supported with ${VAR_NAME} syntax.
package quasar
