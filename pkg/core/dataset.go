package core

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// DatasetReader reads columnar batches of records.
type DatasetReader interface {
	// Read returns the next batch, or io.EOF when there are no more. The
	// batch is owned by the reader and valid until the next call.
	Read(ctx context.Context) (arrow.Record, error)

	// Schema returns the schema of the dataset.
	Schema() *arrow.Schema

	// Close closes the reader and releases resources.
	Close() error
}

// DatasetWriter writes columnar batches of records.
type DatasetWriter interface {
	// Write writes a record to the destination.
	Write(ctx context.Context, record arrow.Record) error

	// Close closes the writer and flushes any pending data.
	Close() error
}

// ReaderConfig provides configuration for creating a reader.
type ReaderConfig struct {
	// Type is the format: "parquet" or "arrow".
	Type string

	// Path is the path to the file.
	Path string

	// BatchSize is the number of rows per batch.
	BatchSize int64
}

// WriterConfig provides configuration for creating a writer.
type WriterConfig struct {
	// Type is the format: "parquet", "arrow" or "json".
	Type string

	// Path is the path to the file.
	Path string
}
