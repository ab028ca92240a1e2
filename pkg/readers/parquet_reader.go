package readers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/gkgsynth/pkg/core"
)

const defaultBatchSize = 10000

// ParquetReader reads a Parquet file in record batches.
type ParquetReader struct {
	schema       *arrow.Schema
	fileReader   *file.Reader
	arrowReader  *pqarrow.FileReader
	recordReader pqarrow.RecordReader
	file         *os.File
}

// NewParquetReader creates a new Parquet reader.
func NewParquetReader(config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: path is required for Parquet reader", core.ErrInvalidArgument)
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open Parquet file: %w", core.ErrIOFailure, err)
	}

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read Parquet footer: %w", core.ErrMalformedInput, err)
	}

	arrowProps := pqarrow.ArrowReadProperties{BatchSize: batchSize}
	arrowReader, err := pqarrow.NewFileReader(parquetReader, arrowProps, memory.NewGoAllocator())
	if err != nil {
		parquetReader.Close()
		return nil, fmt.Errorf("%w: create Arrow reader: %w", core.ErrMalformedInput, err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		parquetReader.Close()
		return nil, fmt.Errorf("%w: get schema: %w", core.ErrMalformedInput, err)
	}

	return &ParquetReader{
		schema:      schema,
		fileReader:  parquetReader,
		arrowReader: arrowReader,
		file:        f,
	}, nil
}

// Read returns the next batch of records.
func (r *ParquetReader) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.recordReader == nil {
		rr, err := r.arrowReader.GetRecordReader(ctx, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: create record reader: %w", core.ErrMalformedInput, err)
		}
		r.recordReader = rr
	}

	if !r.recordReader.Next() {
		if err := r.recordReader.Err(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: read Parquet batch: %w", core.ErrMalformedInput, err)
		}
		return nil, io.EOF
	}
	return r.recordReader.Record(), nil
}

// Schema returns the schema of the dataset.
func (r *ParquetReader) Schema() *arrow.Schema {
	return r.schema
}

// NumRows is the row count recorded in the file footer.
func (r *ParquetReader) NumRows() int64 {
	return r.fileReader.NumRows()
}

// Close closes the reader and releases resources.
func (r *ParquetReader) Close() error {
	if r.recordReader != nil {
		r.recordReader.Release()
		r.recordReader = nil
	}
	// The parquet file reader closes the underlying os.File.
	if r.fileReader != nil {
		err := r.fileReader.Close()
		r.fileReader = nil
		r.file = nil
		return err
	}
	return nil
}
