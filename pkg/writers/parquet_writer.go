package writers

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// ParquetWriter writes records to a snappy-compressed Parquet file.
type ParquetWriter struct {
	writer     *pqarrow.FileWriter
	file       *os.File
	properties pqarrow.ArrowWriterProperties
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	file, err := createFile(config, "Parquet")
	if err != nil {
		return nil, err
	}

	// The file writer is created on the first record, which carries the schema.
	return &ParquetWriter{
		file:       file,
		properties: pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()),
	}, nil
}

// Write writes a record to the file.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.writer == nil {
		writeProps := parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy),
			parquet.WithDictionaryDefault(false),
		)
		writer, err := pqarrow.NewFileWriter(record.Schema(), w.file, writeProps, w.properties)
		if err != nil {
			return fmt.Errorf("%w: create Parquet writer: %w", core.ErrIOFailure, err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("%w: write Parquet record: %w", core.ErrIOFailure, err)
	}
	return nil
}

// Close closes the writer and flushes any pending data.
func (w *ParquetWriter) Close() error {
	var err error

	// pqarrow closes the underlying sink along with the writer.
	if w.writer != nil {
		err = w.writer.Close()
		w.writer = nil
		w.file = nil
	}
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	if err != nil {
		return fmt.Errorf("%w: close Parquet file: %w", core.ErrIOFailure, err)
	}
	return nil
}
