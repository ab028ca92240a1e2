package writers

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// ArrowWriter writes records to an Arrow IPC file.
type ArrowWriter struct {
	writer *ipc.FileWriter
	file   *os.File
}

// NewArrowWriter creates a new Arrow IPC writer.
func NewArrowWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	file, err := createFile(config, "Arrow")
	if err != nil {
		return nil, err
	}
	return &ArrowWriter{file: file}, nil
}

// Write writes a record to the file.
func (w *ArrowWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.writer == nil {
		writer, err := ipc.NewFileWriter(w.file, ipc.WithSchema(record.Schema()))
		if err != nil {
			return fmt.Errorf("%w: create Arrow writer: %w", core.ErrIOFailure, err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("%w: write Arrow record: %w", core.ErrIOFailure, err)
	}
	return nil
}

// Close closes the writer and flushes any pending data.
func (w *ArrowWriter) Close() error {
	var err error

	if w.writer != nil {
		err = w.writer.Close()
		w.writer = nil
	}
	if w.file != nil {
		if closeErr := w.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		w.file = nil
	}
	if err != nil {
		return fmt.Errorf("%w: close Arrow file: %w", core.ErrIOFailure, err)
	}
	return nil
}
