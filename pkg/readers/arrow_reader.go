package readers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// ArrowReader reads an Arrow IPC file one record batch at a time.
type ArrowReader struct {
	reader  *ipc.FileReader
	file    *os.File
	current int
}

// NewArrowReader creates a new Arrow IPC reader.
func NewArrowReader(config core.ReaderConfig) (core.DatasetReader, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: path is required for Arrow reader", core.ErrInvalidArgument)
	}

	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open Arrow file: %w", core.ErrIOFailure, err)
	}

	reader, err := ipc.NewFileReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read Arrow file: %w", core.ErrMalformedInput, err)
	}

	return &ArrowReader{reader: reader, file: f}, nil
}

// Read returns the next batch of records.
func (r *ArrowReader) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.current >= r.reader.NumRecords() {
		return nil, io.EOF
	}
	rec, err := r.reader.Record(r.current)
	if err != nil {
		return nil, fmt.Errorf("%w: read Arrow batch %d: %w", core.ErrMalformedInput, r.current, err)
	}
	r.current++
	return rec, nil
}

// Schema returns the schema of the dataset.
func (r *ArrowReader) Schema() *arrow.Schema {
	return r.reader.Schema()
}

// Close closes the reader and releases resources.
func (r *ArrowReader) Close() error {
	var err error
	if r.reader != nil {
		err = r.reader.Close()
		r.reader = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
