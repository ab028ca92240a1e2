package writers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// JSONWriter writes records as a JSON array of objects keyed by column name.
type JSONWriter struct {
	file     *os.File
	buf      *bufio.Writer
	encoder  *json.Encoder
	firstRow bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(config core.WriterConfig) (core.DatasetWriter, error) {
	file, err := createFile(config, "JSON")
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(file)
	if _, err := buf.WriteString("[\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: write opening bracket: %w", core.ErrIOFailure, err)
	}

	encoder := json.NewEncoder(buf)
	encoder.SetIndent("  ", "  ")
	encoder.SetEscapeHTML(false)

	return &JSONWriter{
		file:     file,
		buf:      buf,
		encoder:  encoder,
		firstRow: true,
	}, nil
}

// Write writes a record to the file.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schema := record.Schema()
	for i := 0; i < int(record.NumRows()); i++ {
		row := make(map[string]any, record.NumCols())
		for j := 0; j < int(record.NumCols()); j++ {
			row[schema.Field(j).Name] = value(record.Column(j), i)
		}

		if !w.firstRow {
			if _, err := w.buf.WriteString(",\n"); err != nil {
				return fmt.Errorf("%w: write separator: %w", core.ErrIOFailure, err)
			}
		}
		w.firstRow = false

		if err := w.encoder.Encode(row); err != nil {
			return fmt.Errorf("%w: encode row: %w", core.ErrIOFailure, err)
		}
	}
	return nil
}

func value(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch col := col.(type) {
	case *array.Int32:
		return col.Value(i)
	case *array.Int64:
		return col.Value(i)
	case *array.Float64:
		return col.Value(i)
	case *array.Boolean:
		return col.Value(i)
	case *array.String:
		return col.Value(i)
	case *array.LargeString:
		return col.Value(i)
	default:
		return col.ValueStr(i)
	}
}

// Close closes the writer and flushes any pending data.
func (w *JSONWriter) Close() error {
	if w.file == nil {
		return nil
	}
	_, err := w.buf.WriteString("]\n")
	if flushErr := w.buf.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	w.file = nil
	if err != nil {
		return fmt.Errorf("%w: close JSON file: %w", core.ErrIOFailure, err)
	}
	return nil
}
