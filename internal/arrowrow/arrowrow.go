// Package arrowrow converts between partition rows and Arrow records.
package arrowrow

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// Schema is the columnar form of a partition: NUMARTS is int64, every other
// column is utf8, in header order.
var Schema = newSchema()

func newSchema() *arrow.Schema {
	fields := make([]arrow.Field, core.NumColumns)
	for i, name := range core.Columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String}
	}
	fields[core.ColNumArts].Type = arrow.PrimitiveTypes.Int64
	return arrow.NewSchema(fields, nil)
}

// CheckSchema verifies that s carries every partition column with the
// expected type. Extra columns are ignored.
func CheckSchema(s *arrow.Schema) error {
	for _, want := range Schema.Fields() {
		idx := s.FieldIndices(want.Name)
		if len(idx) != 1 {
			return fmt.Errorf("%w: column %s not found or ambiguous", core.ErrMalformedInput, want.Name)
		}
		got := s.Field(idx[0]).Type
		if want.Type.ID() == arrow.STRING && (got.ID() == arrow.STRING || got.ID() == arrow.LARGE_STRING) {
			continue
		}
		if want.Type.ID() == arrow.INT64 && arrow.IsInteger(got.ID()) {
			continue
		}
		return fmt.Errorf("%w: column %s has type %s, expected %s", core.ErrMalformedInput, want.Name, got, want.Type)
	}
	return nil
}

// Build converts rows to a record with Schema. The caller releases it.
func Build(mem memory.Allocator, rows []core.Row) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	for i, row := range rows {
		if len(row) != core.NumColumns {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d", core.ErrMalformedInput, i, len(row), core.NumColumns)
		}
		for c := range core.Columns {
			col := core.Column(c)
			if col == core.ColNumArts {
				n, err := core.ParseArticleCount(row[c])
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				b.Field(c).(*array.Int64Builder).Append(n)
				continue
			}
			b.Field(c).(*array.StringBuilder).Append(row[c])
		}
	}
	return b.NewRecord(), nil
}

// Reader decodes rows of Arrow records into structs of type T. Struct fields
// are matched to columns by their `arrow` tag, or by field name.
type Reader[T any] struct {
	records []arrow.Record
	offsets []int64
	total   int64
}

// NewReader creates a reader over records. T must be a struct type.
func NewReader[T any](records ...arrow.Record) (*Reader[T], error) {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct type", core.ErrInvalidArgument, zero)
	}
	r := &Reader[T]{records: records}
	for _, rec := range records {
		r.offsets = append(r.offsets, r.total)
		r.total += rec.NumRows()
	}
	return r, nil
}

// NumRows is the row total across all records.
func (r *Reader[T]) NumRows() int64 {
	return r.total
}

// Value decodes row i.
func (r *Reader[T]) Value(i int) (T, error) {
	var row T
	if i < 0 || int64(i) >= r.total {
		return row, errors.New("index out of range")
	}

	// Locate the target record
	k := len(r.offsets) - 1
	for k > 0 && r.offsets[k] > int64(i) {
		k--
	}
	record := r.records[k]
	idx := int(int64(i) - r.offsets[k])

	rowType := reflect.TypeOf(row)
	rowVal := reflect.ValueOf(&row).Elem()
	for j := 0; j < rowType.NumField(); j++ {
		field := rowType.Field(j)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("arrow")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		indices := record.Schema().FieldIndices(name)
		if len(indices) != 1 {
			return row, fmt.Errorf("%w: field %s not found or ambiguous", core.ErrMalformedInput, name)
		}
		if err := setValue(rowVal.Field(j), record.Column(indices[0]), idx); err != nil {
			return row, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return row, nil
}

// All decodes every row.
func (r *Reader[T]) All() ([]T, error) {
	out := make([]T, 0, r.total)
	for i := 0; int64(i) < r.total; i++ {
		v, err := r.Value(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func setValue(field reflect.Value, col arrow.Array, idx int) error {
	if col.IsNull(idx) {
		return nil
	}

	switch arr := col.(type) {
	case *array.String:
		return setString(field, arr.Value(idx))
	case *array.LargeString:
		return setString(field, arr.Value(idx))
	case *array.Int8:
		return setInt(field, int64(arr.Value(idx)))
	case *array.Int16:
		return setInt(field, int64(arr.Value(idx)))
	case *array.Int32:
		return setInt(field, int64(arr.Value(idx)))
	case *array.Int64:
		return setInt(field, arr.Value(idx))
	case *array.Uint8:
		return setInt(field, int64(arr.Value(idx)))
	case *array.Uint16:
		return setInt(field, int64(arr.Value(idx)))
	case *array.Uint32:
		return setInt(field, int64(arr.Value(idx)))
	default:
		return fmt.Errorf("%w: unsupported column type %s", core.ErrMalformedInput, col.DataType())
	}
}

func setString(field reflect.Value, v string) error {
	if field.Kind() != reflect.String {
		return fmt.Errorf("%w: cannot store string in %s", core.ErrMalformedInput, field.Kind())
	}
	field.SetString(v)
	return nil
}

func setInt(field reflect.Value, v int64) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.OverflowInt(v) {
			return fmt.Errorf("%w: %d overflows %s", core.ErrMalformedInput, v, field.Kind())
		}
		field.SetInt(v)
		return nil
	default:
		return fmt.Errorf("%w: cannot store integer in %s", core.ErrMalformedInput, field.Kind())
	}
}

// Records decodes records into core.Record values.
func Records(records ...arrow.Record) ([]core.Record, error) {
	for _, rec := range records {
		if err := CheckSchema(rec.Schema()); err != nil {
			return nil, err
		}
	}
	r, err := NewReader[core.Record](records...)
	if err != nil {
		return nil, err
	}
	return r.All()
}
