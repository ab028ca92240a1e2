package partition

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// Separators are the candidate field separators, in probing order. Tab is
// the primary format; comma is accepted for compatibility.
var Separators = []rune{'\t', ','}

// Table is a parsed partition file.
type Table struct {
	// Path is the file the table was read from.
	Path string

	// Separator is the field separator detected by Probe.
	Separator rune

	// Header is the header row exactly as found in the file.
	Header []string

	// Rows are the data rows, normalized to core.Columns order.
	Rows []core.Row
}

// HeaderMatches reports whether the file header equals core.Columns exactly.
func (t *Table) HeaderMatches() bool {
	return slices.Equal(t.Header, core.Columns)
}

// Handle describes a persisted partition.
type Handle struct {
	Date      string `json:"date"`
	Path      string `json:"path"`
	Rows      int    `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Probe reads the header line of path and returns the first separator under
// which the header contains every expected column.
func Probe(path string) (rune, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, path, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("%w: read %s: %w", core.ErrIOFailure, path, err)
	}
	return probeHeader(path, line)
}

func probeHeader(path string, line []byte) (rune, []string, error) {
	line = bytes.TrimPrefix(line, utf8BOM)
	if len(bytes.TrimSpace(line)) == 0 {
		return 0, nil, fmt.Errorf("%w: %s has no header", core.ErrMalformedInput, path)
	}
	for _, sep := range Separators {
		r := newCSVReader(bytes.NewReader(line), sep)
		header, err := r.Read()
		if err != nil {
			continue
		}
		if _, ok := columnIndex(header); ok {
			return sep, header, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %s header matches no supported separator", core.ErrMalformedInput, path)
}

// columnIndex maps each canonical column to its position in header. Header
// cells are matched with surrounding whitespace ignored.
func columnIndex(header []string) ([]int, bool) {
	idx := make([]int, core.NumColumns)
	for c, name := range core.Columns {
		i := slices.IndexFunc(header, func(h string) bool { return strings.TrimSpace(h) == name })
		if i < 0 {
			return nil, false
		}
		idx[c] = i
	}
	return idx, true
}

func newCSVReader(r io.Reader, sep rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// Read parses a partition file under its probed separator.
func Read(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrIOFailure, path, err)
	}

	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i+1]
	}
	sep, header, err := probeHeader(path, first)
	if err != nil {
		return nil, err
	}
	idx, _ := columnIndex(header)

	cr := newCSVReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)), sep)
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrMalformedInput, path, err)
	}

	t := &Table{Path: path, Separator: sep, Header: header}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrMalformedInput, path, err)
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: %s record %d has %d fields, header has %d",
				core.ErrMalformedInput, path, line, len(rec), len(header))
		}
		row := make(core.Row, core.NumColumns)
		for c, i := range idx {
			row[c] = rec[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write persists rows as the partition for date inside dir.
func Write(dir, date string, rows []core.Row) (Handle, error) {
	if _, err := core.ParseDate(date); err != nil {
		return Handle{}, err
	}
	h, err := WriteFile(Path(dir, date), rows)
	h.Date = date
	return h, err
}

// WriteFile writes the fixed header and rows to path. The file is written to
// a temporary sibling and renamed into place, so readers see either the old
// content or the complete new content.
func WriteFile(path string, rows []core.Row) (Handle, error) {
	for i, r := range rows {
		if len(r) != core.NumColumns {
			return Handle{}, fmt.Errorf("%w: row %d has %d fields, expected %d",
				core.ErrInvalidArgument, i, len(r), core.NumColumns)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("%w: create directory %s: %w", core.ErrIOFailure, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Handle{}, fmt.Errorf("%w: create temp file in %s: %w", core.ErrIOFailure, dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	w := csv.NewWriter(bw)
	w.Comma = '\t'
	if err := w.Write(core.Columns); err != nil {
		return Handle{}, fmt.Errorf("%w: write header %s: %w", core.ErrIOFailure, path, err)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return Handle{}, fmt.Errorf("%w: write %s: %w", core.ErrIOFailure, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Handle{}, fmt.Errorf("%w: write %s: %w", core.ErrIOFailure, path, err)
	}
	if err := bw.Flush(); err != nil {
		return Handle{}, fmt.Errorf("%w: flush %s: %w", core.ErrIOFailure, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return Handle{}, fmt.Errorf("%w: sync %s: %w", core.ErrIOFailure, path, err)
	}
	if err := tmp.Close(); err != nil {
		return Handle{}, fmt.Errorf("%w: close %s: %w", core.ErrIOFailure, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Handle{}, fmt.Errorf("%w: rename into %s: %w", core.ErrIOFailure, path, err)
	}
	committed = true

	info, err := os.Stat(path)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: stat %s: %w", core.ErrIOFailure, path, err)
	}
	return Handle{Path: path, Rows: len(rows), SizeBytes: info.Size()}, nil
}

// List returns the partition file names in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory %s: %w", core.ErrIOFailure, dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsPartitionFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
