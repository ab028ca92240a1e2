// Package partition reads and writes daily GKG partition files.
//
// A partition holds every record for one calendar date, stored as
// tab-separated values under the fixed header, in a file named
// <YYYYMMDD>.gkg.csv.
package partition

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// Suffix is the fixed partition file suffix.
const Suffix = ".gkg.csv"

// FileName returns the partition file name for date.
func FileName(date string) string {
	return date + Suffix
}

// Path joins dir and the partition file name for date.
func Path(dir, date string) string {
	return filepath.Join(dir, FileName(date))
}

// IsPartitionFile reports whether name looks like a partition file.
func IsPartitionFile(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// DateFromFileName extracts and validates the date key of a partition file.
func DateFromFileName(name string) (string, error) {
	base := filepath.Base(name)
	if !IsPartitionFile(base) {
		return "", fmt.Errorf("%w: %q is not a partition file", core.ErrInvalidArgument, base)
	}
	date := strings.TrimSuffix(base, Suffix)
	if _, err := core.ParseDate(date); err != nil {
		return "", err
	}
	return date, nil
}
