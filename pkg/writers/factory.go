// Package writers provides dataset writers for the export formats.
package writers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// Factory creates a writer based on the given configuration.
type Factory struct {
	// registered writers by type
	writers map[string]Creator
}

// Creator is a function that creates a writer from a configuration.
type Creator func(config core.WriterConfig) (core.DatasetWriter, error)

// NewFactory creates a new writer factory.
func NewFactory() *Factory {
	return &Factory{
		writers: make(map[string]Creator),
	}
}

// Register registers a creator for a writer type.
func (f *Factory) Register(typ string, creator Creator) {
	f.writers[typ] = creator
}

// Create creates a writer based on the given configuration.
func (f *Factory) Create(config core.WriterConfig) (core.DatasetWriter, error) {
	creator, ok := f.writers[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported writer type %q", core.ErrInvalidArgument, config.Type)
	}
	return creator(config)
}

// Types lists the registered writer types.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.writers))
	for t := range f.writers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory is the default writer factory with built-in writer types.
var DefaultFactory = NewFactory()

// init registers built-in writer types.
func init() {
	DefaultFactory.Register("parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", NewArrowWriter)
	DefaultFactory.Register("json", NewJSONWriter)
}

// createFile opens config.Path for writing, creating parent directories.
func createFile(config core.WriterConfig, kind string) (*os.File, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: path is required for %s writer", core.ErrInvalidArgument, kind)
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory for %s: %w", core.ErrIOFailure, config.Path, err)
	}
	f, err := os.Create(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s file: %w", core.ErrIOFailure, kind, err)
	}
	return f, nil
}
