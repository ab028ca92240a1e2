package manager

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/partition"
)

// Analyze describes the source directory and every monthly store as they
// are on disk. Absent directories are reported, not errors.
func (m *Manager) Analyze(ctx context.Context) (metrics.StructureReport, error) {
	report := metrics.StructureReport{AnalyzedAt: time.Now().UTC()}
	dirs := append([]string{m.Config.Paths.SourceDir}, m.Config.Paths.MonthlyDirs...)
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ds, err := analyzeDir(dir)
		if err != nil {
			return report, err
		}
		m.Logger.Debug("Analyzed directory",
			zap.String("dir", dir),
			zap.Bool("exists", ds.Exists),
			zap.Int("files", ds.Files),
			zap.Int64("total_bytes", ds.TotalBytes))
		report.Dirs = append(report.Dirs, ds)
	}
	return report, nil
}

func analyzeDir(dir string) (metrics.DirStructure, error) {
	ds := metrics.DirStructure{Dir: dir}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return ds, nil
	}
	names, err := partition.List(dir)
	if err != nil {
		return ds, err
	}
	ds.Exists = true
	ds.Files = len(names)
	if len(names) == 0 {
		return ds, nil
	}

	ds.FirstFile = names[0]
	ds.LastFile = names[len(names)-1]
	ds.MonthCounts = make(map[string]int)
	for _, name := range names {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			ds.TotalBytes += info.Size()
		}
		if date, err := partition.DateFromFileName(name); err == nil {
			ds.MonthCounts[date[:6]]++
		}
	}

	sample, err := partition.Read(filepath.Join(dir, ds.FirstFile))
	if err != nil {
		ds.SampleError = err.Error()
		return ds, nil
	}
	ds.SampleColumns = sample.Header
	ds.SampleRows = len(sample.Rows)
	return ds, nil
}
