// Package merge folds daily source partitions into monthly stores without
// duplicating rows. A merge is idempotent: repeating it adds nothing.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/internal/workpool"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/fingerprint"
	"github.com/TFMV/gkgsynth/pkg/partition"
)

// Engine merges partitions. Concurrent merges into the same target path are
// serialized through Locker.
type Engine struct {
	Locker  *partition.Locker
	Workers int
	Logger  *zap.Logger
}

// NewEngine creates a sequential engine with its own locker.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Locker:  partition.NewLocker(),
		Workers: 1,
		Logger:  logger,
	}
}

// Merge folds the source partition at src into the target partition at dst.
func (e *Engine) Merge(ctx context.Context, src, dst string) (metrics.FileMerge, error) {
	if err := ctx.Err(); err != nil {
		return metrics.FileMerge{}, err
	}
	source, err := partition.Read(src)
	if err != nil {
		return metrics.FileMerge{Source: src, Target: dst}, err
	}
	fm, err := e.MergeRows(ctx, source.Rows, dst)
	fm.Source = src
	return fm, err
}

// MergeRows folds rows into the target partition at dst. The target is
// loaded if present, rows whose fingerprint is already present (in the
// target or earlier in rows) are skipped, and the result is stably sorted by
// DATE and rewritten in full. Existing target rows are never altered or
// dropped. Nothing is written when no row is accepted.
func (e *Engine) MergeRows(ctx context.Context, rows []core.Row, dst string) (metrics.FileMerge, error) {
	fm := metrics.FileMerge{Target: dst, SourceRows: len(rows)}
	if date, err := partition.DateFromFileName(dst); err == nil {
		fm.Date = date
	}
	if err := ctx.Err(); err != nil {
		return fm, err
	}

	if e.Locker != nil {
		defer e.Locker.Lock(dst)()
	}

	existing, err := loadTarget(dst)
	if err != nil {
		return fm, err
	}
	fm.TargetRowsBefore = len(existing)

	seen := fingerprint.OfRows(existing)
	accepted := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		if len(r) != core.NumColumns {
			return fm, fmt.Errorf("%w: row has %d fields, expected %d", core.ErrMalformedInput, len(r), core.NumColumns)
		}
		if seen.Add(fingerprint.Row(r)) {
			accepted = append(accepted, r)
		} else {
			fm.DuplicatesSkipped++
		}
	}
	fm.RowsAdded = len(accepted)
	fm.TargetRowsAfter = len(existing) + len(accepted)
	if len(accepted) == 0 {
		return fm, nil
	}

	merged := make([]core.Row, 0, fm.TargetRowsAfter)
	merged = append(merged, existing...)
	merged = append(merged, accepted...)
	slices.SortStableFunc(merged, func(a, b core.Row) int {
		return strings.Compare(a.Get(core.ColDate), b.Get(core.ColDate))
	})

	if _, err := partition.WriteFile(dst, merged); err != nil {
		return fm, err
	}
	fm.Written = true
	return fm, nil
}

// loadTarget returns the target rows, or none when the target is absent.
func loadTarget(path string) ([]core.Row, error) {
	t, err := partition.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.Rows, nil
}

// RouteMonth picks the monthly directory for date. A directory matches when
// its base name is the English month name (any case) or the YYYYMM key.
func RouteMonth(date string, monthlyDirs []string) (string, bool) {
	t, err := core.ParseDate(date)
	if err != nil {
		return "", false
	}
	name := t.Month().String()
	key := t.Format("200601")
	for _, dir := range monthlyDirs {
		base := filepath.Base(filepath.Clean(dir))
		if strings.EqualFold(base, name) || base == key {
			return dir, true
		}
	}
	return "", false
}

type fileOutcome struct {
	month   string
	merge   metrics.FileMerge
	skip    *metrics.FileSkip
	failure *metrics.FileFailure
}

// MergeAll merges every partition in sourceDir into the monthly directory
// its date routes to. Files that route nowhere are skipped and reported;
// files that fail are reported and do not stop the run. Only an unreadable
// sourceDir fails the call.
func (e *Engine) MergeAll(ctx context.Context, sourceDir string, monthlyDirs []string) (metrics.MergeResult, error) {
	res := metrics.MergeResult{SourceDir: sourceDir, StartTime: time.Now()}
	if len(monthlyDirs) == 0 {
		return res, fmt.Errorf("%w: no monthly directories given", core.ErrInvalidArgument)
	}
	names, err := partition.List(sourceDir)
	if err != nil {
		return res, err
	}
	e.logger().Info("Starting merge",
		zap.String("source_dir", sourceDir),
		zap.Strings("monthly_dirs", monthlyDirs),
		zap.Int("files", len(names)))

	outcomes := make([]fileOutcome, len(names))
	err = workpool.Run(ctx, e.Workers, len(names), func(ctx context.Context, i int) error {
		outcomes[i] = e.mergeFile(ctx, sourceDir, names[i], monthlyDirs)
		return nil
	})

	// Fold in file order so results do not depend on worker scheduling.
	for _, o := range outcomes {
		switch {
		case o.skip != nil:
			res.Skipped = append(res.Skipped, *o.skip)
		case o.failure != nil:
			res.Failures = append(res.Failures, *o.failure)
		case o.merge.Target != "":
			res.Add(o.month, o.merge)
		}
	}
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	if err != nil {
		return res, err
	}

	rate, ok := res.DuplicateRate()
	fields := []zap.Field{
		zap.Int("files_merged", len(res.Files)),
		zap.Int("files_skipped", len(res.Skipped)),
		zap.Int("files_failed", len(res.Failures)),
		zap.Int("rows_added", res.RowsAdded),
		zap.Int("duplicates_skipped", res.DuplicatesSkipped),
		zap.Duration("duration", res.Duration),
	}
	if ok {
		fields = append(fields, zap.Float64("duplicate_rate", rate))
	}
	e.logger().Info("Merge complete", fields...)
	return res, nil
}

func (e *Engine) mergeFile(ctx context.Context, sourceDir, name string, monthlyDirs []string) fileOutcome {
	date, err := partition.DateFromFileName(name)
	if err != nil {
		e.logger().Warn("Skipping file with invalid date", zap.String("file", name), zap.Error(err))
		return fileOutcome{skip: &metrics.FileSkip{File: name, Reason: err.Error()}}
	}
	month, ok := RouteMonth(date, monthlyDirs)
	if !ok {
		reason := fmt.Sprintf("no monthly directory configured for %s", date[:6])
		e.logger().Warn("Skipping unrouted file", zap.String("file", name), zap.String("reason", reason))
		return fileOutcome{skip: &metrics.FileSkip{File: name, Reason: reason}}
	}

	fm, err := e.Merge(ctx, filepath.Join(sourceDir, name), partition.Path(month, date))
	if err != nil {
		e.logger().Error("Merge failed", zap.String("file", name), zap.String("target", fm.Target), zap.Error(err))
		return fileOutcome{failure: &metrics.FileFailure{File: name, Kind: Kind(err), Error: err.Error()}}
	}
	e.logger().Info("Merged partition",
		zap.String("file", name),
		zap.String("target", fm.Target),
		zap.Int("rows_added", fm.RowsAdded),
		zap.Int("duplicates_skipped", fm.DuplicatesSkipped),
		zap.Int("target_rows", fm.TargetRowsAfter))
	return fileOutcome{month: month, merge: fm}
}

// Kind names the error class of err for reports.
func Kind(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, core.ErrIOFailure):
		return "io_failure"
	case errors.Is(err, core.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
