package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/internal/workpool"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/generator"
	"github.com/TFMV/gkgsynth/pkg/partition"
	"github.com/TFMV/gkgsynth/pkg/pools"
)

// Writer generates daily partitions into a directory.
type Writer struct {
	Pools       *pools.Pools
	Seed        int64
	BytesPerRow int64
	Variance    float64
	Generator   generator.Options
	Workers     int

	// Locker guards partition paths shared with concurrent merges. Optional.
	Locker *partition.Locker

	// OnProgress receives one entry per written day, in completion order.
	OnProgress func(metrics.DayProgress)

	Logger *zap.Logger
}

// NewWriter returns a Writer with default sizing and generation policy.
func NewWriter(p *pools.Pools, seed int64, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		Pools:       p,
		Seed:        seed,
		BytesPerRow: DefaultBytesPerRow,
		Variance:    DefaultVariance,
		Generator:   generator.Options{},
		Workers:     1,
		Logger:      logger,
	}
}

// Generate plans dr against targetBytes and writes one partition per day
// into dir. A failed day is recorded and the remaining days continue; the
// call fails with ErrIOFailure only when every day failed.
func (w *Writer) Generate(ctx context.Context, dir string, dr core.DateRange, targetBytes int64) (metrics.GenerationResult, error) {
	plan, err := NewPlan(dr, targetBytes, w.BytesPerRow)
	if err != nil {
		return metrics.GenerationResult{}, err
	}
	if w.Pools == nil {
		return metrics.GenerationResult{}, fmt.Errorf("%w: no value pools configured", core.ErrInvalidArgument)
	}

	res := metrics.GenerationResult{
		DateRange:         dr.String(),
		Days:              plan.Days(),
		TargetBytes:       targetBytes,
		BytesPerRow:       plan.BytesPerRow,
		PlannedRowsPerDay: plan.RowsPerDay,
		Seed:              w.Seed,
		StartTime:         time.Now(),
	}
	w.logger().Info("Starting generation",
		zap.String("dir", dir),
		zap.String("range", res.DateRange),
		zap.Int("days", res.Days),
		zap.Int("rows_per_day", plan.RowsPerDay),
		zap.Int64("target_bytes", targetBytes))

	var mu sync.Mutex
	err = workpool.Run(ctx, w.Workers, len(plan.Dates), func(ctx context.Context, i int) error {
		date := plan.Dates[i]
		h, err := w.WriteDay(dir, date, w.rowsFor(plan, date))

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			w.logger().Error("Partition write failed", zap.String("date", date), zap.Error(err))
			res.Failures = append(res.Failures, metrics.DayFailure{Date: date, Error: err.Error()})
			return nil
		}
		res.TotalRows += int64(h.Rows)
		res.TotalBytes += h.SizeBytes
		p := metrics.DayProgress{
			Date:       date,
			Path:       h.Path,
			Rows:       h.Rows,
			FileBytes:  h.SizeBytes,
			TotalRows:  res.TotalRows,
			TotalBytes: res.TotalBytes,
		}
		res.Progress = append(res.Progress, p)
		w.logger().Info("Partition written",
			zap.String("date", date),
			zap.Int("rows", p.Rows),
			zap.Int64("file_bytes", p.FileBytes),
			zap.Int64("total_rows", p.TotalRows),
			zap.Int64("total_bytes", p.TotalBytes))
		if w.OnProgress != nil {
			w.OnProgress(p)
		}
		return nil
	})

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	if err != nil {
		return res, err
	}
	if len(res.Progress) == 0 {
		return res, fmt.Errorf("%w: all %d days failed to write", core.ErrIOFailure, res.Days)
	}
	w.logger().Info("Generation complete",
		zap.Int64("total_rows", res.TotalRows),
		zap.Int64("total_bytes", res.TotalBytes),
		zap.Int("failed_days", len(res.Failures)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// WriteDay generates n records for date and writes them as one partition.
// The records depend only on the writer's seed and date.
func (w *Writer) WriteDay(dir, date string, n int) (partition.Handle, error) {
	if n < 0 {
		return partition.Handle{}, fmt.Errorf("%w: negative row count %d", core.ErrInvalidArgument, n)
	}
	gen := generator.New(w.Pools, generator.DaySeed(w.Seed, date), w.Generator)
	rows := make([]core.Row, 0, n)
	for i := 0; i < n; i++ {
		r, err := gen.Generate(date)
		if err != nil {
			return partition.Handle{}, err
		}
		rows = append(rows, r.Row())
	}

	if w.Locker != nil {
		defer w.Locker.Lock(partition.Path(dir, date))()
	}
	return partition.Write(dir, date, rows)
}

// rowsFor draws the day's row count from a stream independent of the record
// stream, so the count does not shift the records.
func (w *Writer) rowsFor(plan Plan, date string) int {
	rng := rand.New(rand.NewSource(generator.DaySeed(^w.Seed, date)))
	return RowsForDay(plan.RowsPerDay, w.Variance, rng)
}

func (w *Writer) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

