// Package dataset plans and writes a synthetic dataset: one partition per
// day, sized so the whole range approximates a target byte volume.
package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/TFMV/gkgsynth/pkg/core"
)

const (
	// DefaultBytesPerRow is the expected serialized size of one record.
	DefaultBytesPerRow = 2048

	// DefaultVariance is the +/- fraction applied to each day's row count.
	DefaultVariance = 0.15
)

// Plan is the per-day row budget for a date range.
type Plan struct {
	Dates       []string
	TargetBytes int64
	BytesPerRow int64
	RowsPerDay  int
}

// NewPlan divides targetBytes evenly across the days of dr. Every day gets
// at least one row.
func NewPlan(dr core.DateRange, targetBytes, bytesPerRow int64) (Plan, error) {
	if err := dr.Validate(); err != nil {
		return Plan{}, err
	}
	if targetBytes <= 0 {
		return Plan{}, fmt.Errorf("%w: target size must be positive, got %d", core.ErrInvalidArgument, targetBytes)
	}
	if bytesPerRow <= 0 {
		return Plan{}, fmt.Errorf("%w: bytes per row must be positive, got %d", core.ErrInvalidArgument, bytesPerRow)
	}

	dates := dr.Dates()
	rows := targetBytes / bytesPerRow / int64(len(dates))
	if rows < 1 {
		rows = 1
	}
	if rows > math.MaxInt32 {
		return Plan{}, fmt.Errorf("%w: %d rows per day exceeds the supported maximum", core.ErrInvalidArgument, rows)
	}
	return Plan{
		Dates:       dates,
		TargetBytes: targetBytes,
		BytesPerRow: bytesPerRow,
		RowsPerDay:  int(rows),
	}, nil
}

// Days is the number of planned partitions.
func (p Plan) Days() int { return len(p.Dates) }

// PlannedRows is the row total before variance.
func (p Plan) PlannedRows() int64 {
	return int64(p.RowsPerDay) * int64(len(p.Dates))
}

// PlannedBytes is the estimated volume before variance.
func (p Plan) PlannedBytes() int64 {
	return p.PlannedRows() * p.BytesPerRow
}

// RowsForDay applies a uniform +/- variance to the planned count. The result
// is never below one.
func RowsForDay(planned int, variance float64, rng *rand.Rand) int {
	if variance <= 0 {
		return max(planned, 1)
	}
	factor := 1 + (rng.Float64()*2-1)*variance
	return max(int(math.Round(float64(planned)*factor)), 1)
}
