package dataset

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/partition"
	"github.com/TFMV/gkgsynth/pkg/pools"
)

func mustRange(t *testing.T, start, end string) core.DateRange {
	t.Helper()
	dr, err := core.ParseDateRange(start, end)
	require.NoError(t, err)
	return dr
}

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	p, err := pools.Default()
	require.NoError(t, err)
	return NewWriter(p, 7, zap.NewNop())
}

func TestNewPlan(t *testing.T) {
	dr := mustRange(t, "20250401", "20250610")
	plan, err := NewPlan(dr, 5<<30, DefaultBytesPerRow)
	require.NoError(t, err)
	assert.Equal(t, 71, plan.Days())
	assert.Equal(t, int((5<<30)/2048/71), plan.RowsPerDay)
	assert.LessOrEqual(t, plan.PlannedBytes(), int64(5<<30))
}

func TestNewPlanMinimumOneRow(t *testing.T) {
	dr := mustRange(t, "20250401", "20250430")
	plan, err := NewPlan(dr, 1, DefaultBytesPerRow)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.RowsPerDay)
	assert.Equal(t, int64(30), plan.PlannedRows())
}

func TestNewPlanRejects(t *testing.T) {
	dr := mustRange(t, "20250401", "20250401")
	_, err := NewPlan(dr, 0, DefaultBytesPerRow)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = NewPlan(dr, -5, DefaultBytesPerRow)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = NewPlan(dr, 100, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = NewPlan(core.DateRange{}, 100, DefaultBytesPerRow)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestRowsForDayWithinVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		n := RowsForDay(1000, 0.15, rng)
		assert.GreaterOrEqual(t, n, 850)
		assert.LessOrEqual(t, n, 1150)
	}
	assert.Equal(t, 40, RowsForDay(40, 0, rng))
	assert.Equal(t, 1, RowsForDay(1, 0.15, rng))
	assert.Equal(t, 1, RowsForDay(0, 0, rng))
}

func TestPropertyPlannedBytesApproximateTarget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	start, _ := core.ParseDate("20250101")
	properties.Property("planned volume is within one row per day of the target", prop.ForAll(
		func(days int, target int64, bpr int64) bool {
			dr := core.DateRange{Start: start, End: start.AddDate(0, 0, days-1)}
			plan, err := NewPlan(dr, target, bpr)
			if err != nil {
				return false
			}
			if target/bpr < int64(days) {
				// every day is clamped to one row
				return plan.RowsPerDay == 1
			}
			planned := plan.PlannedBytes()
			return planned <= target && target-planned < int64(days)*bpr+bpr
		},
		gen.IntRange(1, 120),
		gen.Int64Range(1, 1<<30),
		gen.Int64Range(1, 8192),
	))

	properties.TestingRun(t)
}

func TestGenerateSingleRowScenario(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t)

	res, err := w.Generate(context.Background(), dir, mustRange(t, "20250401", "20250401"), DefaultBytesPerRow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Days)
	assert.Equal(t, 1, res.PlannedRowsPerDay)
	assert.Equal(t, int64(1), res.TotalRows)
	assert.Empty(t, res.Failures)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "20250401.gkg.csv", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "20250401.gkg.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(core.Columns, "\t"), lines[0])

	tbl, err := partition.Read(filepath.Join(dir, "20250401.gkg.csv"))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "1", tbl.Rows[0].Get(core.ColNumArts))
	assert.Equal(t, "20250401", tbl.Rows[0].Get(core.ColDate))
}

func TestGenerateProgressIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(t)
	var seen []metrics.DayProgress
	w.OnProgress = func(p metrics.DayProgress) { seen = append(seen, p) }

	res, err := w.Generate(context.Background(), dir, mustRange(t, "20250428", "20250503"), 6*20*DefaultBytesPerRow)
	require.NoError(t, err)
	require.Len(t, res.Progress, 6)
	assert.Equal(t, res.Progress, seen)

	var rows, bytes int64
	for i, p := range res.Progress {
		rows += int64(p.Rows)
		bytes += p.FileBytes
		assert.Equal(t, rows, p.TotalRows)
		assert.Equal(t, bytes, p.TotalBytes)
		assert.GreaterOrEqual(t, p.Rows, 17)
		assert.LessOrEqual(t, p.Rows, 23)
		if i > 0 {
			assert.Greater(t, p.TotalRows, res.Progress[i-1].TotalRows)
		}
	}
	assert.Equal(t, rows, res.TotalRows)

	names, err := partition.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20250428.gkg.csv", "20250429.gkg.csv", "20250430.gkg.csv",
		"20250501.gkg.csv", "20250502.gkg.csv", "20250503.gkg.csv",
	}, names)
}

func TestGenerateIsReproducibleAcrossWorkerCounts(t *testing.T) {
	dr := mustRange(t, "20250401", "20250405")

	seq := newTestWriter(t)
	dirA := t.TempDir()
	_, err := seq.Generate(context.Background(), dirA, dr, 5*10*DefaultBytesPerRow)
	require.NoError(t, err)

	par := newTestWriter(t)
	par.Workers = 4
	par.Locker = partition.NewLocker()
	dirB := t.TempDir()
	_, err = par.Generate(context.Background(), dirB, dr, 5*10*DefaultBytesPerRow)
	require.NoError(t, err)

	for _, date := range dr.Dates() {
		a, err := os.ReadFile(partition.Path(dirA, date))
		require.NoError(t, err)
		b, err := os.ReadFile(partition.Path(dirB, date))
		require.NoError(t, err)
		assert.Equal(t, a, b, date)
	}
}

func TestGenerateFailsFastOnBadArguments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	w := newTestWriter(t)

	_, err := w.Generate(context.Background(), dir, mustRange(t, "20250401", "20250402"), 0)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "no I/O before validation")
}

func TestGenerateAllDaysFail(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := newTestWriter(t)
	res, err := w.Generate(context.Background(), blocker, mustRange(t, "20250401", "20250403"), 3*DefaultBytesPerRow)
	assert.True(t, errors.Is(err, core.ErrIOFailure))
	assert.Len(t, res.Failures, 3)
	assert.Empty(t, res.Progress)
}

func TestGeneratePartialFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on one partition path makes only that day fail.
	require.NoError(t, os.MkdirAll(partition.Path(dir, "20250402"), 0o755))

	w := newTestWriter(t)
	res, err := w.Generate(context.Background(), dir, mustRange(t, "20250401", "20250403"), 3*DefaultBytesPerRow)
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "20250402", res.Failures[0].Date)
	assert.Len(t, res.Progress, 2)
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := newTestWriter(t)
	_, err := w.Generate(ctx, t.TempDir(), mustRange(t, "20250401", "20250403"), DefaultBytesPerRow)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteDayDeterministic(t *testing.T) {
	w := newTestWriter(t)
	a, err := w.WriteDay(t.TempDir(), "20250401", 5)
	require.NoError(t, err)
	b, err := w.WriteDay(t.TempDir(), "20250401", 5)
	require.NoError(t, err)

	ta, err := partition.Read(a.Path)
	require.NoError(t, err)
	tb, err := partition.Read(b.Path)
	require.NoError(t, err)
	assert.Equal(t, ta.Rows, tb.Rows)
}
