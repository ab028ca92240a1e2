// Package manager wires configuration, value pools, logging and partition
// locks into the collaborator-facing operations: generate, merge, validate,
// analyze, export, ingest and the combined run.
package manager

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/config"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/dataset"
	"github.com/TFMV/gkgsynth/pkg/merge"
	"github.com/TFMV/gkgsynth/pkg/partition"
	"github.com/TFMV/gkgsynth/pkg/pools"
	"github.com/TFMV/gkgsynth/validation"
	"github.com/TFMV/gkgsynth/version"
)

// Manager owns the components of one dataset: a source directory of daily
// partitions and the monthly stores they are merged into. Every operation
// returns its own result value.
type Manager struct {
	Config    *config.Config
	Pools     *pools.Pools
	Logger    *zap.Logger
	Locker    *partition.Locker
	Writer    *dataset.Writer
	Engine    *merge.Engine
	Validator *validation.Validator
}

// New validates cfg, loads the value pools and builds the components. The
// writer and the merge engine share one Locker.
func New(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", core.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := pools.Load(cfg.Paths.PoolsFile)
	if err != nil {
		return nil, err
	}

	locker := partition.NewLocker()

	w := dataset.NewWriter(p, cfg.Run.Seed, logger.Named("generate"))
	w.BytesPerRow = cfg.Run.BytesPerRow
	w.Variance = cfg.Run.Variance
	counts := cfg.Run.CountsProbability
	w.Generator.CountsProbability = &counts
	w.Workers = cfg.Run.Workers
	w.Locker = locker

	e := merge.NewEngine(logger.Named("merge"))
	e.Workers = cfg.Run.Workers
	e.Locker = locker

	v := validation.NewValidator(logger.Named("validate"))
	v.SampleLimit = cfg.Validation.SampleLimit
	v.Deep = cfg.Validation.Deep
	v.Workers = cfg.Run.Workers

	return &Manager{
		Config:    cfg,
		Pools:     p,
		Logger:    logger,
		Locker:    locker,
		Writer:    w,
		Engine:    e,
		Validator: v,
	}, nil
}

// Generate writes synthetic daily partitions for dr into the source directory.
func (m *Manager) Generate(ctx context.Context, dr core.DateRange, targetBytes int64) (metrics.GenerationResult, error) {
	return m.Writer.Generate(ctx, m.Config.Paths.SourceDir, dr, targetBytes)
}

// MergeAll merges every partition of sourceDir into monthlyDirs.
func (m *Manager) MergeAll(ctx context.Context, sourceDir string, monthlyDirs []string) (metrics.MergeResult, error) {
	return m.Engine.MergeAll(ctx, sourceDir, monthlyDirs)
}

// Validate checks targets and returns the combined report.
func (m *Manager) Validate(ctx context.Context, targets []validation.Target) (metrics.ValidationReport, error) {
	return m.Validator.Validate(ctx, targets)
}

// Targets lists the configured directories for validation. When expected is
// set, the source directory must hold every date of it and each monthly
// store the dates that route to it. Monthly stores are optional: one that no
// expected date routes to may not exist yet.
func (m *Manager) Targets(expected *core.DateRange) []validation.Target {
	targets := []validation.Target{{Dir: m.Config.Paths.SourceDir, Expected: expected}}
	for _, dir := range m.Config.Paths.MonthlyDirs {
		t := validation.Target{Dir: dir, Monthly: true, Optional: true}
		if expected != nil {
			t.Expected = monthSlice(*expected, dir)
		}
		targets = append(targets, t)
	}
	return targets
}

// monthSlice is the part of dr that routes to dir, or nil if none does.
func monthSlice(dr core.DateRange, dir string) *core.DateRange {
	var first, last string
	for _, d := range dr.Dates() {
		if _, ok := merge.RouteMonth(d, []string{dir}); !ok {
			continue
		}
		if first == "" {
			first = d
		}
		last = d
	}
	if first == "" {
		return nil
	}
	slice, err := core.ParseDateRange(first, last)
	if err != nil {
		return nil
	}
	return &slice
}

// Summary returns a run summary stamped with the dataset layout.
func (m *Manager) Summary() metrics.Summary {
	s := metrics.NewSummary()
	s.Version = version.GetVersion()
	s.SourceDir = m.Config.Paths.SourceDir
	s.MonthlyDirs = m.Config.Paths.MonthlyDirs
	s.Columns = core.Columns
	if dr, err := m.Config.Run.DateRange(); err == nil {
		s.DateRange = dr.String()
	}
	return s
}

// RunOptions select the stages of Run.
type RunOptions struct {
	Range         core.DateRange
	TargetBytes   int64
	SkipGenerate  bool
	SkipMerge     bool
	SkipValidate  bool
	CheckExpected bool
}

// RunOptionsFromConfig returns options running every stage over the
// configured range and size.
func (m *Manager) RunOptionsFromConfig() (RunOptions, error) {
	dr, err := m.Config.Run.DateRange()
	if err != nil {
		return RunOptions{}, err
	}
	return RunOptions{Range: dr, TargetBytes: m.Config.Run.TargetBytes, CheckExpected: true}, nil
}

// Run generates, merges and validates in turn and returns the summary of
// every stage that ran. A failing generation or merge stops the run; the
// partial summary is still returned. Validation errors are returned with the
// complete summary.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (metrics.Summary, error) {
	s := m.Summary()
	if opts.Range.Validate() == nil {
		s.DateRange = opts.Range.String()
	}
	m.Logger.Info("Starting run", zap.String("run_id", s.RunID), zap.String("range", s.DateRange))

	if !opts.SkipGenerate {
		gen, err := m.Generate(ctx, opts.Range, opts.TargetBytes)
		if err != nil {
			if gen.Days > 0 {
				s.Generation = &gen
			}
			return s, fmt.Errorf("generate: %w", err)
		}
		s.Generation = &gen
	}

	if !opts.SkipMerge {
		res, err := m.MergeAll(ctx, m.Config.Paths.SourceDir, m.Config.Paths.MonthlyDirs)
		s.Merge = &res
		if err != nil {
			return s, fmt.Errorf("merge: %w", err)
		}
	}

	var runErr error
	if !opts.SkipValidate {
		var expected *core.DateRange
		if opts.CheckExpected && opts.Range.Validate() == nil {
			expected = &opts.Range
		}
		rep, err := m.Validate(ctx, m.Targets(expected))
		s.Validation = &rep
		if err != nil {
			runErr = fmt.Errorf("validate: %w", err)
		}
	}

	fields := []zap.Field{zap.String("run_id", s.RunID)}
	if s.Validation != nil {
		fields = append(fields, zap.Bool("passed", s.Validation.Passed()))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fields = append(fields, zap.Error(runErr))
	}
	m.Logger.Info("Run complete", fields...)
	return s, runErr
}
