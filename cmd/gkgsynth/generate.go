package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/report"
	"github.com/TFMV/gkgsynth/version"
)

type generateOptions struct {
	start       string
	end         string
	targetBytes int64
	seed        int64
	workers     int
	dir         string
	noArtifacts bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic daily partitions",
		Long: `Generate writes one YYYYMMDD.gkg.csv partition per day of the date range into
the source directory, sized so the whole range approximates the target size.
A progress log and a metadata file are written next to the partitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.applyRunFlags(cmd, opts)
			m, err := root.manager()
			if err != nil {
				return err
			}
			dr, err := core.ParseDateRange(opts.start, opts.end)
			if err != nil {
				return err
			}

			var res metrics.GenerationResult
			err = root.withSpinner("Generating partitions", func() error {
				var err error
				res, err = m.Generate(cmd.Context(), dr, opts.targetBytes)
				return err
			})
			if err != nil {
				return err
			}
			if !opts.noArtifacts {
				if err := writeArtifacts(root, m.Summary().RunID, root.cfg.Paths.SourceDir, res); err != nil {
					return err
				}
			}
			return root.emit(cmd, res, func(w io.Writer) { renderGeneration(w, res) })
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "First date (YYYYMMDD)")
	f.StringVar(&opts.end, "end", "", "Last date (YYYYMMDD)")
	f.Int64Var(&opts.targetBytes, "target-bytes", 0, "Approximate total size of the range in bytes")
	f.Int64Var(&opts.seed, "seed", 0, "Random seed")
	f.IntVar(&opts.workers, "workers", 0, "Days generated in parallel")
	f.StringVar(&opts.dir, "dir", "", "Source directory")
	f.BoolVar(&opts.noArtifacts, "no-artifacts", false, "Skip the progress log and metadata file")
	return cmd
}

// applyRunFlags overlays changed flags on the config and fills unset options
// from it.
func (o *rootOptions) applyRunFlags(cmd *cobra.Command, opts *generateOptions) {
	f := cmd.Flags()
	run := &o.cfg.Run
	if f.Changed("start") {
		run.StartDate = opts.start
	}
	if f.Changed("end") {
		run.EndDate = opts.end
	}
	if f.Changed("target-bytes") {
		run.TargetBytes = opts.targetBytes
	}
	if f.Changed("seed") {
		run.Seed = opts.seed
	}
	if f.Changed("workers") {
		run.Workers = opts.workers
	}
	if f.Changed("dir") {
		o.cfg.Paths.SourceDir = opts.dir
	}
	opts.start, opts.end, opts.targetBytes = run.StartDate, run.EndDate, run.TargetBytes
}

func writeArtifacts(root *rootOptions, runID, dir string, res metrics.GenerationResult) error {
	if len(res.Progress) == 0 {
		return nil
	}
	progress, err := report.SaveProgressCSV(dir, res.Progress)
	if err != nil {
		return err
	}
	meta, err := report.SaveMetadata(report.Metadata{
		RunID:       runID,
		Version:     version.GetVersion(),
		GeneratedAt: res.EndTime,
		DateRange:   res.DateRange,
		Dir:         dir,
		Seed:        res.Seed,
		TargetBytes: res.TargetBytes,
		Result:      res,
	})
	if err != nil {
		return err
	}
	root.log.Info("Wrote generation artifacts", zap.String("progress", progress), zap.String("metadata", meta))
	return nil
}

func renderGeneration(w io.Writer, res metrics.GenerationResult) {
	t := newTable("DATE", "ROWS", "SIZE", "TOTAL ROWS", "TOTAL SIZE")
	for _, p := range res.Progress {
		t.add(p.Date, p.Rows, megabytes(p.FileBytes), p.TotalRows, megabytes(p.TotalBytes))
	}
	t.render(w)
	fmt.Fprintln(w)
	kv(w,
		"Date range", res.DateRange,
		"Days", res.Days,
		"Planned rows/day", res.PlannedRowsPerDay,
		"Rows", res.TotalRows,
		"Size", megabytes(res.TotalBytes),
		"Failed days", len(res.Failures),
		"Duration", res.Duration)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Date, f.Error)
	}
}
