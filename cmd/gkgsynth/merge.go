package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TFMV/gkgsynth/metrics"
)

func newMergeCmd(root *rootOptions) *cobra.Command {
	var (
		source  string
		monthly []string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge daily partitions into monthly stores",
		Long: `Merge folds every partition of the source directory into the monthly
directory its date belongs to, skipping rows already present. Running it again
adds nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("source") {
				root.cfg.Paths.SourceDir = source
			}
			if cmd.Flags().Changed("monthly") {
				root.cfg.Paths.MonthlyDirs = monthly
			}
			if cmd.Flags().Changed("workers") {
				root.cfg.Run.Workers = workers
			}
			m, err := root.manager()
			if err != nil {
				return err
			}

			var res metrics.MergeResult
			err = root.withSpinner("Merging partitions", func() error {
				var err error
				res, err = m.MergeAll(cmd.Context(), root.cfg.Paths.SourceDir, root.cfg.Paths.MonthlyDirs)
				return err
			})
			if err != nil {
				return err
			}
			return root.emit(cmd, res, func(w io.Writer) { renderMerge(w, res) })
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source directory")
	cmd.Flags().StringSliceVar(&monthly, "monthly", nil, "Monthly directories")
	cmd.Flags().IntVar(&workers, "workers", 0, "Files merged in parallel")
	return cmd
}

func renderMerge(w io.Writer, res metrics.MergeResult) {
	t := newTable("MONTH", "FILES", "ROWS ADDED", "DUPLICATES")
	for _, ms := range res.Months {
		t.add(ms.Dir, ms.Files, ms.RowsAdded, ms.DuplicatesSkipped)
	}
	t.render(w)
	fmt.Fprintln(w)

	rate := "n/a"
	if r, ok := res.DuplicateRate(); ok {
		rate = fmt.Sprintf("%.2f%%", r*100)
	}
	kv(w,
		"Files merged", len(res.Files),
		"Rows added", res.RowsAdded,
		"Duplicates skipped", res.DuplicatesSkipped,
		"Duplicate rate", rate,
		"Skipped files", len(res.Skipped),
		"Failed files", len(res.Failures),
		"Duration", res.Duration)
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", s.File, s.Reason)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  failed %s (%s): %s\n", f.File, f.Kind, f.Error)
	}
}
