package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/validation"
)

// errFindings is returned by --strict runs that recorded findings.
var errFindings = errors.New("validation recorded findings")

func newValidateCmd(root *rootOptions) *cobra.Command {
	var (
		dirs        []string
		monthly     bool
		expected    bool
		sampleLimit int
		shallow     bool
		strict      bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check partitions for integrity findings",
		Long: `Validate re-reads partitions and checks the header, NUMARTS = 1 and the TONE
format. Without --dir the source directory and every monthly store are checked.
Findings are reported; only unreadable directories fail the command unless
--strict is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("sample-limit") {
				root.cfg.Validation.SampleLimit = sampleLimit
			}
			if shallow {
				root.cfg.Validation.Deep = false
			}
			m, err := root.manager()
			if err != nil {
				return err
			}

			var exp *core.DateRange
			if expected {
				dr, err := root.cfg.Run.DateRange()
				if err != nil {
					return err
				}
				exp = &dr
			}
			targets := m.Targets(exp)
			if len(dirs) > 0 {
				targets = targets[:0]
				for _, d := range dirs {
					targets = append(targets, validation.Target{Dir: d, Monthly: monthly, Expected: exp})
				}
			}

			var rep metrics.ValidationReport
			var valErr error
			err = root.withSpinner("Validating partitions", func() error {
				rep, valErr = m.Validate(cmd.Context(), targets)
				return nil
			})
			if err != nil {
				return err
			}
			if err := root.emit(cmd, rep, func(w io.Writer) { renderValidation(w, rep) }); err != nil {
				return err
			}
			if valErr != nil {
				return valErr
			}
			if strict && !rep.Passed() {
				return fmt.Errorf("%w: %d", errFindings, len(rep.Findings))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&dirs, "dir", nil, "Directories to validate instead of the configured ones")
	f.BoolVar(&monthly, "monthly", false, "Treat --dir directories as monthly stores")
	f.BoolVar(&expected, "expected", false, "Report partitions missing from the configured date range")
	f.IntVar(&sampleLimit, "sample-limit", 0, "Files checked per source directory (0 checks all)")
	f.BoolVar(&shallow, "shallow", false, "Apply the sample limit to monthly stores too")
	f.BoolVar(&strict, "strict", false, "Exit non-zero when any finding is recorded")
	return cmd
}

func renderValidation(w io.Writer, rep metrics.ValidationReport) {
	pass := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAIL"
	}
	t := newTable("DIR", "FILES", "CHECKED", "ROWS", "HEADER", "NUMARTS", "TONE", "DATES")
	for _, d := range rep.Dirs {
		dates := ""
		if d.MinDate != "" {
			dates = d.MinDate + "-" + d.MaxDate
		}
		numarts := pass(d.ArticleCountValid)
		if !d.ArticleCountValid {
			numarts = fmt.Sprintf("%d issues", d.ArticleCountIssues)
		}
		t.add(d.Dir, d.Files, d.FilesChecked, d.TotalRows, pass(d.HeaderConsistent), numarts, pass(d.ToneValid), dates)
	}
	t.render(w)
	fmt.Fprintln(w)

	if rep.Passed() {
		fmt.Fprintln(w, "No findings.")
		return
	}
	fmt.Fprintf(w, "%d findings:\n", len(rep.Findings))
	for _, f := range rep.Findings {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
