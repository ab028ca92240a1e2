package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/api"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
	"github.com/TFMV/gkgsynth/pkg/fingerprint"
	"github.com/TFMV/gkgsynth/pkg/manager"
	"github.com/TFMV/gkgsynth/pkg/writers"
	"github.com/TFMV/gkgsynth/report"
	"github.com/TFMV/gkgsynth/version"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Describe the source directory and monthly stores on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.manager()
			if err != nil {
				return err
			}
			rep, err := m.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			return root.emit(cmd, rep, func(w io.Writer) { renderStructure(w, rep) })
		},
	}
}

func renderStructure(w io.Writer, rep metrics.StructureReport) {
	t := newTable("DIR", "FILES", "SIZE", "FIRST", "LAST", "MONTHS")
	for _, d := range rep.Dirs {
		if !d.Exists {
			t.add(d.Dir, "missing", "", "", "", "")
			continue
		}
		months := make([]string, 0, len(d.MonthCounts))
		for k, n := range d.MonthCounts {
			months = append(months, fmt.Sprintf("%s:%d", k, n))
		}
		sort.Strings(months)
		t.add(d.Dir, d.Files, megabytes(d.TotalBytes), d.FirstFile, d.LastFile, strings.Join(months, " "))
	}
	t.render(w)
	for _, d := range rep.Dirs {
		if d.SampleError != "" {
			fmt.Fprintf(w, "  %s: sample unreadable: %s\n", d.Dir, d.SampleError)
		}
	}
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		opts      generateOptions
		reportDir string
		noReport  bool
		skipGen   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, merge and validate in one pass",
		Long: `Run generates the configured date range, merges it into the monthly stores
and validates every directory, checking for missing partitions. JSON and HTML
reports of the run are written to the report directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.applyRunFlags(cmd, &opts)
			if cmd.Flags().Changed("report-dir") {
				root.cfg.Paths.ReportDir = reportDir
			}
			m, err := root.manager()
			if err != nil {
				return err
			}
			runOpts, err := m.RunOptionsFromConfig()
			if err != nil {
				return err
			}
			runOpts.SkipGenerate = skipGen

			var s metrics.Summary
			var runErr error
			_ = root.withSpinner("Running generate, merge and validate", func() error {
				s, runErr = m.Run(cmd.Context(), runOpts)
				return nil
			})
			if runErr != nil && s.Generation == nil && s.Merge == nil {
				return runErr
			}
			if s.Generation != nil && !opts.noArtifacts {
				if err := writeArtifacts(root, s.RunID, root.cfg.Paths.SourceDir, *s.Generation); err != nil {
					return err
				}
			}
			if !noReport {
				if err := os.MkdirAll(root.cfg.Paths.ReportDir, 0o755); err != nil {
					return fmt.Errorf("%w: create report directory: %w", core.ErrIOFailure, err)
				}
				jsonPath := filepath.Join(root.cfg.Paths.ReportDir, report.FileName(s.Timestamp, "json"))
				htmlPath := filepath.Join(root.cfg.Paths.ReportDir, report.FileName(s.Timestamp, "html"))
				if err := report.SaveReports(s, jsonPath, htmlPath); err != nil {
					return err
				}
				root.log.Info("Saved reports", zap.String("json", jsonPath), zap.String("html", htmlPath))
			}

			if root.json {
				store := &metrics.JSONMetricsStore{Out: cmd.OutOrStdout()}
				if err := store.SaveWithContext(cmd.Context(), s); err != nil {
					return err
				}
			} else {
				renderSummary(cmd.OutOrStdout(), s)
			}
			return runErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "First date (YYYYMMDD)")
	f.StringVar(&opts.end, "end", "", "Last date (YYYYMMDD)")
	f.Int64Var(&opts.targetBytes, "target-bytes", 0, "Approximate total size of the range in bytes")
	f.Int64Var(&opts.seed, "seed", 0, "Random seed")
	f.IntVar(&opts.workers, "workers", 0, "Partitions processed in parallel")
	f.StringVar(&opts.dir, "dir", "", "Source directory")
	f.BoolVar(&opts.noArtifacts, "no-artifacts", false, "Skip the progress log and metadata file")
	f.StringVar(&reportDir, "report-dir", "", "Directory for the JSON and HTML reports")
	f.BoolVar(&noReport, "no-report", false, "Do not write reports")
	f.BoolVar(&skipGen, "skip-generate", false, "Merge and validate existing partitions only")
	return cmd
}

func renderSummary(w io.Writer, s metrics.Summary) {
	kv(w,
		"Run", s.RunID,
		"Date range", s.DateRange,
		"Source", s.SourceDir,
		"Monthly", strings.Join(s.MonthlyDirs, ", "))
	if s.Generation != nil {
		fmt.Fprintln(w, "\nGeneration")
		renderGeneration(w, *s.Generation)
	}
	if s.Merge != nil {
		fmt.Fprintln(w, "\nMerge")
		renderMerge(w, *s.Merge)
	}
	if s.Validation != nil {
		fmt.Fprintln(w, "\nValidation")
		renderValidation(w, *s.Validation)
	}
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export DIR",
		Short: "Export a partition directory to Parquet, Arrow or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.manager()
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Base(filepath.Clean(args[0])) + "." + format
			}
			res, err := m.Export(cmd.Context(), args[0], format, out)
			if err != nil {
				return err
			}
			return root.emit(cmd, res, func(w io.Writer) {
				kv(w, "Exported", res.Dir, "Format", res.Format, "Output", res.Path, "Files", res.Files, "Rows", res.Rows)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "parquet",
		fmt.Sprintf("Output format (%s)", strings.Join(writers.DefaultFactory.Types(), ", ")))
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default DIR.FORMAT)")
	return cmd
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Merge an external Parquet, Arrow or partition file into daily partitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.manager()
			if err != nil {
				return err
			}
			if target == "" {
				target = root.cfg.Paths.SourceDir
			}
			res, err := m.Ingest(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			return root.emit(cmd, res, func(w io.Writer) { renderIngest(w, res) })
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Partition directory to merge into (default source directory)")
	return cmd
}

func renderIngest(w io.Writer, res manager.IngestResult) {
	t := newTable("DATE", "ROWS", "ADDED", "DUPLICATES")
	for _, f := range res.Files {
		t.add(f.Date, f.SourceRows, f.RowsAdded, f.DuplicatesSkipped)
	}
	t.render(w)
	fmt.Fprintln(w)
	kv(w, "Ingested", res.Path, "Format", res.Format, "Rows", res.Rows,
		"Rows added", res.RowsAdded, "Duplicates skipped", res.DuplicatesSkipped)
}

func newReportCmd(root *rootOptions) *cobra.Command {
	var htmlPath string
	cmd := &cobra.Command{
		Use:   "report SUMMARY.json",
		Short: "Render a saved JSON run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := report.ReportFromFilePath(args[0])
			if err != nil {
				return err
			}
			if htmlPath != "" {
				gen := report.HTMLReportGenerator{}
				if err := gen.SaveReportToFile(s, htmlPath); err != nil {
					return err
				}
				root.log.Info("Saved HTML report", zap.String("path", htmlPath))
			}
			return root.emit(cmd, s, func(w io.Writer) { renderSummary(w, s) })
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", "Also write the report as HTML")
	return cmd
}

func newInfoCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the effective configuration and dataset format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.manager()
			if err != nil {
				return err
			}
			cfg := root.cfg
			type info struct {
				Version     string   `json:"version"`
				FileFormat  string   `json:"file_format"`
				Columns     []string `json:"columns"`
				KeyColumns  []string `json:"key_columns"`
				StartDate   string   `json:"start_date"`
				EndDate     string   `json:"end_date"`
				TargetBytes int64    `json:"target_bytes"`
				BytesPerRow int64    `json:"bytes_per_row"`
				Seed        int64    `json:"seed"`
				SourceDir   string   `json:"source_dir"`
				MonthlyDirs []string `json:"monthly_dirs"`
				Themes      int      `json:"themes"`
				Sources     int      `json:"sources"`
			}
			keys := make([]string, len(fingerprint.KeyColumns))
			for i, c := range fingerprint.KeyColumns {
				keys[i] = c.String()
			}
			v := info{
				Version:     version.GetVersion(),
				FileFormat:  metrics.FileFormat,
				Columns:     core.Columns,
				KeyColumns:  keys,
				StartDate:   cfg.Run.StartDate,
				EndDate:     cfg.Run.EndDate,
				TargetBytes: cfg.Run.TargetBytes,
				BytesPerRow: cfg.Run.BytesPerRow,
				Seed:        cfg.Run.Seed,
				SourceDir:   cfg.Paths.SourceDir,
				MonthlyDirs: cfg.Paths.MonthlyDirs,
				Themes:      len(m.Pools.Themes),
				Sources:     len(m.Pools.Sources),
			}
			return root.emit(cmd, v, func(w io.Writer) {
				kv(w,
					"Version", v.Version,
					"File format", v.FileFormat+" (YYYYMMDD.gkg.csv)",
					"Columns", strings.Join(v.Columns, " "),
					"Dedup key", strings.Join(v.KeyColumns, " "),
					"Date range", v.StartDate+"-"+v.EndDate,
					"Target size", megabytes(v.TargetBytes),
					"Bytes per row", v.BytesPerRow,
					"Seed", v.Seed,
					"Source", v.SourceDir,
					"Monthly", strings.Join(v.MonthlyDirs, ", "),
					"Theme pool", v.Themes,
					"Source pool", v.Sources)
			})
		},
	}
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dataset operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				root.cfg.Server.Addr = addr
			}
			m, err := root.manager()
			if err != nil {
				return err
			}
			s := api.NewServer(m, api.ServerOptions{Addr: root.cfg.Server.Addr, Logger: root.log.Named("api")})
			return s.Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gkgsynth",
		Args:  cobra.NoArgs,
		// No config or logging needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
