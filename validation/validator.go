// Package validation re-reads persisted partitions and checks them against
// the dataset invariants. Violations are recorded as findings; only an
// unreadable directory is an error.
package validation

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
	"github.com/TFMV/gkgsynth/pkg/partition"
)

const (
	// DefaultSampleLimit caps how many files of a source directory are checked.
	DefaultSampleLimit = 5

	// maxRecordedValues caps the offending NUMARTS values kept per file.
	maxRecordedValues = 10
)

// Target is a directory to validate.
type Target struct {
	Dir string

	// Monthly marks a consolidated store. Monthly stores are fully scanned
	// unless the validator is shallow.
	Monthly bool

	// Expected, when set, turns absent partitions inside the range into
	// findings.
	Expected *core.DateRange

	// Optional allows the directory to be absent. An absent optional
	// directory is skipped, or with Expected set, reported as missing
	// partitions.
	Optional bool
}

// Validator manages the validation settings.
type Validator struct {
	// SampleLimit is the number of files checked per non-monthly directory;
	// 0 checks every file.
	SampleLimit int

	// Deep scans monthly stores in full regardless of SampleLimit.
	Deep bool

	Workers int

	// Logger for structured logging.
	Logger *zap.Logger
}

// NewValidator constructs a deep Validator with the default sample limit.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		SampleLimit: DefaultSampleLimit,
		Deep:        true,
		Workers:     1,
		Logger:      logger,
	}
}

// Validate checks every target and returns the combined report. A directory
// that cannot be read is reported in the returned error after the remaining
// targets have been validated.
func (v *Validator) Validate(ctx context.Context, targets []Target) (metrics.ValidationReport, error) {
	report := metrics.ValidationReport{StartTime: time.Now()}
	v.logger().Info("Starting validation", zap.Int("dirs", len(targets)))

	var dirErrs []error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dr, findings, err := v.ValidateDir(ctx, t)
		if errors.Is(err, errAbsent) {
			v.logger().Info("Skipping absent directory", zap.String("dir", t.Dir))
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			v.logger().Error("Directory validation failed", zap.String("dir", t.Dir), zap.Error(err))
			dirErrs = append(dirErrs, err)
			continue
		}
		report.Dirs = append(report.Dirs, dr)
		report.Findings = append(report.Findings, findings...)
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	v.logger().Info("Validation complete",
		zap.Int("dirs", len(report.Dirs)),
		zap.Int("findings", len(report.Findings)),
		zap.Bool("passed", report.Passed()),
		zap.Duration("duration", report.Duration))
	return report, errors.Join(dirErrs...)
}

var errAbsent = errors.New("optional directory absent")

// ValidateDir checks the partitions of one directory.
func (v *Validator) ValidateDir(ctx context.Context, t Target) (metrics.DirReport, []metrics.Finding, error) {
	names, err := partition.List(t.Dir)
	if err != nil {
		if !t.Optional || !errors.Is(err, fs.ErrNotExist) {
			return metrics.DirReport{}, nil, err
		}
		if t.Expected == nil {
			return metrics.DirReport{}, nil, errAbsent
		}
		names = nil
	}

	dr := metrics.DirReport{
		Dir:               t.Dir,
		Monthly:           t.Monthly,
		Files:             len(names),
		HeaderConsistent:  true,
		ArticleCountValid: true,
		ToneValid:         true,
	}

	checked := names
	if limit := v.limitFor(t); limit > 0 && len(checked) > limit {
		checked = checked[:limit]
	}

	type result struct {
		report   metrics.PartitionReport
		findings []metrics.Finding
	}
	results := make([]result, len(checked))
	err = workpool.Run(ctx, v.Workers, len(checked), func(_ context.Context, i int) error {
		pr, f := v.ValidatePartition(t.Dir, checked[i])
		results[i] = result{pr, f}
		return nil
	})
	if err != nil {
		return metrics.DirReport{}, nil, err
	}

	var findings []metrics.Finding
	for _, r := range results {
		pr := r.report
		dr.FilesChecked++
		dr.TotalRows += int64(pr.Rows)
		dr.Partitions = append(dr.Partitions, pr)
		findings = append(findings, r.findings...)

		if !pr.HeaderOK {
			dr.HeaderConsistent = false
			dr.FormatIssues++
		}
		if pr.ArticleCountViolations > 0 {
			dr.ArticleCountValid = false
			dr.ArticleCountIssues += pr.ArticleCountViolations
		}
		if !pr.ToneOK {
			dr.ToneValid = false
		}
		dr.MinDate = minDate(dr.MinDate, pr.MinDate)
		dr.MaxDate = maxDate(dr.MaxDate, pr.MaxDate)
	}

	if t.Expected != nil {
		dr.MissingDates = missingDates(*t.Expected, names)
		for _, d := range dr.MissingDates {
			findings = append(findings, metrics.Finding{
				Dir:     t.Dir,
				File:    partition.FileName(d),
				Kind:    metrics.MissingPartition,
				Message: fmt.Sprintf("expected partition for %s is missing", d),
			})
		}
	}

	v.logger().Info("Directory validated",
		zap.String("dir", t.Dir),
		zap.Int("files", dr.Files),
		zap.Int("files_checked", dr.FilesChecked),
		zap.Int64("total_rows", dr.TotalRows),
		zap.Bool("header_consistent", dr.HeaderConsistent),
		zap.Int("article_count_issues", dr.ArticleCountIssues),
		zap.Int("findings", len(findings)))
	return dr, findings, nil
}

// ValidatePartition checks one partition file. It never fails: a file that
// cannot be read is itself a finding.
func (v *Validator) ValidatePartition(dir, name string) (metrics.PartitionReport, []metrics.Finding) {
	pr := metrics.PartitionReport{File: name}
	finding := func(kind metrics.FindingKind, msg string) metrics.Finding {
		return metrics.Finding{Dir: dir, File: name, Kind: kind, Message: msg}
	}

	tbl, err := partition.Read(filepath.Join(dir, name))
	if err != nil {
		kind := metrics.MalformedFile
		if errors.Is(err, core.ErrIOFailure) {
			kind = metrics.UnreadableFile
		}
		v.logger().Warn("Partition unreadable", zap.String("dir", dir), zap.String("file", name), zap.Error(err))
		return pr, []metrics.Finding{finding(kind, err.Error())}
	}

	var findings []metrics.Finding
	pr.Separator = separatorName(tbl.Separator)
	pr.Rows = len(tbl.Rows)

	pr.HeaderOK = tbl.HeaderMatches()
	if !pr.HeaderOK {
		findings = append(findings, finding(metrics.HeaderMismatch,
			fmt.Sprintf("header %v does not equal %v", tbl.Header, core.Columns)))
	}
	if tbl.Separator != '\t' {
		pr.HeaderOK = false
		findings = append(findings, finding(metrics.HeaderMismatch,
			fmt.Sprintf("file is %s-separated, expected tab-separated", pr.Separator)))
	}

	for _, row := range tbl.Rows {
		raw := row.Get(core.ColNumArts)
		if n, err := core.ParseArticleCount(raw); err != nil || n != 1 {
			pr.ArticleCountViolations++
			if len(pr.ArticleCountValues) < maxRecordedValues && !slices.Contains(pr.ArticleCountValues, raw) {
				pr.ArticleCountValues = append(pr.ArticleCountValues, raw)
			}
		}
		if d := row.Get(core.ColDate); d != "" {
			pr.MinDate = minDate(pr.MinDate, d)
			pr.MaxDate = maxDate(pr.MaxDate, d)
		}
	}
	if pr.ArticleCountViolations > 0 {
		f := finding(metrics.ArticleCount,
			fmt.Sprintf("%d rows have NUMARTS other than 1", pr.ArticleCountViolations))
		f.Count = pr.ArticleCountViolations
		f.Values = pr.ArticleCountValues
		findings = append(findings, f)
	}

	// An empty partition has no tone to inspect.
	pr.ToneOK = len(tbl.Rows) == 0 || strings.Contains(tbl.Rows[0].Get(core.ColTone), ",")
	if !pr.ToneOK {
		findings = append(findings, finding(metrics.ToneFormat,
			fmt.Sprintf("TONE %q is not comma-separated", tbl.Rows[0].Get(core.ColTone))))
	}

	for _, f := range findings {
		v.logger().Warn("Integrity finding",
			zap.String("dir", dir),
			zap.String("file", name),
			zap.String("kind", string(f.Kind)),
			zap.String("message", f.Message))
	}
	return pr, findings
}

func (v *Validator) limitFor(t Target) int {
	if t.Monthly && v.Deep {
		return 0
	}
	return v.SampleLimit
}

func (v *Validator) logger() *zap.Logger {
	if v.Logger == nil {
		return zap.NewNop()
	}
	return v.Logger
}

func missingDates(expected core.DateRange, names []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		if d, err := partition.DateFromFileName(n); err == nil {
			present[d] = true
		}
	}
	var missing []string
	for _, d := range expected.Dates() {
		if !present[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

func separatorName(r rune) string {
	switch r {
	case '\t':
		return "tab"
	case ',':
		return "comma"
	default:
		return string(r)
	}
}

// minDate and maxDate compare YYYYMMDD keys; "" means unset.
func minDate(a, b string) string {
	if a == "" || (b != "" && b < a) {
		return b
	}
	return a
}

func maxDate(a, b string) string {
	if b > a {
		return b
	}
	return a
}
