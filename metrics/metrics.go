// Package metrics defines the structured results returned by generation,
// merge, validation and structure analysis, and the run summary that
// aggregates them.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// FileFormat is the persisted partition format reported in summaries.
const FileFormat = "tab-separated values"

// -----------------------------
// Generation
// -----------------------------

// DayProgress is one progress-log entry, emitted after each day is written.
// Totals grow monotonically across entries.
type DayProgress struct {
	Date       string `json:"date"`
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
	FileBytes  int64  `json:"file_bytes"`
	TotalRows  int64  `json:"total_rows"`
	TotalBytes int64  `json:"total_bytes"`
}

// DayFailure records a day whose partition could not be written.
type DayFailure struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// GenerationResult is the outcome of generating a date range.
type GenerationResult struct {
	DateRange         string        `json:"date_range"`
	Days              int           `json:"days"`
	TargetBytes       int64         `json:"target_bytes"`
	BytesPerRow       int64         `json:"bytes_per_row"`
	PlannedRowsPerDay int           `json:"planned_rows_per_day"`
	Seed              int64         `json:"seed"`
	Progress          []DayProgress `json:"progress"`
	Failures          []DayFailure  `json:"failures,omitempty"`
	TotalRows         int64         `json:"total_rows"`
	TotalBytes        int64         `json:"total_bytes"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

// -----------------------------
// Merge
// -----------------------------

// FileMerge is the outcome of merging one source partition into its target.
type FileMerge struct {
	Date              string `json:"date"`
	Source            string `json:"source"`
	Target            string `json:"target"`
	SourceRows        int    `json:"source_rows"`
	TargetRowsBefore  int    `json:"target_rows_before"`
	TargetRowsAfter   int    `json:"target_rows_after"`
	RowsAdded         int    `json:"rows_added"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Written           bool   `json:"written"`
}

// DuplicateRate is skipped/(added+skipped). ok is false when no rows were
// processed and the rate is undefined.
func (f FileMerge) DuplicateRate() (rate float64, ok bool) {
	return duplicateRate(f.RowsAdded, f.DuplicatesSkipped)
}

// FileSkip is a source file that was deliberately not merged.
type FileSkip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// FileFailure is a source file whose merge failed. Other files are unaffected.
type FileFailure struct {
	File  string `json:"file"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// MonthStats aggregates merges routed to one monthly directory.
type MonthStats struct {
	Dir               string `json:"dir"`
	Files             int    `json:"files"`
	RowsAdded         int    `json:"rows_added"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
}

// MergeResult is the outcome of a directory-level merge run.
type MergeResult struct {
	SourceDir         string        `json:"source_dir"`
	Files             []FileMerge   `json:"files"`
	Skipped           []FileSkip    `json:"skipped,omitempty"`
	Failures          []FileFailure `json:"failures,omitempty"`
	Months            []MonthStats  `json:"months"`
	RowsAdded         int           `json:"rows_added"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

// DuplicateRate is skipped/(added+skipped) over the whole run. ok is false
// when no rows were processed.
func (m MergeResult) DuplicateRate() (rate float64, ok bool) {
	return duplicateRate(m.RowsAdded, m.DuplicatesSkipped)
}

// Add folds a file merge into the run totals and its month.
func (m *MergeResult) Add(month string, f FileMerge) {
	m.Files = append(m.Files, f)
	m.RowsAdded += f.RowsAdded
	m.DuplicatesSkipped += f.DuplicatesSkipped
	for i := range m.Months {
		if m.Months[i].Dir == month {
			m.Months[i].Files++
			m.Months[i].RowsAdded += f.RowsAdded
			m.Months[i].DuplicatesSkipped += f.DuplicatesSkipped
			return
		}
	}
	m.Months = append(m.Months, MonthStats{
		Dir:               month,
		Files:             1,
		RowsAdded:         f.RowsAdded,
		DuplicatesSkipped: f.DuplicatesSkipped,
	})
}

func duplicateRate(added, skipped int) (float64, bool) {
	total := added + skipped
	if total == 0 {
		return 0, false
	}
	return float64(skipped) / float64(total), true
}

// -----------------------------
// Validation
// -----------------------------

// FindingKind classifies an integrity finding.
type FindingKind string

const (
	HeaderMismatch   FindingKind = "header_mismatch"
	ArticleCount     FindingKind = "article_count"
	ToneFormat       FindingKind = "tone_format"
	MissingPartition FindingKind = "missing_partition"
	MalformedFile    FindingKind = "malformed_file"
	UnreadableFile   FindingKind = "unreadable_file"
)

// Finding is a recorded data-quality violation. It is a value, never an error.
type Finding struct {
	Dir     string      `json:"dir"`
	File    string      `json:"file,omitempty"`
	Kind    FindingKind `json:"kind"`
	Message string      `json:"message"`
	Count   int         `json:"count,omitempty"`
	Values  []string    `json:"values,omitempty"`
}

func (f Finding) String() string {
	if f.File != "" {
		return fmt.Sprintf("%s/%s: %s: %s", f.Dir, f.File, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Dir, f.Kind, f.Message)
}

// PartitionReport holds the checks run against one partition file.
type PartitionReport struct {
	File                   string   `json:"file"`
	Separator              string   `json:"separator"`
	Rows                   int      `json:"rows"`
	HeaderOK               bool     `json:"header_ok"`
	ArticleCountViolations int      `json:"article_count_violations"`
	ArticleCountValues     []string `json:"article_count_values,omitempty"`
	ToneOK                 bool     `json:"tone_ok"`
	MinDate                string   `json:"min_date,omitempty"`
	MaxDate                string   `json:"max_date,omitempty"`
}

// DirReport summarizes one validated directory.
type DirReport struct {
	Dir                string            `json:"dir"`
	Monthly            bool              `json:"monthly"`
	Files              int               `json:"files"`
	FilesChecked       int               `json:"files_checked"`
	TotalRows          int64             `json:"total_rows"`
	HeaderConsistent   bool              `json:"header_consistent"`
	FormatIssues       int               `json:"format_issues"`
	ArticleCountValid  bool              `json:"article_count_valid"`
	ArticleCountIssues int               `json:"article_count_issues"`
	ToneValid          bool              `json:"tone_valid"`
	MinDate            string            `json:"min_date,omitempty"`
	MaxDate            string            `json:"max_date,omitempty"`
	MissingDates       []string          `json:"missing_dates,omitempty"`
	Partitions         []PartitionReport `json:"partitions"`
}

// ValidationReport aggregates validation results across directories.
type ValidationReport struct {
	Dirs      []DirReport   `json:"dirs"`
	Findings  []Finding     `json:"findings"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Passed reports whether the run recorded no findings.
func (r ValidationReport) Passed() bool {
	return len(r.Findings) == 0
}

// FindingsFor returns the findings recorded against file.
func (r ValidationReport) FindingsFor(file string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.File == file {
			out = append(out, f)
		}
	}
	return out
}

// -----------------------------
// Structure analysis
// -----------------------------

// DirStructure describes what is on disk in one directory.
type DirStructure struct {
	Dir           string         `json:"dir"`
	Exists        bool           `json:"exists"`
	Files         int            `json:"files"`
	TotalBytes    int64          `json:"total_bytes"`
	FirstFile     string         `json:"first_file,omitempty"`
	LastFile      string         `json:"last_file,omitempty"`
	MonthCounts   map[string]int `json:"month_counts,omitempty"`
	SampleColumns []string       `json:"sample_columns,omitempty"`
	SampleRows    int            `json:"sample_rows"`
	SampleError   string         `json:"sample_error,omitempty"`
}

// StructureReport is the result of a structure analysis.
type StructureReport struct {
	Dirs       []DirStructure `json:"dirs"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

// -----------------------------
// Run summary
// -----------------------------

// Summary aggregates the results of a run for reporting.
type Summary struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
	FileFormat  string            `json:"file_format"`
	DateRange   string            `json:"date_range,omitempty"`
	SourceDir   string            `json:"source_dir"`
	MonthlyDirs []string          `json:"monthly_dirs"`
	Columns     []string          `json:"columns"`
	Generation  *GenerationResult `json:"generation,omitempty"`
	Merge       *MergeResult      `json:"merge,omitempty"`
	Validation  *ValidationReport `json:"validation,omitempty"`
	Structure   *StructureReport  `json:"structure,omitempty"`
}

// NewSummary stamps a fresh run id and timestamp.
func NewSummary() Summary {
	return Summary{
		RunID:      uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		FileFormat: FileFormat,
	}
}

// -----------------------------
// Metrics Storage
// -----------------------------

// MetricsStore abstracts summary storage.
type MetricsStore interface {
	Save(run Summary) error
	SaveWithContext(ctx context.Context, run Summary) error
}

// JSONMetricsStore stores summaries as indented JSON. With an empty FilePath
// the JSON goes to Out, or stdout when Out is nil.
type JSONMetricsStore struct {
	FilePath string
	Out      io.Writer
}

func (j *JSONMetricsStore) Save(run Summary) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	if j.FilePath != "" {
		return os.WriteFile(j.FilePath, data, 0o644)
	}
	out := j.Out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func (j *JSONMetricsStore) SaveWithContext(ctx context.Context, run Summary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return j.Save(run)
	}
}

// LoadSummary reads a summary written by JSONMetricsStore.
func LoadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, err
	}
	return s, nil
}
