package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/core"
)

const (
	// ProgressFileName is the progress log written next to generated partitions.
	ProgressFileName = "gkg_generation_progress.csv"

	// MetadataFileName describes a generation run.
	MetadataFileName = "generation_metadata.txt"
)

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// ReportGenerator defines the methods for generating reports.
type ReportGenerator interface {
	GenerateReport(run metrics.Summary) ([]byte, error)
	SaveReportToFile(run metrics.Summary, filePath string) error
}

// FileName is the default report name for a run started at t.
func FileName(t time.Time, ext string) string {
	return fmt.Sprintf("gkgsynth_report_%s.%s", t.UTC().Format("20060102_150405"), ext)
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONReportGenerator generates JSON reports.
type JSONReportGenerator struct{}

// GenerateReport serializes the Summary to JSON.
func (j *JSONReportGenerator) GenerateReport(run metrics.Summary) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// SaveReportToFile saves the JSON report to a file.
func (j *JSONReportGenerator) SaveReportToFile(run metrics.Summary, filePath string) error {
	data, err := j.GenerateReport(run)
	if err != nil {
		return err
	}
	return writeFile(filePath, data)
}

// ReportFromFilePath loads a summary saved as a JSON report.
func (j *JSONReportGenerator) ReportFromFilePath(path string) (metrics.Summary, error) {
	return ReportFromFilePath(path)
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct{}

var funcs = template.FuncMap{
	"mb": func(n int64) string {
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	},
	"duprate": func(m *metrics.MergeResult) string {
		rate, ok := m.DuplicateRate()
		if !ok {
			return "n/a"
		}
		return fmt.Sprintf("%.2f%%", rate*100)
	},
	"join": strings.Join,
}

// HTML template for the report.
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>GKG Dataset Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
    </style>
</head>
<body>
    <h1>GKG Dataset Report</h1>
    <p><strong>Run:</strong> {{.RunID}}</p>
    <p><strong>Timestamp:</strong> {{.Timestamp}}</p>
    <p><strong>Version:</strong> {{.Version}}</p>
    <p><strong>File format:</strong> {{.FileFormat}}</p>
    <p><strong>Date range:</strong> {{.DateRange}}</p>
    <p><strong>Source directory:</strong> {{.SourceDir}}</p>
    <p><strong>Monthly directories:</strong> {{join .MonthlyDirs ", "}}</p>
    <p><strong>Columns:</strong> {{join .Columns " "}}</p>
{{with .Generation}}
    <h2>Generation</h2>
    <p><strong>Days:</strong> {{.Days}} &middot; <strong>Rows:</strong> {{.TotalRows}} &middot; <strong>Size:</strong> {{mb .TotalBytes}} &middot; <strong>Seed:</strong> {{.Seed}}</p>
    <table>
        <tr><th>Date</th><th>Rows</th><th>Size</th><th>Cumulative Rows</th><th>Cumulative Size</th></tr>
        {{range .Progress}}
        <tr><td>{{.Date}}</td><td>{{.Rows}}</td><td>{{mb .FileBytes}}</td><td>{{.TotalRows}}</td><td>{{mb .TotalBytes}}</td></tr>
        {{end}}
    </table>
    {{range .Failures}}<p class="status-fail">{{.Date}}: {{.Error}}</p>{{end}}
{{end}}
{{with .Merge}}
    <h2>Merge</h2>
    <p><strong>Rows added:</strong> {{.RowsAdded}} &middot; <strong>Duplicates skipped:</strong> {{.DuplicatesSkipped}} &middot; <strong>Duplicate rate:</strong> {{duprate .}}</p>
    <table>
        <tr><th>Month</th><th>Files</th><th>Rows Added</th><th>Duplicates Skipped</th></tr>
        {{range .Months}}
        <tr><td>{{.Dir}}</td><td>{{.Files}}</td><td>{{.RowsAdded}}</td><td>{{.DuplicatesSkipped}}</td></tr>
        {{end}}
    </table>
    {{range .Skipped}}<p>Skipped {{.File}}: {{.Reason}}</p>{{end}}
    {{range .Failures}}<p class="status-fail">Failed {{.File}} ({{.Kind}}): {{.Error}}</p>{{end}}
{{end}}
{{with .Validation}}
    <h2>Validation</h2>
    <p><strong>Status:</strong> {{if .Passed}}<span class="status-pass">PASS</span>{{else}}<span class="status-fail">FAIL</span>{{end}}</p>
    <table>
        <tr><th>Directory</th><th>Files</th><th>Checked</th><th>Rows</th><th>Header</th><th>NUMARTS = 1</th><th>Tone</th><th>Date Range</th></tr>
        {{range .Dirs}}
        <tr>
            <td>{{.Dir}}</td><td>{{.Files}}</td><td>{{.FilesChecked}}</td><td>{{.TotalRows}}</td>
            <td class="{{if .HeaderConsistent}}status-pass{{else}}status-fail{{end}}">{{if .HeaderConsistent}}PASS{{else}}FAIL{{end}}</td>
            <td class="{{if .ArticleCountValid}}status-pass{{else}}status-fail{{end}}">{{if .ArticleCountValid}}PASS{{else}}{{.ArticleCountIssues}} issues{{end}}</td>
            <td class="{{if .ToneValid}}status-pass{{else}}status-fail{{end}}">{{if .ToneValid}}PASS{{else}}FAIL{{end}}</td>
            <td>{{.MinDate}} - {{.MaxDate}}</td>
        </tr>
        {{end}}
    </table>
    <h3>Findings</h3>
    <ul>
        {{range .Findings}}<li>{{.}}</li>{{else}}<li>None</li>{{end}}
    </ul>
{{end}}
{{with .Structure}}
    <h2>Directory Structure</h2>
    <table>
        <tr><th>Directory</th><th>Files</th><th>Size</th><th>First</th><th>Last</th></tr>
        {{range .Dirs}}
        <tr><td>{{.Dir}}</td><td>{{if .Exists}}{{.Files}}{{else}}missing{{end}}</td><td>{{mb .TotalBytes}}</td><td>{{.FirstFile}}</td><td>{{.LastFile}}</td></tr>
        {{end}}
    </table>
{{end}}
    <footer>
        <p>Generated on {{.Timestamp}}</p>
    </footer>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Funcs(funcs).Parse(htmlTemplate))

// GenerateReport renders the summary as HTML.
func (h *HTMLReportGenerator) GenerateReport(run metrics.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveReportToFile saves the HTML report to a file.
func (h *HTMLReportGenerator) SaveReportToFile(run metrics.Summary, filePath string) error {
	data, err := h.GenerateReport(run)
	if err != nil {
		return err
	}
	return writeFile(filePath, data)
}

// SaveReports saves both JSON and HTML reports.
func SaveReports(run metrics.Summary, jsonPath, htmlPath string) error {
	jsonGen := JSONReportGenerator{}
	htmlGen := HTMLReportGenerator{}

	if err := jsonGen.SaveReportToFile(run, jsonPath); err != nil {
		return err
	}
	return htmlGen.SaveReportToFile(run, htmlPath)
}

// ReportFromFilePath loads a summary saved as a JSON report.
func ReportFromFilePath(filePath string) (metrics.Summary, error) {
	s, err := metrics.LoadSummary(filePath)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("%w: load report %s: %w", core.ErrMalformedInput, filePath, err)
	}
	return s, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write report %s: %w", core.ErrIOFailure, path, err)
	}
	return nil
}

// -----------------------------
// Generation progress and metadata
// -----------------------------

var progressSchema = arrow.NewSchema([]arrow.Field{
	{Name: "date", Type: arrow.BinaryTypes.String},
	{Name: "filename", Type: arrow.BinaryTypes.String},
	{Name: "rows", Type: arrow.PrimitiveTypes.Int64},
	{Name: "numarts_fixed", Type: arrow.PrimitiveTypes.Int64},
	{Name: "size_mb", Type: arrow.PrimitiveTypes.Float64},
	{Name: "cumulative_rows", Type: arrow.PrimitiveTypes.Int64},
	{Name: "cumulative_size_mb", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteProgressCSV writes the progress log as CSV, one line per day.
func WriteProgressCSV(w io.Writer, progress []metrics.DayProgress) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), progressSchema)
	defer b.Release()

	for _, p := range progress {
		b.Field(0).(*array.StringBuilder).Append(p.Date)
		b.Field(1).(*array.StringBuilder).Append(filepath.Base(p.Path))
		b.Field(2).(*array.Int64Builder).Append(int64(p.Rows))
		b.Field(3).(*array.Int64Builder).Append(1)
		b.Field(4).(*array.Float64Builder).Append(float64(p.FileBytes) / (1 << 20))
		b.Field(5).(*array.Int64Builder).Append(p.TotalRows)
		b.Field(6).(*array.Float64Builder).Append(float64(p.TotalBytes) / (1 << 20))
	}
	rec := b.NewRecord()
	defer rec.Release()

	cw := csv.NewWriter(w, progressSchema, csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("%w: write progress log: %w", core.ErrIOFailure, err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("%w: flush progress log: %w", core.ErrIOFailure, err)
	}
	return nil
}

// SaveProgressCSV writes the progress log into dir and returns its path.
func SaveProgressCSV(dir string, progress []metrics.DayProgress) (string, error) {
	var buf bytes.Buffer
	if err := WriteProgressCSV(&buf, progress); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ProgressFileName)
	return path, writeFile(path, buf.Bytes())
}

// Metadata describes a generation run for the metadata file.
type Metadata struct {
	RunID       string
	Version     string
	GeneratedAt time.Time
	DateRange   string
	Dir         string
	Seed        int64
	TargetBytes int64
	Result      metrics.GenerationResult
}

// WriteMetadata writes the plain-text generation metadata.
func WriteMetadata(w io.Writer, m Metadata) error {
	var b strings.Builder
	b.WriteString("GKG Dataset Generation Metadata\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Run ID: %s\n", m.RunID)
	fmt.Fprintf(&b, "Generated by: gkgsynth %s\n", m.Version)
	fmt.Fprintf(&b, "Generation time (UTC): %s\n", m.GeneratedAt.UTC().Format(time.DateTime))
	fmt.Fprintf(&b, "Date range: %s\n", m.DateRange)
	b.WriteString("File format: YYYYMMDD.gkg.csv (tab-separated GKG)\n")
	b.WriteString("NUMARTS: fixed at 1\n")
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(core.Columns, " "))
	fmt.Fprintf(&b, "Seed: %d\n", m.Seed)
	fmt.Fprintf(&b, "Target size: %d bytes\n", m.TargetBytes)
	fmt.Fprintf(&b, "Files written: %d\n", len(m.Result.Progress))
	fmt.Fprintf(&b, "Total rows: %d\n", m.Result.TotalRows)
	fmt.Fprintf(&b, "Total size: %d bytes\n", m.Result.TotalBytes)
	fmt.Fprintf(&b, "Output directory: %s\n", m.Dir)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("%w: write metadata: %w", core.ErrIOFailure, err)
	}
	return nil
}

// SaveMetadata writes the metadata file into m.Dir and returns its path.
func SaveMetadata(m Metadata) (string, error) {
	var buf bytes.Buffer
	if err := WriteMetadata(&buf, m); err != nil {
		return "", err
	}
	path := filepath.Join(m.Dir, MetadataFileName)
	return path, writeFile(path, buf.Bytes())
}
