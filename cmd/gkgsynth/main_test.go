package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/gkgsynth/logger"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/manager"
	"github.com/TFMV/gkgsynth/version"
)

// writeConfig writes a small dataset config rooted in a temp dir.
func writeConfig(t *testing.T) (path, root string) {
	t.Helper()
	root = t.TempDir()
	cfg := `run:
  start_date: "20250629"
  end_date: "20250702"
  target_bytes: 81920
  seed: 7
paths:
  source_dir: ` + filepath.Join(root, "gkg_data") + `
  monthly_dirs:
    - ` + filepath.Join(root, "June") + `
    - ` + filepath.Join(root, "July") + `
  report_dir: ` + filepath.Join(root, "reports") + `
logging:
  file: ""
  level: error
`
	path = filepath.Join(root, "gkgsynth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(logger.ResetLogger)
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestGenerateJSON(t *testing.T) {
	cfg, root := writeConfig(t)
	out, err := execute(t, "--config", cfg, "--json", "generate")
	require.NoError(t, err)

	var res metrics.GenerationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.Days)
	assert.Equal(t, int64(7), res.Seed)
	assert.Len(t, res.Progress, 4)

	for _, name := range []string{"gkg_generation_progress.csv", "generation_metadata.txt", "20250629.gkg.csv", "20250702.gkg.csv"} {
		assert.FileExists(t, filepath.Join(root, "gkg_data", name))
	}
}

func TestGenerateFlagsOverrideConfig(t *testing.T) {
	cfg, root := writeConfig(t)
	out, err := execute(t, "--config", cfg, "--json", "generate",
		"--start", "20250701", "--end", "20250701", "--target-bytes", "4096", "--no-artifacts")
	require.NoError(t, err)

	var res metrics.GenerationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Days)
	assert.Equal(t, 2, res.PlannedRowsPerDay)
	assert.NoFileExists(t, filepath.Join(root, "gkg_data", "gkg_generation_progress.csv"))
}

func TestGenerateRejectsBadRange(t *testing.T) {
	cfg, root := writeConfig(t)
	_, err := execute(t, "--config", cfg, "generate", "--start", "20250710", "--end", "20250701")
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(root, "gkg_data"))
}

func TestRunWritesReports(t *testing.T) {
	cfg, root := writeConfig(t)
	out, err := execute(t, "--config", cfg, "--json", "run")
	require.NoError(t, err)

	var s metrics.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	require.NotNil(t, s.Validation)
	assert.True(t, s.Validation.Passed())
	assert.Len(t, s.Merge.Months, 2)

	entries, err := os.ReadDir(filepath.Join(root, "reports"))
	require.NoError(t, err)
	var exts []string
	for _, e := range entries {
		exts = append(exts, filepath.Ext(e.Name()))
	}
	assert.ElementsMatch(t, []string{".json", ".html"}, exts)

	// the saved JSON report renders again
	var jsonReport string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			jsonReport = filepath.Join(root, "reports", e.Name())
		}
	}
	htmlPath := filepath.Join(root, "again.html")
	out, err = execute(t, "--config", cfg, "report", jsonReport, "--html", htmlPath)
	require.NoError(t, err)
	assert.Contains(t, out, s.RunID)
	assert.FileExists(t, htmlPath)
}

func TestMergeValidateAnalyzeText(t *testing.T) {
	cfg, root := writeConfig(t)
	_, err := execute(t, "--config", cfg, "generate")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "MONTH")
	assert.Contains(t, out, filepath.Join(root, "June"))
	assert.Contains(t, out, "Duplicate rate")

	out, err = execute(t, "--config", cfg, "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "100.00%")

	out, err = execute(t, "--config", cfg, "validate", "--expected", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "No findings.")

	out, err = execute(t, "--config", cfg, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "20250629.gkg.csv")
	assert.Contains(t, out, "202506:2")
}

func TestValidateStrictFails(t *testing.T) {
	cfg, root := writeConfig(t)
	_, err := execute(t, "--config", cfg, "generate")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "gkg_data", "20250630.gkg.csv")))

	out, err := execute(t, "--config", cfg, "validate", "--dir", filepath.Join(root, "gkg_data"), "--expected", "--strict")
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, "missing_partition")
}

func TestExportIngest(t *testing.T) {
	cfg, root := writeConfig(t)
	_, err := execute(t, "--config", cfg, "run", "--no-report")
	require.NoError(t, err)

	parquet := filepath.Join(root, "june.parquet")
	out, err := execute(t, "--config", cfg, "--json", "export", filepath.Join(root, "June"), "-o", parquet)
	require.NoError(t, err)
	var exp manager.ExportResult
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	assert.Equal(t, 2, exp.Files)

	target := filepath.Join(root, "ingested")
	out, err = execute(t, "--config", cfg, "--json", "ingest", parquet, "--target", target)
	require.NoError(t, err)
	var ing manager.IngestResult
	require.NoError(t, json.Unmarshal([]byte(out), &ing))
	assert.Equal(t, int(exp.Rows), ing.RowsAdded)
	assert.Len(t, ing.Files, 2)
}

func TestInfo(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := execute(t, "--config", cfg, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "DATE NUMARTS COUNTS")
	assert.True(t, strings.Contains(out, "20250629-20250702"))
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "info")
	assert.Error(t, err)
}
