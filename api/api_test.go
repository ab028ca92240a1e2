package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/api"
	"github.com/TFMV/gkgsynth/config"
	"github.com/TFMV/gkgsynth/metrics"
	"github.com/TFMV/gkgsynth/pkg/manager"
)

func newServer(t *testing.T) *api.Server {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Run.StartDate = "20250429"
	cfg.Run.EndDate = "20250502"
	cfg.Run.TargetBytes = 4 * 10 * 2048
	cfg.Paths.SourceDir = filepath.Join(root, "gkg_data")
	cfg.Paths.MonthlyDirs = []string{filepath.Join(root, "April"), filepath.Join(root, "May")}
	m, err := manager.New(cfg, zap.NewNop())
	require.NoError(t, err)
	return api.NewServer(m, api.ServerOptions{})
}

func do(t *testing.T, s *api.Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// TestHealthEndpoint checks if the /health endpoint returns "OK"
func TestHealthEndpoint(t *testing.T) {
	resp := do(t, newServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

// versionResponse is used for JSON unmarshalling in the /version endpoint test
type versionResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Build   string `json:"build"`
	Time    string `json:"time"`
}

func TestVersionEndpoint(t *testing.T) {
	resp := do(t, newServer(t), http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v versionResponse
	decode(t, resp, &v)
	assert.Equal(t, "gkgsynth API", v.Service)
	assert.NotEmpty(t, v.Version)
	assert.NotEmpty(t, v.Build)
	assert.NotEmpty(t, v.Time)
}

func TestGenerateMergeValidate(t *testing.T) {
	s := newServer(t)

	resp := do(t, s, http.MethodPost, "/generate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen metrics.GenerationResult
	decode(t, resp, &gen)
	assert.Equal(t, 4, gen.Days)
	assert.Equal(t, "20250429-20250502", gen.DateRange)
	assert.Len(t, gen.Progress, 4)

	resp = do(t, s, http.MethodPost, "/merge", "{}")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mr metrics.MergeResult
	decode(t, resp, &mr)
	assert.Len(t, mr.Files, 4)
	assert.Equal(t, gen.TotalRows, int64(mr.RowsAdded+mr.DuplicatesSkipped))

	resp = do(t, s, http.MethodPost, "/validate", `{"expected": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vr metrics.ValidationReport
	decode(t, resp, &vr)
	assert.Len(t, vr.Dirs, 3)
	assert.Empty(t, vr.Findings)

	resp = do(t, s, http.MethodGet, "/analyze", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sr metrics.StructureReport
	decode(t, resp, &sr)
	require.Len(t, sr.Dirs, 3)
	assert.Equal(t, 4, sr.Dirs[0].Files)
	assert.Equal(t, 2, sr.Dirs[1].Files)
}

func TestGenerateExplicitRange(t *testing.T) {
	s := newServer(t)
	resp := do(t, s, http.MethodPost, "/generate", `{"start_date":"20250501","end_date":"20250501","target_bytes":4096}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen metrics.GenerationResult
	decode(t, resp, &gen)
	assert.Equal(t, 1, gen.Days)
	assert.Equal(t, 2, gen.PlannedRowsPerDay)
}

func TestBadRequests(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodPost, "/generate", `{"start_date":"20250510","end_date":"20250501"}`, http.StatusBadRequest},
		{http.MethodPost, "/generate", `{"target_bytes":-1}`, http.StatusBadRequest},
		{http.MethodPost, "/generate", `{not json`, http.StatusBadRequest},
		{http.MethodPost, "/validate", `{"targets":[{"monthly":true}]}`, http.StatusBadRequest},
		{http.MethodPost, "/validate", `{"targets":[{"dir":"x","start_date":"2025"}]}`, http.StatusBadRequest},
		{http.MethodPost, "/validate", `{"targets":[{"dir":"/nonexistent/gkgsynth"}]}`, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		resp := do(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.code, resp.StatusCode, tc.body)

		var body map[string]string
		decode(t, resp, &body)
		assert.NotEmpty(t, body["error"], tc.body)
	}
}
