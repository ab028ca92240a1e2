package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/gkgsynth/pkg/core"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "20250401", cfg.Run.StartDate)
	assert.Equal(t, "20250610", cfg.Run.EndDate)
	assert.Equal(t, int64(5)<<30, cfg.Run.TargetBytes)
	assert.Equal(t, int64(2048), cfg.Run.BytesPerRow)
	assert.InDelta(t, 0.15, cfg.Run.Variance, 1e-9)
	assert.InDelta(t, 0.4, cfg.Run.CountsProbability, 1e-9)
	assert.Equal(t, []string{"April", "May", "June"}, cfg.Paths.MonthlyDirs)
	assert.Equal(t, 5, cfg.Validation.SampleLimit)

	dr, err := cfg.Run.DateRange()
	require.NoError(t, err)
	assert.Equal(t, 71, dr.Days())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gkgsynth.yaml")
	content := `
run:
  start_date: "20250501"
  end_date: "20250502"
  target_bytes: 4096
  workers: 4
paths:
  source_dir: out
  monthly_dirs: [May]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "20250501", cfg.Run.StartDate)
	assert.Equal(t, int64(4096), cfg.Run.TargetBytes)
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, "out", cfg.Paths.SourceDir)
	assert.Equal(t, []string{"May"}, cfg.Paths.MonthlyDirs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, int64(2048), cfg.Run.BytesPerRow)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, core.ErrIOFailure))
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"inverted range":    func(c *Config) { c.Run.StartDate, c.Run.EndDate = "20250610", "20250401" },
		"bad date":          func(c *Config) { c.Run.StartDate = "2025-04-01" },
		"zero target":       func(c *Config) { c.Run.TargetBytes = 0 },
		"negative target":   func(c *Config) { c.Run.TargetBytes = -1 },
		"zero bytes/row":    func(c *Config) { c.Run.BytesPerRow = 0 },
		"variance too high": func(c *Config) { c.Run.Variance = 1 },
		"probability":       func(c *Config) { c.Run.CountsProbability = 1.5 },
		"workers":           func(c *Config) { c.Run.Workers = 0 },
		"no source dir":     func(c *Config) { c.Paths.SourceDir = " " },
		"no monthly dirs":   func(c *Config) { c.Paths.MonthlyDirs = nil },
		"empty monthly dir": func(c *Config) { c.Paths.MonthlyDirs = []string{"April", ""} },
		"sample limit":      func(c *Config) { c.Validation.SampleLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidArgument), err.Error())
		})
	}
}
