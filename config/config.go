package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/TFMV/gkgsynth/pkg/core"
)

// --- Configuration Structs ---

type RunConfig struct {
	StartDate         string  `mapstructure:"start_date"`
	EndDate           string  `mapstructure:"end_date"`
	TargetBytes       int64   `mapstructure:"target_bytes"`
	BytesPerRow       int64   `mapstructure:"bytes_per_row"`
	Variance          float64 `mapstructure:"variance"`
	CountsProbability float64 `mapstructure:"counts_probability"`
	Seed              int64   `mapstructure:"seed"`
	Workers           int     `mapstructure:"workers"`
}

type PathsConfig struct {
	SourceDir   string   `mapstructure:"source_dir"`
	MonthlyDirs []string `mapstructure:"monthly_dirs"`
	PoolsFile   string   `mapstructure:"pools_file"`
	ReportDir   string   `mapstructure:"report_dir"`
}

type ValidationConfig struct {
	SampleLimit int  `mapstructure:"sample_limit"`
	Deep        bool `mapstructure:"deep"`
}

type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Run        RunConfig        `mapstructure:"run"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
}

// --- Defaults ---

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.start_date", "20250401")
	v.SetDefault("run.end_date", "20250610")
	v.SetDefault("run.target_bytes", int64(5)<<30)
	v.SetDefault("run.bytes_per_row", 2048)
	v.SetDefault("run.variance", 0.15)
	v.SetDefault("run.counts_probability", 0.4)
	v.SetDefault("run.seed", 42)
	v.SetDefault("run.workers", 1)

	v.SetDefault("paths.source_dir", "gkg_data")
	v.SetDefault("paths.monthly_dirs", []string{"April", "May", "June"})
	v.SetDefault("paths.pools_file", "")
	v.SetDefault("paths.report_dir", ".")

	v.SetDefault("validation.sample_limit", 5)
	v.SetDefault("validation.deep", true)

	v.SetDefault("logging.file", "gkgsynth.log")
	v.SetDefault("logging.level", "info")

	v.SetDefault("server.addr", ":8080")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := LoadConfig("")
	if err != nil {
		// Defaults alone always decode.
		panic(err)
	}
	return cfg
}

// --- Load Configuration ---

// LoadConfig reads configPath (YAML) over the defaults. An empty path yields
// the defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %w", core.ErrIOFailure, configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", core.ErrInvalidArgument, err)
	}
	return &cfg, nil
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf("%w: "+format, append([]any{core.ErrInvalidArgument}, a...)...)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Run.Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// DateRange parses the configured start and end dates.
func (rc *RunConfig) DateRange() (core.DateRange, error) {
	return core.ParseDateRange(rc.StartDate, rc.EndDate)
}

func (rc *RunConfig) Validate() error {
	if _, err := rc.DateRange(); err != nil {
		return err
	}
	if err := validate(rc.TargetBytes > 0, "target size must be positive, got %d", rc.TargetBytes); err != nil {
		return err
	}
	if err := validate(rc.BytesPerRow > 0, "bytes per row must be positive, got %d", rc.BytesPerRow); err != nil {
		return err
	}
	if err := validate(rc.Variance >= 0 && rc.Variance < 1, "variance must be in [0,1), got %g", rc.Variance); err != nil {
		return err
	}
	if err := validate(rc.CountsProbability >= 0 && rc.CountsProbability <= 1,
		"counts probability must be in [0,1], got %g", rc.CountsProbability); err != nil {
		return err
	}
	return validate(rc.Workers >= 1, "workers must be at least 1, got %d", rc.Workers)
}

func (pc *PathsConfig) Validate() error {
	if err := validate(strings.TrimSpace(pc.SourceDir) != "", "source directory is required"); err != nil {
		return err
	}
	if err := validate(len(pc.MonthlyDirs) > 0, "at least one monthly directory is required"); err != nil {
		return err
	}
	for i, d := range pc.MonthlyDirs {
		if err := validate(strings.TrimSpace(d) != "", "monthly directory %d is empty", i); err != nil {
			return err
		}
	}
	return nil
}

func (vc *ValidationConfig) Validate() error {
	return validate(vc.SampleLimit >= 0, "sample limit must not be negative, got %d", vc.SampleLimit)
}
