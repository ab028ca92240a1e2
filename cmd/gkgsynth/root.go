package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/gkgsynth/config"
	"github.com/TFMV/gkgsynth/logger"
	"github.com/TFMV/gkgsynth/pkg/manager"
)

// rootOptions are the global flags shared by every command.
type rootOptions struct {
	configPath string
	logFile    string
	logLevel   string
	json       bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gkgsynth",
		Short: "gkgsynth generates, merges and validates synthetic GKG datasets",
		Long: `gkgsynth produces synthetic Global Knowledge Graph records as daily
tab-separated partitions (YYYYMMDD.gkg.csv), merges them idempotently into
monthly stores and validates the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "JSON log file (empty disables file logging)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newMergeCmd(opts),
		newValidateCmd(opts),
		newAnalyzeCmd(opts),
		newRunCmd(opts),
		newExportCmd(opts),
		newIngestCmd(opts),
		newReportCmd(opts),
		newInfoCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// init loads the config and sets up logging. Flags override config values.
func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-file") {
		cfg.Logging.File = o.logFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}

	logger.ResetLogger()
	logger.SetLogPath(cfg.Logging.File)
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return err
	}
	o.cfg = cfg
	o.log = logger.GetLogger()
	return nil
}

func (o *rootOptions) manager() (*manager.Manager, error) {
	return manager.New(o.cfg, o.log)
}

// emit prints v as JSON when --json is set, otherwise calls render.
func (o *rootOptions) emit(cmd *cobra.Command, v any, render func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render(out)
	return nil
}
