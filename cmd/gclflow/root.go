package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gclflow/gclflow/internal/infrastructure/logging"
	"github.com/gclflow/gclflow/pkg/gclflow"
)

type rootFlags struct {
	config    string
	envFiles  []string
	expID     string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "gclflow",
		Short: "Graph contrastive learning training executor",
		Long: "gclflow trains a self-supervised graph encoder with early stopping and\n" +
			"milestone checkpoints, then scores the milestones with a linear probe.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "YAML configuration file")
	pf.StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load (default .env when present)")
	pf.StringVar(&flags.expID, "exp-id", "", "experiment id, overrides exp_id")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error, overrides log.level")
	pf.StringVar(&flags.logFormat, "log-format", "", "pretty, text or json, overrides log.format")

	root.AddCommand(
		newTrainCmd(flags),
		newEvaluateCmd(flags),
		newCheckpointsCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return root
}

// load resolves the configuration and installs the process logger.
func (f *rootFlags) load(cmd *cobra.Command) (gclflow.Config, *slog.Logger, error) {
	cfg, err := gclflow.LoadConfig(f.config, f.envFiles...)
	if err != nil {
		return cfg, nil, err
	}
	if f.expID != "" {
		cfg.ExpID = f.expID
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return cfg, nil, err
	}
	return cfg, logging.New("gclflow").With("command", cmd.Name()), nil
}

// open is load followed by NewRuntime.
func (f *rootFlags) open(cmd *cobra.Command) (*gclflow.Runtime, *slog.Logger, error) {
	cfg, logger, err := f.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	rt, err := gclflow.NewRuntime(cmd.Context(), cfg, gclflow.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return rt, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gclflow %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	}
}
