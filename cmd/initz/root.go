package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zoobzio/initz"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "initz",
		Short:         "Initialization-time profiler",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides the config file)")

	cmd.AddCommand(
		newReportCommand(opts),
		newDemoCommand(opts),
	)
	return cmd
}

// load resolves the effective config from defaults, file and flags.
func (o *rootOptions) load() (initz.Config, error) {
	cfg := initz.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = initz.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// newProfiler builds a profiler that writes its report to the command output
// and logs to the command's error stream.
func newProfiler(cmd *cobra.Command, cfg initz.Config, extra ...initz.Option) (*initz.Profiler, *logrus.Logger, error) {
	logger := cfg.Logger()
	logger.SetOutput(cmd.ErrOrStderr())

	opts := append(cfg.Options(),
		initz.WithLogger(logger),
		initz.WithReportWriter(cmd.OutOrStdout()),
	)
	opts = append(opts, extra...)

	p := initz.New(opts...)
	if cfg.Workers > 0 {
		if err := p.EnableWorkerPool(cfg.Workers, cfg.QueueSize); err != nil {
			p.Close()
			return nil, nil, err
		}
	}
	return p, logger, nil
}
