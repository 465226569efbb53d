package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zoobzio/initz"
	"github.com/zoobzio/initz/export/pprofexport"
)

func newReportCommand(root *rootOptions) *cobra.Command {
	var (
		limit     int
		pprofPath string
	)

	cmd := &cobra.Command{
		Use:   "report <journal>",
		Short: "Replay a recorded journal and print the initialization report",
		Long: "Replay a JSON Lines journal of start/end notifications and print the ranked report.\n" +
			"Use - to read the journal from standard input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if limit > 0 {
				cfg.ReportLimit = limit
			}

			events, err := readJournal(cmd, args[0])
			if err != nil {
				return err
			}

			p, logger, err := newProfiler(cmd, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			if pprofPath != "" {
				handler := pprofHandler(pprofPath, logger)
				if cfg.Workers > 0 {
					p.OnReportAsync(handler)
				} else {
					p.OnReport(handler)
				}
			}

			if err := p.Replay(cmd.Context(), events); err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			logger.WithFields(logrus.Fields{
				"events": len(events),
				"spans":  p.Registry().Len(),
			}).Debug("journal replayed")

			p.OnAllComplete()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Entries per ranked list (overrides the config file)")
	cmd.Flags().StringVar(&pprofPath, "pprof", "", "Also write the span tree as a pprof profile to this file")
	return cmd
}

func readJournal(cmd *cobra.Command, path string) ([]initz.Event, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		defer f.Close()
		r = f
	}
	return initz.ReadEvents(r)
}

func pprofHandler(path string, logger logrus.FieldLogger) initz.ReportHandler {
	return func(report initz.Report) {
		log := logger.WithField("path", path)

		f, err := os.Create(path)
		if err != nil {
			log.WithError(err).Error("failed to create pprof file")
			return
		}
		defer f.Close()

		if err := pprofexport.Write(f, report.Records, report.GeneratedAt); err != nil {
			log.WithError(err).Error("failed to write pprof profile")
			return
		}
		log.Info("wrote pprof profile")
	}
}
