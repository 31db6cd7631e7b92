package main

import (
	"github.com/spf13/cobra"

	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/scheduler"
)

func newScheduleCmd(o *options) *cobra.Command {
	var (
		cfg  scheduler.Config
		opts pipeline.Options
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "runs every job on a cron schedule and serves /metrics and /healthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, closeSource, err := o.newRunner(opts)
			if err != nil {
				return err
			}
			defer closeSource()

			s, err := scheduler.New(o.logger, runner, o.cfg.Jobs, cfg)
			if err != nil {
				return err
			}
			return s.Run(setupSignals(o.logger))
		},
	}
	cmd.Flags().StringVar(&cfg.Schedule, "schedule", scheduler.DefaultSchedule, "five field cron expression, evaluated in UTC")
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen-addr", ":8080", "the address the health and metrics server listens on")
	cmd.Flags().BoolVar(&cfg.RunOnStart, "run-on-start", false, "run the jobs once at startup")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "build the reports without uploading them")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "also write each report to <output-dir>/<job>.csv")
	return cmd
}
