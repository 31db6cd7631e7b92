package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/maistodos/credit-forecast/pkg/pipeline"
)

type runOptions struct {
	pipeline.Options
	PushgatewayURL string
}

func newRunCmd(o *options) *cobra.Command {
	var ro runOptions
	cmd := &cobra.Command{
		Use:   "run [job...]",
		Short: "runs the named jobs, or every job, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args, ro)
		},
	}
	cmd.Flags().BoolVar(&ro.DryRun, "dry-run", false, "build the reports without uploading them")
	cmd.Flags().StringVar(&ro.OutputDir, "output-dir", "", "also write each report to <output-dir>/<job>.csv")
	cmd.Flags().StringVar(&ro.PushgatewayURL, "pushgateway-url", "", "push the run metrics to this Prometheus Pushgateway when set")
	return cmd
}

func (o *options) run(cmd *cobra.Command, names []string, ro runOptions) error {
	jobs, err := pipeline.SelectJobs(o.cfg.Jobs, names)
	if err != nil {
		return err
	}
	runner, closeSource, err := o.newRunner(ro.Options)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx := setupSignals(o.logger)
	results, runErr := runner.RunAll(ctx, jobs)
	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\t%s\n", res.Job, res.Rows, publishedTo(o, res))
	}

	if ro.PushgatewayURL != "" {
		if err := pushMetrics(ro.PushgatewayURL); err != nil {
			o.logger.WithError(err).Warn("unable to push metrics")
		}
	}
	return runErr
}

func publishedTo(o *options, res *pipeline.Result) string {
	if !res.Published {
		return "not published"
	}
	for _, j := range o.cfg.Jobs {
		if j.Name == res.Job {
			return j.Destination.String()
		}
	}
	return "published"
}

func pushMetrics(url string) error {
	pusher := push.New(url, "credit_forecast")
	for _, c := range pipeline.Collectors() {
		pusher = pusher.Collector(c)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
