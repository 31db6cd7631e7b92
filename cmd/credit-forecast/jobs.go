package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/presto"
)

func newJobsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "lists the resolved job definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tLAYOUT\tGROUPING\tEND\tTARGETS\tSPLIT\tDESTINATION")
			for _, j := range o.cfg.Jobs {
				var targets []string
				for _, y := range j.Targets.Years() {
					targets = append(targets, fmt.Sprintf("%d=%s", y, j.Targets[y].String()))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					j.Name,
					j.Layout,
					j.Query.Context.Grouping,
					j.End.Format(presto.DateFormat),
					strings.Join(targets, ","),
					j.TargetSplit,
					j.Destination,
				)
			}
			return w.Flush()
		},
	}
}

func newRenderQueryCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "render-query <job>",
		Short: "prints the warehouse query of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := pipeline.SelectJobs(o.cfg.Jobs, args)
			if err != nil {
				return err
			}
			sql, err := jobs[0].Query.Render()
			if err != nil {
				return fmt.Errorf("job %s: %w", jobs[0].Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(sql))
			return nil
		},
	}
}
