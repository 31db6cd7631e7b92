package pipeline

import (
	"fmt"
	"time"

	"github.com/maistodos/credit-forecast/pkg/forecast"
	"github.com/maistodos/credit-forecast/pkg/report"
	"github.com/maistodos/credit-forecast/pkg/seasonality"
	"github.com/maistodos/credit-forecast/pkg/util/slice"
	"github.com/maistodos/credit-forecast/pkg/warehouse"
)

const (
	AggregateJobName = "aggregate"
	PerLenderJobName = "per-lender"

	DefaultBucket = "todos-data-lake-external-source"
)

// Job is one forecast table: which history to query, how to forecast it
// and where to publish it.
type Job struct {
	Name   string
	Layout report.Layout
	Query  warehouse.Query

	Forecast forecast.Options
	// End is the last day forecasts are produced for.
	End time.Time

	Targets     seasonality.Targets
	TargetSplit seasonality.Split

	Destination report.Destination
}

var perLenderExcludedLenders = []string{"dr cash parcelex", "upp", "b2e legado", "losango", "nupay", "openco", "dr cash"}

// DefaultJobs returns the portfolio forecast and the per lender forecast.
func DefaultJobs() []Job {
	return []Job{
		{
			Name:        AggregateJobName,
			Layout:      report.LayoutAggregate,
			Query:       warehouse.DefaultQuery(warehouse.GroupNone, []string{"dr cash parcelex"}, []string{"dr cash parcelex"}),
			Forecast:    forecast.DefaultOptions(),
			End:         forecast.DefaultEnd,
			Targets:     seasonality.DefaultTargets(),
			TargetSplit: seasonality.SplitSeries,
			Destination: report.Destination{
				Bucket: DefaultBucket,
				Key:    "source=csv/database=business-analytics/forecast_credito_pf/forecast_credito.csv",
			},
		},
		{
			Name:   PerLenderJobName,
			Layout: report.LayoutPerLender,
			Query: warehouse.DefaultQuery(
				warehouse.GroupLender,
				slice.CopyStrings(perLenderExcludedLenders),
				// the current funnel list repeats 'dr cash parcelex'
				append([]string{"dr cash parcelex"}, perLenderExcludedLenders...),
			),
			Forecast:    forecast.DefaultOptions(),
			End:         forecast.DefaultEnd,
			Targets:     seasonality.DefaultTargets(),
			TargetSplit: seasonality.SplitSeries,
			Destination: report.Destination{
				Bucket: DefaultBucket,
				Key:    "source=csv/database=business-analytics/forecast_product_credito_pf/forecast_product_credito.csv",
			},
		},
	}
}

func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name must be set")
	}
	if err := j.Layout.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if err := j.Query.Context.Grouping.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if j.Layout == report.LayoutAggregate && j.Query.Context.Grouped() {
		return fmt.Errorf("job %s: the aggregate layout needs an ungrouped query", j.Name)
	}
	if err := j.Forecast.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if err := j.TargetSplit.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if err := j.Destination.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	return nil
}

// SelectJobs returns the jobs with the given names in the order given, or
// every job when names is empty.
func SelectJobs(jobs []Job, names []string) ([]Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	var known []string
	for _, j := range jobs {
		known = append(known, j.Name)
	}
	var selected []Job
	for _, name := range names {
		if !slice.ContainsString(known, name, nil) {
			return nil, fmt.Errorf("unknown job %q, known jobs: %v", name, known)
		}
		for _, j := range jobs {
			if j.Name == name {
				selected = append(selected, j)
			}
		}
	}
	return selected, nil
}
