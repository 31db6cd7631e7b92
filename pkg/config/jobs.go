package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/maistodos/credit-forecast/pkg/forecast"
	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/presto"
	"github.com/maistodos/credit-forecast/pkg/report"
	"github.com/maistodos/credit-forecast/pkg/seasonality"
	"github.com/maistodos/credit-forecast/pkg/util/slice"
	"github.com/maistodos/credit-forecast/pkg/warehouse"
)

// JobSpec is a job as written in a jobs file. Unset fields keep the value of
// the built-in job with the same name, or the defaults for new jobs.
type JobSpec struct {
	Name     string  `mapstructure:"name"`
	Layout   *string `mapstructure:"layout"`
	Grouping *string `mapstructure:"grouping"`

	Table                  *string  `mapstructure:"table"`
	QueryTemplate          *string  `mapstructure:"query_template"`
	QueryTemplateFile      *string  `mapstructure:"query_template_file"`
	LegacyExcludedLenders  []string `mapstructure:"legacy_excluded_lenders"`
	CurrentExcludedLenders []string `mapstructure:"current_excluded_lenders"`
	AlternateValueLender   *string  `mapstructure:"alternate_value_lender"`
	LegacyEnd              *string  `mapstructure:"legacy_end"`
	CurrentStart           *string  `mapstructure:"current_start"`

	End            *string  `mapstructure:"end"`
	IntervalWidth  *float64 `mapstructure:"interval_width"`
	HolidayCountry *string  `mapstructure:"holiday_country"`

	Targets     map[string]string `mapstructure:"targets"`
	TargetSplit *string           `mapstructure:"target_split"`

	Bucket *string `mapstructure:"bucket"`
	Key    *string `mapstructure:"key"`
}

type jobsFile struct {
	Jobs []JobSpec `mapstructure:"jobs"`
}

// LoadJobs reads a YAML, JSON or TOML jobs file and applies it on top of
// base. Jobs named like a base job override it, others are appended.
func LoadJobs(path string, base []pipeline.Job) ([]pipeline.Job, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	var file jobsFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jobs file: %w", err)
	}

	jobs := make([]pipeline.Job, len(base))
	copy(jobs, base)
	for _, spec := range file.Jobs {
		if spec.Name == "" {
			return nil, fmt.Errorf("jobs file %s: every job needs a name", path)
		}
		idx := -1
		for i, j := range jobs {
			if j.Name == spec.Name {
				idx = i
				break
			}
		}
		var job pipeline.Job
		if idx >= 0 {
			job = jobs[idx]
		} else {
			job = newJob(spec.Name)
		}
		if err := spec.apply(&job); err != nil {
			return nil, fmt.Errorf("jobs file %s: job %s: %w", path, spec.Name, err)
		}
		if idx >= 0 {
			jobs[idx] = job
		} else {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func newJob(name string) pipeline.Job {
	return pipeline.Job{
		Name:        name,
		Layout:      report.LayoutAggregate,
		Query:       warehouse.DefaultQuery(warehouse.GroupNone, nil, nil),
		Forecast:    forecast.DefaultOptions(),
		End:         forecast.DefaultEnd,
		Targets:     seasonality.DefaultTargets(),
		TargetSplit: seasonality.SplitSeries,
		Destination: report.Destination{Bucket: pipeline.DefaultBucket},
	}
}

func (s JobSpec) apply(job *pipeline.Job) error {
	q := &job.Query.Context
	if s.Layout != nil {
		job.Layout = report.Layout(*s.Layout)
	}
	if s.Grouping != nil {
		q.Grouping = warehouse.Grouping(*s.Grouping)
	}
	if s.Table != nil {
		q.Table = *s.Table
	}
	if s.QueryTemplate != nil {
		job.Query.Template = *s.QueryTemplate
	}
	if s.QueryTemplateFile != nil {
		b, err := os.ReadFile(*s.QueryTemplateFile)
		if err != nil {
			return fmt.Errorf("unable to read query template: %w", err)
		}
		job.Query.Template = string(b)
	}
	if s.LegacyExcludedLenders != nil {
		q.LegacyExcludedLenders = slice.TrimStrings(s.LegacyExcludedLenders)
	}
	if s.CurrentExcludedLenders != nil {
		q.CurrentExcludedLenders = slice.TrimStrings(s.CurrentExcludedLenders)
	}
	if s.AlternateValueLender != nil {
		q.AlternateValueLender = *s.AlternateValueLender
	}

	dates := []struct {
		value *string
		dst   *time.Time
		name  string
	}{
		{s.LegacyEnd, &q.LegacyEnd, "legacy_end"},
		{s.CurrentStart, &q.CurrentStart, "current_start"},
		{s.End, &job.End, "end"},
	}
	for _, d := range dates {
		if d.value == nil {
			continue
		}
		t, err := time.Parse(presto.DateFormat, *d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = t
	}

	if s.IntervalWidth != nil {
		job.Forecast.IntervalWidth = *s.IntervalWidth
	}
	if s.HolidayCountry != nil {
		job.Forecast.HolidayCountry = *s.HolidayCountry
	}
	if s.Targets != nil {
		targets, err := seasonality.ParseTargets(s.Targets)
		if err != nil {
			return err
		}
		job.Targets = targets
	}
	if s.TargetSplit != nil {
		job.TargetSplit = seasonality.Split(*s.TargetSplit)
	}
	if s.Bucket != nil {
		job.Destination.Bucket = *s.Bucket
	}
	if s.Key != nil {
		job.Destination.Key = *s.Key
	}
	return job.Validate()
}
