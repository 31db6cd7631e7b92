package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/report"
	"github.com/maistodos/credit-forecast/pkg/seasonality"
	"github.com/maistodos/credit-forecast/pkg/warehouse"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadJobsYAML(t *testing.T) {
	path := writeFile(t, "jobs.yaml", `
jobs:
  - name: aggregate
    end: "2026-12-31"
    target_split: portfolio
    targets:
      "2026": "200000000"
  - name: parcelex-only
    layout: per-lender
    grouping: lender
    current_excluded_lenders: [" upp ", "nupay"]
    key: forecasts/parcelex.csv
`)
	jobs, err := LoadJobs(path, pipeline.DefaultJobs())
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	aggregate := jobs[0]
	assert.Equal(t, pipeline.AggregateJobName, aggregate.Name)
	assert.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), aggregate.End)
	assert.Equal(t, seasonality.SplitPortfolio, aggregate.TargetSplit)
	assert.Equal(t, []int{2026}, aggregate.Targets.Years())
	// untouched fields keep the built-in values
	assert.Equal(t, report.LayoutAggregate, aggregate.Layout)
	assert.Equal(t, []string{"dr cash parcelex"}, aggregate.Query.Context.LegacyExcludedLenders)

	assert.Equal(t, pipeline.PerLenderJobName, jobs[1].Name)

	custom := jobs[2]
	assert.Equal(t, "parcelex-only", custom.Name)
	assert.Equal(t, warehouse.GroupLender, custom.Query.Context.Grouping)
	assert.Equal(t, []string{"upp", "nupay"}, custom.Query.Context.CurrentExcludedLenders)
	assert.Equal(t, pipeline.DefaultBucket, custom.Destination.Bucket)
	assert.Equal(t, "forecasts/parcelex.csv", custom.Destination.Key)
	assert.Equal(t, warehouse.DefaultQueryTemplate, custom.Query.Template)
}

func TestLoadJobsJSONQueryTemplateFile(t *testing.T) {
	tmpl := writeFile(t, "query.sql", "select dt_merge, vlr_total from {| .Table |}")
	path := writeFile(t, "jobs.json", `{"jobs": [{"name": "aggregate", "table": "sandbox.credit", "query_template_file": "`+tmpl+`", "holiday_country": ""}]}`)

	jobs, err := LoadJobs(path, pipeline.DefaultJobs())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "", jobs[0].Forecast.HolidayCountry)

	query, err := jobs[0].Query.Render()
	require.NoError(t, err)
	assert.Equal(t, "select dt_merge, vlr_total from sandbox.credit", query)
}

func TestLoadJobsErrors(t *testing.T) {
	tests := map[string]struct {
		content string
		err     string
	}{
		"missing name": {
			content: "jobs:\n  - layout: aggregate\n",
			err:     "every job needs a name",
		},
		"bad date": {
			content: "jobs:\n  - name: aggregate\n    end: 31/12/2026\n",
			err:     "invalid end",
		},
		"bad layout": {
			content: "jobs:\n  - name: aggregate\n    layout: wide\n",
			err:     `invalid layout "wide"`,
		},
		"new job without key": {
			content: "jobs:\n  - name: extra\n",
			err:     "destination bucket and key must be set",
		},
		"bad target": {
			content: "jobs:\n  - name: aggregate\n    targets:\n      \"2026\": lots\n",
			err:     `invalid target amount "lots"`,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "jobs.yaml", tt.content)
			_, err := LoadJobs(path, pipeline.DefaultJobs())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}

	_, err := LoadJobs(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestCompleteLoadsJobsFile(t *testing.T) {
	cfg := validConfig()
	cfg.JobsFile = writeFile(t, "jobs.yaml", "jobs:\n  - name: aggregate\n    bucket: sandbox-bucket\n")
	require.NoError(t, cfg.Complete())
	assert.Equal(t, "sandbox-bucket", cfg.Jobs[0].Destination.Bucket)
	assert.NoError(t, cfg.Validate())
}
