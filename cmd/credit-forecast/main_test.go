package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maistodos/credit-forecast/pkg/config"
)

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func execute(t *testing.T, args ...string) (string, error) {
	for env := range config.EnvFlags {
		unsetEnv(t, env)
	}
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--env-file", "", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestJobsCommand(t *testing.T) {
	out, err := execute(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "aggregate")
	assert.Contains(t, out, "per-lender")
	assert.Contains(t, out, "2024=105000000,2025=145000000")
	assert.Contains(t, out, "s3://todos-data-lake-external-source/source=csv/database=business-analytics/forecast_credito_pf/forecast_credito.csv")
	assert.Contains(t, out, "2025-12-31")
}

func TestJobsCommandWithJobsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: upp-only
    layout: per-lender
    grouping: lender
    key: forecasts/upp.csv
`), 0600))

	out, err := execute(t, "--jobs-file", path, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "upp-only")
	assert.Contains(t, out, "s3://todos-data-lake-external-source/forecasts/upp.csv")
}

func TestRenderQueryCommand(t *testing.T) {
	tests := map[string]struct {
		args     []string
		contains []string
		err      string
	}{
		"per lender": {
			args:     []string{"render-query", "per-lender"},
			contains: []string{"financiadoras", "'dr cash parcelex'", "date('2024-12-31')"},
		},
		"aggregate": {
			args:     []string{"render-query", "aggregate"},
			contains: []string{"dt_merge", "vlr_total"},
		},
		"unknown job": {
			args: []string{"render-query", "nope"},
			err:  `unknown job "nope"`,
		},
		"missing job": {
			args: []string{"render-query"},
			err:  "accepts 1 arg(s), received 0",
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestRunCommandValidation(t *testing.T) {
	tests := map[string]struct {
		args []string
		env  map[string]string
		err  string
	}{
		"unknown job": {
			args: []string{"run", "nope"},
			err:  `unknown job "nope", known jobs: [aggregate per-lender]`,
		},
		"athena without output location": {
			args: []string{"run"},
			err:  "athena output location must be set",
		},
		"presto without host": {
			args: []string{"run", "--engine", "presto"},
			err:  "presto host must be set for the presto engine",
		},
		"engine from prefixed env": {
			args: []string{"run"},
			env:  map[string]string{"CREDIT_FORECAST_ENGINE": "bogus"},
			err:  `unknown warehouse engine "bogus"`,
		},
		"half storage key pair": {
			args: []string{"run", "--athena-output-location", "s3://athena/"},
			env:  map[string]string{"AWS_ACCESS_KEY_ID_BUSINESS_ANALYTICS": "AKIA"},
			err:  "storage access key id and secret access key must be set together",
		},
		"invalid log format": {
			args: []string{"--log-format", "xml", "run"},
			err:  `invalid log format "xml"`,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			unsetEnv(t, "CREDIT_FORECAST_ENGINE")
			args := tt.args
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			// execute clears the well known variables, so they go through an env file
			if v, ok := tt.env["AWS_ACCESS_KEY_ID_BUSINESS_ANALYTICS"]; ok {
				path := filepath.Join(t.TempDir(), "test.env")
				require.NoError(t, os.WriteFile(path, []byte("AWS_ACCESS_KEY_ID_BUSINESS_ANALYTICS="+v+"\n"), 0600))
				args = append([]string{"--env-file", path}, args...)
			}
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestEnvFileProvidesAthenaOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ATHENA_OUTPUT=s3://athena-results/\nAWS_ACCESS_KEY_ID=AKIA\n"), 0600))

	_, err := execute(t, "--env-file", path, "run")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "athena output location must be set")
	assert.Contains(t, err.Error(), "warehouse access key id and secret access key must be set together")
}
