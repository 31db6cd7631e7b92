// Package config holds the runtime configuration of credit-forecast: the
// warehouse and storage connections and the job definitions.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/maistodos/credit-forecast/pkg/athena"
	awsclient "github.com/maistodos/credit-forecast/pkg/aws"
	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/presto"
)

// EnvPrefix prefixes the environment fallback of every flag.
const EnvPrefix = "CREDIT_FORECAST"

const (
	DefaultRegion       = "us-east-1"
	DefaultWorkgroup    = "primary"
	DefaultPollInterval = time.Second
	DefaultEnvFile      = ".env"
)

// Engine is the warehouse backend queries run on.
type Engine string

const (
	EngineAthena Engine = "athena"
	EnginePresto Engine = "presto"
)

// EnvFlags maps the well known credential variables to the flags they set.
var EnvFlags = map[string]string{
	"AWS_ACCESS_KEY_ID":                        "warehouse-access-key-id",
	"AWS_SECRET_ACCESS_KEY":                    "warehouse-secret-access-key",
	"AWS_REGION":                               "region",
	"ATHENA_OUTPUT":                            "athena-output-location",
	"AWS_ACCESS_KEY_ID_BUSINESS_ANALYTICS":     "storage-access-key-id",
	"AWS_SECRET_ACCESS_KEY_BUSINESS_ANALYTICS": "storage-secret-access-key",
}

type WarehouseConfig struct {
	Engine          Engine
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// Athena
	OutputLocation string
	Workgroup      string
	Database       string
	PollInterval   time.Duration

	// Presto
	PrestoHost    string
	PrestoUser    string
	PrestoCatalog string
	PrestoSchema  string

	LogQueries bool
}

type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	// Region defaults to the warehouse region.
	Region   string
	Endpoint string
}

type Config struct {
	Warehouse WarehouseConfig
	Storage   StorageConfig

	EnvFile  string
	JobsFile string

	Jobs []pipeline.Job
}

// Default returns the configuration before any file, environment or flag is
// applied.
func Default() Config {
	return Config{
		Warehouse: WarehouseConfig{
			Engine:       EngineAthena,
			Region:       DefaultRegion,
			Workgroup:    DefaultWorkgroup,
			PollInterval: DefaultPollInterval,
		},
		EnvFile: DefaultEnvFile,
		Jobs:    pipeline.DefaultJobs(),
	}
}

// LoadEnvFile exports the variables of a dotenv file that are not already
// set in the environment. A missing default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && path == DefaultEnvFile {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("unable to load env file %s: %w", path, err)
	}
	return nil
}

// Complete fills values derived from other settings and loads the jobs file.
func (c *Config) Complete() error {
	if c.Storage.Region == "" {
		c.Storage.Region = c.Warehouse.Region
	}
	if c.JobsFile != "" {
		jobs, err := LoadJobs(c.JobsFile, c.Jobs)
		if err != nil {
			return err
		}
		c.Jobs = jobs
	}
	return nil
}

// Validate reports configuration errors before anything is contacted.
func (c Config) Validate() error {
	var errs []string
	w := c.Warehouse
	switch w.Engine {
	case EngineAthena:
		if w.OutputLocation == "" {
			errs = append(errs, "athena output location must be set (ATHENA_OUTPUT or --athena-output-location)")
		}
		if (w.AccessKeyID == "") != (w.SecretAccessKey == "") {
			errs = append(errs, "warehouse access key id and secret access key must be set together")
		}
	case EnginePresto:
		if w.PrestoHost == "" {
			errs = append(errs, "presto host must be set for the presto engine")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown warehouse engine %q, must be %q or %q", w.Engine, EngineAthena, EnginePresto))
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		errs = append(errs, "storage access key id and secret access key must be set together")
	}
	if len(c.Jobs) == 0 {
		errs = append(errs, "no jobs configured")
	}
	seen := make(map[string]bool)
	for _, j := range c.Jobs {
		if seen[j.Name] {
			errs = append(errs, fmt.Sprintf("duplicate job %q", j.Name))
		}
		seen[j.Name] = true
		if err := j.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) WarehouseCredentials() awsclient.Credentials {
	return awsclient.Credentials{
		AccessKeyID:     c.Warehouse.AccessKeyID,
		SecretAccessKey: c.Warehouse.SecretAccessKey,
		Region:          c.Warehouse.Region,
	}
}

func (c Config) StorageCredentials() awsclient.Credentials {
	region := c.Storage.Region
	if region == "" {
		region = c.Warehouse.Region
	}
	return awsclient.Credentials{
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
		Region:          region,
		Endpoint:        c.Storage.Endpoint,
	}
}

func (c Config) AthenaConfig() athena.Config {
	return athena.Config{
		OutputLocation: c.Warehouse.OutputLocation,
		Workgroup:      c.Warehouse.Workgroup,
		Database:       c.Warehouse.Database,
		PollInterval:   c.Warehouse.PollInterval,
		LogQueries:     c.Warehouse.LogQueries,
	}
}

func (c Config) PrestoConfig() presto.ConnConfig {
	return presto.ConnConfig{
		Host:    c.Warehouse.PrestoHost,
		User:    c.Warehouse.PrestoUser,
		Catalog: c.Warehouse.PrestoCatalog,
		Schema:  c.Warehouse.PrestoSchema,
	}
}

// Redacted returns a copy with secrets masked, for logging.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "<redacted>"
	}
	c.Warehouse.SecretAccessKey = mask(c.Warehouse.SecretAccessKey)
	c.Storage.SecretAccessKey = mask(c.Storage.SecretAccessKey)
	return c
}

// Dump logs the resolved configuration at debug level.
func Dump(logger log.FieldLogger, c Config) {
	r := c.Redacted()
	logger.Debugf("config: %s", spew.Sprintf("%+v", r.Warehouse))
	logger.Debugf("storage: %s", spew.Sprintf("%+v", r.Storage))
	for _, j := range r.Jobs {
		logger.WithField("job", j.Name).Debugf("job: layout=%s grouping=%s destination=%s end=%s split=%s",
			j.Layout, j.Query.Context.Grouping, j.Destination, j.End.Format(presto.DateFormat), j.TargetSplit)
	}
}
