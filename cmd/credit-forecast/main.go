package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/maistodos/credit-forecast/cmd/helpers"
	"github.com/maistodos/credit-forecast/pkg/athena"
	awsclient "github.com/maistodos/credit-forecast/pkg/aws"
	"github.com/maistodos/credit-forecast/pkg/config"
	"github.com/maistodos/credit-forecast/pkg/pipeline"
	"github.com/maistodos/credit-forecast/pkg/presto"
	"github.com/maistodos/credit-forecast/pkg/warehouse"
)

// options is the state shared by every command.
type options struct {
	cfg    config.Config
	engine string
	log    helpers.LogOptions

	logger log.FieldLogger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &options{
		cfg: config.Default(),
		out: out,
	}
	o.engine = string(o.cfg.Warehouse.Engine)

	rootCmd := &cobra.Command{
		Use:           "credit-forecast",
		Short:         "forecasts credit origination and publishes the forecast tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.complete(cmd)
		},
	}
	rootCmd.SetOut(out)

	w := &o.cfg.Warehouse
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.log.Level, "log-level", log.InfoLevel.String(), "log level")
	flags.StringVar(&o.log.Format, "log-format", "text", "log format, text or json")
	flags.BoolVar(&o.log.FullTimestamp, "log-timestamp", true, "log full timestamp if true, otherwise log time since startup")
	flags.BoolVar(&o.log.DisableTimestamp, "disable-timestamp", false, "disable timestamp logging")

	flags.StringVar(&o.cfg.EnvFile, "env-file", o.cfg.EnvFile, "dotenv file loaded before reading the environment, ignored when the default is missing")
	flags.StringVar(&o.cfg.JobsFile, "jobs-file", "", "YAML, JSON or TOML file overriding or adding job definitions")

	flags.StringVar(&o.engine, "engine", o.engine, "warehouse engine, athena or presto")
	flags.StringVar(&w.AccessKeyID, "warehouse-access-key-id", "", "access key id used for the warehouse (AWS_ACCESS_KEY_ID)")
	flags.StringVar(&w.SecretAccessKey, "warehouse-secret-access-key", "", "secret access key used for the warehouse (AWS_SECRET_ACCESS_KEY)")
	flags.StringVar(&w.Region, "region", w.Region, "AWS region (AWS_REGION)")
	flags.StringVar(&w.OutputLocation, "athena-output-location", "", "S3 location Athena writes query results to (ATHENA_OUTPUT)")
	flags.StringVar(&w.Workgroup, "athena-workgroup", w.Workgroup, "Athena workgroup")
	flags.StringVar(&w.Database, "athena-database", "", "default Athena database for unqualified tables")
	flags.DurationVar(&w.PollInterval, "athena-poll-interval", w.PollInterval, "how often the Athena query state is polled")
	flags.StringVar(&w.PrestoHost, "presto-host", "", "the hostname:port for connecting to Presto")
	flags.StringVar(&w.PrestoUser, "presto-user", "", "the Presto user")
	flags.StringVar(&w.PrestoCatalog, "presto-catalog", "", "the Presto catalog")
	flags.StringVar(&w.PrestoSchema, "presto-schema", "", "the Presto schema")
	flags.BoolVar(&w.LogQueries, "log-queries", false, "log every warehouse query")

	s := &o.cfg.Storage
	flags.StringVar(&s.AccessKeyID, "storage-access-key-id", "", "access key id used for the upload (AWS_ACCESS_KEY_ID_BUSINESS_ANALYTICS)")
	flags.StringVar(&s.SecretAccessKey, "storage-secret-access-key", "", "secret access key used for the upload (AWS_SECRET_ACCESS_KEY_BUSINESS_ANALYTICS)")
	flags.StringVar(&s.Region, "storage-region", "", "region of the destination bucket, defaults to --region")
	flags.StringVar(&s.Endpoint, "storage-endpoint", "", "S3 endpoint override for S3 compatible stores")

	rootCmd.AddCommand(
		newRunCmd(o),
		newScheduleCmd(o),
		newJobsCmd(o),
		newRenderQueryCmd(o),
	)
	return rootCmd
}

// complete resolves the configuration from the environment, the env file and
// the jobs file, in that order, and builds the logger.
func (o *options) complete(cmd *cobra.Command) error {
	fs := cmd.Flags()
	if err := helpers.SetFlagsFromEnv(fs, config.EnvPrefix); err != nil {
		return fmt.Errorf("error setting flags from environment variables: %w", err)
	}
	if err := config.LoadEnvFile(o.cfg.EnvFile); err != nil {
		return err
	}
	// the env file may define prefixed variables as well
	if err := helpers.SetFlagsFromEnv(fs, config.EnvPrefix); err != nil {
		return fmt.Errorf("error setting flags from environment variables: %w", err)
	}
	if err := helpers.MapEnvVarToFlag(config.EnvFlags, fs); err != nil {
		return err
	}

	logger, err := helpers.SetupLogger(o.log, log.Fields{"app": "credit-forecast"})
	if err != nil {
		return err
	}
	o.logger = logger

	o.cfg.Warehouse.Engine = config.Engine(o.engine)
	if err := o.cfg.Complete(); err != nil {
		return err
	}
	config.Dump(o.logger, o.cfg)
	return nil
}

// newRunner builds the pipeline runner for the configured warehouse and
// destination bucket. The returned func releases the warehouse client.
func (o *options) newRunner(opts pipeline.Options) (*pipeline.Runner, func(), error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var source *warehouse.Client
	switch o.cfg.Warehouse.Engine {
	case config.EngineAthena:
		client, err := athena.NewClient(o.logger, o.cfg.WarehouseCredentials(), o.cfg.AthenaConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("unable to setup athena client: %w", err)
		}
		source = warehouse.NewClient(o.logger, client)
	case config.EnginePresto:
		prestoCfg := o.cfg.PrestoConfig()
		source = warehouse.NewSessionClient(o.logger, func() (warehouse.Queryer, error) {
			return presto.NewQueryer(o.logger, prestoCfg, o.cfg.Warehouse.LogQueries)
		})
	}
	closeSource := func() {
		if err := source.Close(); err != nil {
			o.logger.WithError(err).Warn("unable to close warehouse connection")
		}
	}

	publisher, err := awsclient.NewS3Publisher(o.logger, o.cfg.StorageCredentials())
	if err != nil {
		closeSource()
		return nil, nil, fmt.Errorf("unable to setup S3 publisher: %w", err)
	}
	return pipeline.NewRunner(o.logger, source, publisher, clock.RealClock{}, opts), closeSource, nil
}

func setupSignals(logger log.FieldLogger) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-sigs
		logger.Infof("got signal %s, performing shutdown", sig)
		cancel()
	}()
	return ctx
}

func main() {
	// globally set time to UTC
	time.Local = time.UTC

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.WithField("app", "credit-forecast").WithError(err).Error("credit-forecast failed")
		os.Exit(1)
	}
}
