package helpers

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// LogOptions controls the logger built by SetupLogger.
type LogOptions struct {
	Level            string
	Format           string
	FullTimestamp    bool
	DisableTimestamp bool
}

// SetupLogger configures the standard logrus logger and returns an entry
// carrying fields.
func SetupLogger(opts LogOptions, fields log.Fields) (log.FieldLogger, error) {
	logLevel, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	logger := log.StandardLogger()
	switch opts.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:    opts.FullTimestamp,
			DisableTimestamp: opts.DisableTimestamp,
		})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{
			DisableTimestamp: opts.DisableTimestamp,
		})
	default:
		return nil, fmt.Errorf("invalid log format %q, must be text or json", opts.Format)
	}
	logger.SetLevel(logLevel)

	entry := logger.WithFields(fields)
	entry.Debugf("setting log level to %s", logLevel.String())
	return entry, nil
}

// MapEnvVarToFlag sets each flag named in vars from the environment variable
// it is keyed by, unless the flag was already set.
// see: https://github.com/spf13/viper/issues/461
func MapEnvVarToFlag(vars map[string]string, flagset *pflag.FlagSet) error {
	for env, flag := range vars {
		flagObj := flagset.Lookup(flag)
		if flagObj == nil {
			return fmt.Errorf("the %s flag doesn't exist", flag)
		}
		if flagObj.Changed {
			continue
		}
		if val := os.Getenv(env); val != "" {
			if err := flagset.Set(flag, val); err != nil {
				return fmt.Errorf("failed to set the %s flag from %s: %w", flag, env, err)
			}
		}
	}
	return nil
}

// SetFlagsFromEnv sets every flag of fs that was not given on the command
// line from the environment variable PREFIX_FLAG_NAME, where FLAG_NAME is the
// flag name upper cased with dashes replaced by underscores.
func SetFlagsFromEnv(fs *pflag.FlagSet, prefix string) (err error) {
	alreadySet := make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) {
		alreadySet[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		if alreadySet[f.Name] {
			return
		}
		key := EnvName(prefix, f.Name)
		if val := os.Getenv(key); val != "" {
			if serr := fs.Set(f.Name, val); serr != nil {
				err = fmt.Errorf("invalid value %q for %s: %w", val, key, serr)
			}
		}
	})
	return err
}

// EnvName is the environment variable SetFlagsFromEnv reads for flag.
func EnvName(prefix, flag string) string {
	return prefix + "_" + strings.ToUpper(strings.Replace(flag, "-", "_", -1))
}
