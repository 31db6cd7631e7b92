package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Queryer is the subset of *sql.DB used to read from the warehouse.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close() error
}

type loggingQueryer struct {
	queryer    Queryer
	logger     log.FieldLogger
	logQueries bool
	now        func() time.Time
}

// NewLoggingQueryer wraps queryer so every submitted statement is logged at
// debug level when logQueries is set. Submission failures are always logged.
func NewLoggingQueryer(queryer Queryer, logger log.FieldLogger, logQueries bool) *loggingQueryer {
	return &loggingQueryer{
		queryer:    queryer,
		logger:     logger,
		logQueries: logQueries,
		now:        time.Now,
	}
}

func (q *loggingQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	logger := q.logger
	if q.logQueries {
		logger = logger.WithField("query", compactQuery(query))
		logger.Debugf("submitting query [%s]", argsString(args...))
	}
	start := q.now()
	rows, err := q.queryer.QueryContext(ctx, query, args...)
	if err != nil {
		logger.WithError(err).Errorf("query submission failed after %s", q.now().Sub(start))
		return nil, err
	}
	if q.logQueries {
		logger.Debugf("query submitted in %s", q.now().Sub(start))
	}
	return rows, nil
}

func (q *loggingQueryer) Close() error {
	return q.queryer.Close()
}

// compactQuery collapses whitespace so multi-line SQL fits on one log line.
func compactQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// argsString pretty prints arguments passed into it for logging query
// arguments
func argsString(args ...interface{}) string {
	parts := make([]string, 0, len(args))
	for i, a := range args {
		var v interface{} = a
		if x, ok := v.(driver.Valuer); ok {
			if y, err := x.Value(); err == nil {
				v = y
			}
		}
		switch v.(type) {
		case string, []byte:
			v = fmt.Sprintf("%q", v)
		default:
			v = fmt.Sprintf("%v", v)
		}
		parts = append(parts, fmt.Sprintf("%d:%s", i+1, v))
	}
	return strings.Join(parts, " ")
}
