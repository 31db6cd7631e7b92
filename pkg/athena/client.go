// Package athena runs warehouse queries through the AWS Athena API and
// materializes the result set in memory.
package athena

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	awsclient "github.com/maistodos/credit-forecast/pkg/aws"
	"github.com/maistodos/credit-forecast/pkg/presto"
)

const (
	defaultWorkgroup    = "primary"
	defaultPollInterval = time.Second
)

// ErrQueryFailed is returned when Athena reports the execution as FAILED or
// CANCELLED.
var ErrQueryFailed = errors.New("athena query did not succeed")

// Config controls where query results are staged and how often the
// execution status is polled.
type Config struct {
	OutputLocation string
	Workgroup      string
	Database       string
	PollInterval   time.Duration
	LogQueries     bool
}

type Client struct {
	api    athenaiface.AthenaAPI
	cfg    Config
	logger log.FieldLogger
}

// NewClient builds an Athena client from the warehouse credentials.
func NewClient(logger log.FieldLogger, creds awsclient.Credentials, cfg Config) (*Client, error) {
	if cfg.OutputLocation == "" {
		return nil, fmt.Errorf("athena output location must be set")
	}
	sess, err := awsclient.NewSession(creds)
	if err != nil {
		return nil, err
	}
	return NewClientWithAPI(logger, athena.New(sess), cfg), nil
}

func NewClientWithAPI(logger log.FieldLogger, api athenaiface.AthenaAPI, cfg Config) *Client {
	if cfg.Workgroup == "" {
		cfg.Workgroup = defaultWorkgroup
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger.WithField("component", "athena"),
	}
}

// Query submits the statement, waits for a terminal state and reads every
// result page. If ctx is cancelled while waiting, the execution is stopped.
func (c *Client) Query(ctx context.Context, query string) ([]presto.Row, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(query),
		WorkGroup:   aws.String(c.cfg.Workgroup),
		ResultConfiguration: &athena.ResultConfiguration{
			OutputLocation: aws.String(c.cfg.OutputLocation),
		},
	}
	if c.cfg.Database != "" {
		input.QueryExecutionContext = &athena.QueryExecutionContext{Database: aws.String(c.cfg.Database)}
	}
	if c.cfg.LogQueries {
		c.logger.Debugf("QUERY: %s", strings.Join(strings.Fields(query), " "))
	}

	start := time.Now()
	out, err := c.api.StartQueryExecutionWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("unable to start athena query: %w", err)
	}
	id := aws.StringValue(out.QueryExecutionId)
	logger := c.logger.WithField("queryExecutionID", id)
	logger.Infof("started athena query")

	if err := c.waitForCompletion(ctx, logger, id); err != nil {
		return nil, err
	}
	logger.Infof("athena query succeeded after %s", time.Since(start))

	rows, err := c.readResults(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Debugf("read %d rows", len(rows))
	return rows, nil
}

func (c *Client) waitForCompletion(ctx context.Context, logger log.FieldLogger, id string) error {
	var (
		state  string
		reason string
	)
	err := wait.PollUntilContextCancel(ctx, c.cfg.PollInterval, true, func(ctx context.Context) (bool, error) {
		out, err := c.api.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(id),
		})
		if err != nil {
			return false, fmt.Errorf("unable to get athena query status: %w", err)
		}
		if out.QueryExecution == nil || out.QueryExecution.Status == nil {
			return false, nil
		}
		state = aws.StringValue(out.QueryExecution.Status.State)
		reason = aws.StringValue(out.QueryExecution.Status.StateChangeReason)
		switch state {
		case athena.QueryExecutionStateSucceeded, athena.QueryExecutionStateFailed, athena.QueryExecutionStateCancelled:
			return true, nil
		}
		logger.Debugf("athena query is %s", state)
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			c.stop(logger, id)
		}
		return err
	}
	if state != athena.QueryExecutionStateSucceeded {
		return fmt.Errorf("%w: query %s is %s: %s", ErrQueryFailed, id, state, reason)
	}
	return nil
}

// stop cancels the execution server side. It uses a fresh context since the
// caller's is already done.
func (c *Client) stop(logger log.FieldLogger, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.api.StopQueryExecutionWithContext(ctx, &athena.StopQueryExecutionInput{
		QueryExecutionId: aws.String(id),
	})
	if err != nil {
		logger.WithError(err).Warn("unable to stop athena query")
	}
}

func (c *Client) readResults(ctx context.Context, id string) ([]presto.Row, error) {
	var (
		rows     []presto.Row
		columns  []*athena.ColumnInfo
		firstRow = true
		convErr  error
	)
	err := c.api.GetQueryResultsPagesWithContext(ctx, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(id),
	}, func(page *athena.GetQueryResultsOutput, lastPage bool) bool {
		if page.ResultSet == nil {
			return !lastPage
		}
		if columns == nil && page.ResultSet.ResultSetMetadata != nil {
			columns = page.ResultSet.ResultSetMetadata.ColumnInfo
		}
		for _, r := range page.ResultSet.Rows {
			// the first row of a SELECT result holds the column labels
			if firstRow {
				firstRow = false
				continue
			}
			row, err := convertRow(columns, r)
			if err != nil {
				convErr = err
				return false
			}
			rows = append(rows, row)
		}
		return !lastPage
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read athena query results: %w", err)
	}
	if convErr != nil {
		return nil, convErr
	}
	return rows, nil
}

func convertRow(columns []*athena.ColumnInfo, r *athena.Row) (presto.Row, error) {
	if len(r.Data) != len(columns) {
		return nil, fmt.Errorf("athena row has %d values, expected %d columns", len(r.Data), len(columns))
	}
	row := make(presto.Row, len(columns))
	for i, col := range columns {
		name := aws.StringValue(col.Name)
		val, err := convertValue(aws.StringValue(col.Type), r.Data[i].VarCharValue)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		row[name] = val
	}
	return row, nil
}

// convertValue types an Athena VARCHAR datum from the column type. DECIMAL
// and VARCHAR values stay strings.
func convertValue(typ string, v *string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	s := *v
	switch strings.ToLower(typ) {
	case "date":
		return time.Parse(presto.DateFormat, s)
	case "timestamp":
		return time.Parse("2006-01-02 15:04:05.000", s)
	case "double", "float", "real":
		return strconv.ParseFloat(s, 64)
	case "tinyint", "smallint", "integer", "int", "bigint":
		return strconv.ParseInt(s, 10, 64)
	case "boolean":
		return strconv.ParseBool(s)
	default:
		return s, nil
	}
}
