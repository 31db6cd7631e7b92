// Package warehouse fetches the historical credit table from the analytical
// warehouse.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maistodos/credit-forecast/pkg/credit"
	"github.com/maistodos/credit-forecast/pkg/presto"
)

//go:generate mockgen -destination=mock/mock_queryer.go -package=mock github.com/maistodos/credit-forecast/pkg/warehouse Queryer

// Queryer executes a SELECT and returns every row. Implementations are the
// Athena and Presto clients.
type Queryer interface {
	Query(ctx context.Context, query string) ([]presto.Row, error)
}

// Query is a rendered-on-demand history query.
type Query struct {
	Template string
	Context  QueryTemplateContext
}

// DefaultQuery returns the history query for grouping with the given
// exclusion lists.
func DefaultQuery(grouping Grouping, legacyExcluded, currentExcluded []string) Query {
	return Query{
		Template: DefaultQueryTemplate,
		Context: QueryTemplateContext{
			Table:                  DefaultTable,
			Grouping:               grouping,
			LenderColumn:           DefaultLenderColumn,
			FunnelStage:            DefaultFunnelStage,
			AlternateValueLender:   DefaultAlternateValueLender,
			LegacyExcludedLenders:  legacyExcluded,
			CurrentExcludedLenders: currentExcluded,
			LegacyEnd:              DefaultLegacyEnd,
			CurrentStart:           DefaultCurrentStart,
		},
	}
}

func (q Query) Render() (string, error) {
	if err := q.Context.Grouping.Validate(); err != nil {
		return "", err
	}
	return RenderQuery(q.Template, q.Context)
}

// errNullValue marks a row whose value column is NULL. Such rows carry no
// observation and are dropped from the history.
var errNullValue = errors.New("null value")

// Connect opens a warehouse session.
type Connect func() (Queryer, error)

// Client turns warehouse rows into historical records.
type Client struct {
	queryer Queryer
	connect Connect
	logger  log.FieldLogger
}

// NewClient returns a Client running every query on queryer.
func NewClient(logger log.FieldLogger, queryer Queryer) *Client {
	return &Client{
		queryer: queryer,
		logger:  logger.WithField("component", "warehouse"),
	}
}

// NewSessionClient returns a Client that opens a session with connect for
// each Fetch and closes it once the rows are read.
func NewSessionClient(logger log.FieldLogger, connect Connect) *Client {
	return &Client{
		connect: connect,
		logger:  logger.WithField("component", "warehouse"),
	}
}

// Fetch renders and runs q, returning one record per date, and per lender
// when grouped, with duplicate keys summed.
func (c *Client) Fetch(ctx context.Context, q Query) ([]credit.HistoricalRecord, error) {
	sql, err := q.Render()
	if err != nil {
		return nil, err
	}
	queryer, release, err := c.session()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	rows, err := queryer.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit history: %w", err)
	}

	records := make([]credit.HistoricalRecord, 0, len(rows))
	var skipped int
	for i, row := range rows {
		record, err := convertRow(row, q.Context)
		if errors.Is(err, errNullValue) {
			c.logger.WithFields(log.Fields{"row": i, "date": row[DateColumn], "lender": record.Lender}).Debugf("skipping row with null %s", ValueColumn)
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("invalid row %d: %w", i, err)
		}
		records = append(records, record)
	}
	records = credit.Aggregate(records)

	logger := c.logger.WithFields(log.Fields{
		"rows":     len(rows),
		"records":  len(records),
		"duration": time.Since(start),
	})
	if skipped > 0 {
		logger = logger.WithField("skipped", skipped)
		logger.Warnf("skipped %d rows with null %s", skipped, ValueColumn)
	}
	logger.Info("fetched credit history")
	return records, nil
}

func convertRow(row presto.Row, tmplCtx QueryTemplateContext) (credit.HistoricalRecord, error) {
	var record credit.HistoricalRecord

	date, err := dateValue(row[DateColumn])
	if err != nil {
		return record, fmt.Errorf("column %s: %w", DateColumn, err)
	}
	record.Date = date

	if tmplCtx.Grouped() {
		switch lender := row[tmplCtx.LenderColumn].(type) {
		case string:
			record.Lender = lender
		case []byte:
			record.Lender = string(lender)
		default:
			return record, fmt.Errorf("column %s: unexpected type %T", tmplCtx.LenderColumn, lender)
		}
	}

	value, err := floatValue(row[ValueColumn])
	if err != nil {
		return record, fmt.Errorf("column %s: %w", ValueColumn, err)
	}
	record.Value = value
	return record, nil
}

func dateValue(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return credit.Day(d), nil
	case string:
		t, err := time.Parse(presto.DateFormat, d)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	case []byte:
		return dateValue(string(d))
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", v)
	}
}

func floatValue(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case nil:
		return 0, errNullValue
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func (c *Client) session() (Queryer, func(), error) {
	if c.connect == nil {
		return c.queryer, func() {}, nil
	}
	queryer, err := c.connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open warehouse session: %w", err)
	}
	release := func() {
		if closer, ok := queryer.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.WithError(err).Warn("unable to close warehouse session")
			}
		}
	}
	return queryer, release, nil
}

// Close releases the queryer given to NewClient when it holds a connection.
func (c *Client) Close() error {
	if closer, ok := c.queryer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
