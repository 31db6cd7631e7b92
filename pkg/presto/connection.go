package presto

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/prestodb/presto-go-client/presto"
	log "github.com/sirupsen/logrus"

	"github.com/maistodos/credit-forecast/pkg/db"
)

const defaultUser = "credit-forecast"

// ConnConfig addresses a Presto coordinator.
type ConnConfig struct {
	Host    string
	User    string
	Catalog string
	Schema  string
}

// DSN builds the presto-go-client data source name.
func (c ConnConfig) DSN() string {
	user := c.User
	if user == "" {
		user = defaultUser
	}
	q := url.Values{}
	if c.Catalog != "" {
		q.Set("catalog", c.Catalog)
	}
	if c.Schema != "" {
		q.Set("schema", c.Schema)
	}
	dsn := fmt.Sprintf("http://%s@%s", url.PathEscape(user), c.Host)
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}

// Queryer runs SELECT statements against Presto and materializes the rows.
type Queryer struct {
	queryer db.Queryer
}

// NewQueryer opens a Presto database handle. sql.Open does not contact the
// coordinator; the first query does.
func NewQueryer(logger log.FieldLogger, cfg ConnConfig, logQueries bool) (*Queryer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("presto host must be set")
	}
	conn, err := sql.Open("presto", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open presto connection: %w", err)
	}
	return &Queryer{queryer: db.NewLoggingQueryer(conn, logger, logQueries)}, nil
}

// NewQueryerFrom wraps an existing db.Queryer.
func NewQueryerFrom(queryer db.Queryer) *Queryer {
	return &Queryer{queryer: queryer}
}

func (q *Queryer) Query(ctx context.Context, query string) ([]Row, error) {
	return ExecuteSelect(ctx, q.queryer, query)
}

func (q *Queryer) Close() error {
	return q.queryer.Close()
}
