package presto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maistodos/credit-forecast/pkg/db"
)

const (
	// DateFormat is the layout of Presto DATE literals.
	DateFormat = "2006-01-02"
)

type Row map[string]interface{}

// Date renders t as a Presto DATE expression.
func Date(t time.Time) string {
	return fmt.Sprintf("date('%s')", t.UTC().Format(DateFormat))
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.Replace(s, "'", "''", -1) + "'"
}

// StringList renders values as a comma separated list of string literals,
// suitable for an IN (...) predicate. Values are kept in order, duplicates
// included.
func StringList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteString(v)
	}
	return strings.Join(quoted, ", ")
}

// ExecuteSelect runs the query and materializes every row, keyed by column
// name.
func ExecuteSelect(ctx context.Context, queryer db.Queryer, query string) ([]Row, error) {
	rows, err := queryer.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		// Create a slice of interface{}'s to represent each column,
		// and a second slice to contain pointers to each item in the columns slice.
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		m := make(Row, len(cols))
		for i, colName := range cols {
			m[colName] = columns[i]
		}
		results = append(results, m)
	}
	// Must inspect rows.Err() because Query() only submits the query, the
	// failure of the statement surfaces while iterating.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presto SQL error: %w", err)
	}

	return results, nil
}
