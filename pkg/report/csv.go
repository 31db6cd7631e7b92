package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maistodos/credit-forecast/pkg/presto"
)

// WriteCSV writes a header row followed by one line per result. Nil values
// are empty cells, times are YYYY-MM-DD dates and floats use the shortest
// representation that round trips.
func WriteCSV(w io.Writer, columns []string, results []presto.Row) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(columns); err != nil {
		return err
	}

	vals := make([]string, len(columns))
	for n, row := range results {
		for i, key := range columns {
			val, ok := row[key]
			if !ok {
				return fmt.Errorf("row %d doesn't match the layout, missing column %q", n, key)
			}
			s, err := formatValue(val)
			if err != nil {
				return fmt.Errorf("error marshalling csv column %q: %w", key, err)
			}
			vals[i] = s
		}
		if err := csvWriter.Write(vals); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// EncodeCSV renders rows with layout into an in-memory CSV document.
func EncodeCSV(layout Layout, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, layout.Columns(), layout.Records(rows)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(val interface{}) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case *float64:
		if v == nil {
			return "", nil
		}
		return strconv.FormatFloat(*v, 'f', -1, 64), nil
	case decimal.Decimal:
		return v.String(), nil
	case decimal.NullDecimal:
		if !v.Valid {
			return "", nil
		}
		return v.Decimal.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(presto.DateFormat), nil
	default:
		return "", fmt.Errorf("unknown type %T for value %v", val, val)
	}
}
