package report

import (
	"fmt"

	"github.com/maistodos/credit-forecast/pkg/presto"
)

// Layout selects the output column set.
type Layout string

const (
	LayoutAggregate Layout = "aggregate"
	LayoutPerLender Layout = "per-lender"
)

var (
	aggregateColumns = []string{
		"date", "vlr_total", "year", "month", "day", "quarter/year", "year_seasonality",
		"yhat", "yhat_lower", "yhat_upper", "anual_seasonality", "quarter_seasonality", "meta_anual",
	}
	perLenderColumns = []string{
		"date", "financiadoras", "vlr_total", "year", "month", "day_of_year", "quarter_year",
		"yhat", "yhat_lower", "yhat_upper", "anual_seasonality", "quarter_seasonality", "meta_anual",
	}
)

func (l Layout) Validate() error {
	switch l {
	case LayoutAggregate, LayoutPerLender:
		return nil
	default:
		return fmt.Errorf("invalid layout %q, must be %q or %q", l, LayoutAggregate, LayoutPerLender)
	}
}

// Columns returns the header of the layout, in output order.
func (l Layout) Columns() []string {
	if l == LayoutPerLender {
		return append([]string(nil), perLenderColumns...)
	}
	return append([]string(nil), aggregateColumns...)
}

// Record flattens r into column values. Missing values are nil.
func (l Layout) Record(r Row) presto.Row {
	f := r.Forecast
	rec := presto.Row{
		"date":                f.Date,
		"yhat":                f.Yhat,
		"yhat_lower":          f.Lower,
		"yhat_upper":          f.Upper,
		"anual_seasonality":   f.AnnualIndex,
		"quarter_seasonality": f.QuarterIndex,
		"meta_anual":          f.Target,
	}

	var value, year, month, dayOfYear, quarter, share interface{}
	if h := r.History; h != nil {
		value, year, month, dayOfYear, quarter, share = h.Value, h.Year, h.Month, h.DayOfYear, h.Quarter, h.YearShare
	}

	if l == LayoutPerLender {
		rec["financiadoras"] = f.Lender
		rec["vlr_total"] = value
		rec["year"] = year
		rec["month"] = month
		rec["day_of_year"] = dayOfYear
		rec["quarter_year"] = quarter
		return rec
	}
	rec["vlr_total"] = value
	rec["year"] = year
	rec["month"] = month
	rec["day"] = dayOfYear
	rec["quarter/year"] = quarter
	rec["year_seasonality"] = share
	return rec
}

// Records flattens every row.
func (l Layout) Records(rows []Row) []presto.Row {
	out := make([]presto.Row, len(rows))
	for i, r := range rows {
		out[i] = l.Record(r)
	}
	return out
}
