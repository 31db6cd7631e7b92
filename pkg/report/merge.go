// Package report joins the historical table with the forecast and
// serializes the result to CSV.
package report

import (
	"github.com/maistodos/credit-forecast/pkg/credit"
	"github.com/maistodos/credit-forecast/pkg/seasonality"
)

// Row is one output line: a forecast row and the history of the same date
// and lender, if any.
type Row struct {
	Forecast seasonality.Row
	History  *credit.HistoricalRecord
}

// Merge right joins history onto forecast by date and lender. Every
// forecast row is kept, in order; forecast rows without actuals have a nil
// History. History rows without a forecast are dropped.
func Merge(history []credit.HistoricalRecord, forecast []seasonality.Row) []Row {
	index := make(map[credit.Key]int, len(history))
	for i, h := range history {
		index[credit.Key{Date: credit.Day(h.Date), Lender: h.Lender}] = i
	}

	rows := make([]Row, len(forecast))
	for i, f := range forecast {
		rows[i] = Row{Forecast: f}
		if j, ok := index[credit.Key{Date: credit.Day(f.Date), Lender: f.Lender}]; ok {
			h := history[j]
			rows[i].History = &h
		}
	}
	return rows
}
