package credit

import (
	"sort"
)

// Prepare normalizes dates to UTC days, fills the calendar features and the
// historical year share, and sorts by date then lender. The input slice is
// sorted in place and returned. Applying Prepare twice is a no-op.
func Prepare(records []HistoricalRecord) []HistoricalRecord {
	type yearKey struct {
		lender string
		year   int
	}
	yearTotals := make(map[yearKey]float64)

	for i := range records {
		records[i].Date = Day(records[i].Date)
	}
	// totals are summed in sorted order so a second pass reproduces them bit for bit
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Lender < records[j].Lender
	})

	for i := range records {
		r := &records[i]
		r.Year = r.Date.Year()
		r.Month = int(r.Date.Month())
		r.DayOfYear = r.Date.YearDay()
		r.Quarter = QuarterLabel(r.Date)
		yearTotals[yearKey{r.Lender, r.Year}] += r.Value
	}

	for i := range records {
		r := &records[i]
		r.YearShare = nil
		if total := yearTotals[yearKey{r.Lender, r.Year}]; total != 0 {
			share := r.Value / total
			r.YearShare = &share
		}
	}
	return records
}

// Series is the history of one forecasting unit. Lender is empty for the
// portfolio series.
type Series struct {
	Lender  string
	Records []HistoricalRecord
}

// Name is used in logs and errors.
func (s Series) Name() string {
	if s.Lender == "" {
		return "portfolio"
	}
	return s.Lender
}

// SplitSeries groups prepared records by lender, in order of first
// appearance. Records keep their relative order.
func SplitSeries(records []HistoricalRecord) []Series {
	index := make(map[string]int)
	var series []Series
	for _, r := range records {
		i, ok := index[r.Lender]
		if !ok {
			i = len(series)
			index[r.Lender] = i
			series = append(series, Series{Lender: r.Lender})
		}
		series[i].Records = append(series[i].Records, r)
	}
	return series
}

// Aggregate sums records sharing a date and lender, so the table holds one
// row per key. Order of first appearance is kept.
func Aggregate(records []HistoricalRecord) []HistoricalRecord {
	index := make(map[Key]int, len(records))
	out := make([]HistoricalRecord, 0, len(records))
	for _, r := range records {
		r.Date = Day(r.Date)
		if i, ok := index[r.Key()]; ok {
			out[i].Value += r.Value
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}
