package seasonality

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maistodos/credit-forecast/pkg/credit"
	"github.com/maistodos/credit-forecast/pkg/forecast"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func points(start time.Time, days int, yhat func(i int) float64) []forecast.Point {
	out := make([]forecast.Point, days)
	for i := range out {
		out[i] = forecast.Point{Date: start.AddDate(0, 0, i), Yhat: yhat(i)}
	}
	return out
}

func TestAllocateIndicesSumToOne(t *testing.T) {
	alloc, err := NewAllocator(DefaultTargets(), "")
	require.NoError(t, err)
	rows := alloc.Allocate([]Series{{
		Points: points(date(2023, time.July, 1), 900, func(i int) float64 { return 1000 + float64(i%7)*10 }),
	}})
	require.Len(t, rows, 900)

	annual := make(map[int]float64)
	quarterly := make(map[string]float64)
	for _, r := range rows {
		require.NotNil(t, r.AnnualIndex)
		require.NotNil(t, r.QuarterIndex)
		annual[r.Date.Year()] += *r.AnnualIndex
		quarterly[credit.QuarterLabel(r.Date)] += *r.QuarterIndex
	}
	for y, sum := range annual {
		assert.InDelta(t, 1.0, sum, 1e-9, "year %d", y)
	}
	for q, sum := range quarterly {
		assert.InDelta(t, 1.0, sum, 1e-9, "quarter %s", q)
	}
}

func TestAllocateTargets(t *testing.T) {
	alloc, err := NewAllocator(DefaultTargets(), SplitSeries)
	require.NoError(t, err)
	rows := alloc.Allocate([]Series{{
		Points: points(date(2023, time.January, 1), 365*3, func(i int) float64 { return 50 + float64(i) }),
	}})

	totals := make(map[int]decimal.Decimal)
	for _, r := range rows {
		if r.Date.Year() == 2023 {
			assert.False(t, r.Target.Valid, "no target for %s", r.Date)
			continue
		}
		require.True(t, r.Target.Valid)
		totals[r.Date.Year()] = totals[r.Date.Year()].Add(r.Target.Decimal)
	}
	assert.InDelta(t, 105000000.0, totals[2024].InexactFloat64(), 1e-3)
	assert.InDelta(t, 145000000.0, totals[2025].InexactFloat64(), 1e-3)
}

func TestAllocateSplit(t *testing.T) {
	series := []Series{
		{Lender: "parcelex", Points: points(date(2025, time.January, 1), 365, func(int) float64 { return 3 })},
		{Lender: "upp", Points: points(date(2025, time.January, 1), 365, func(int) float64 { return 1 })},
	}

	tests := map[string]struct {
		split    Split
		expected map[string]float64
	}{
		"series": {
			split:    SplitSeries,
			expected: map[string]float64{"parcelex": 145000000, "upp": 145000000},
		},
		"portfolio": {
			split:    SplitPortfolio,
			expected: map[string]float64{"parcelex": 108750000, "upp": 36250000},
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			alloc, err := NewAllocator(DefaultTargets(), tt.split)
			require.NoError(t, err)
			totals := make(map[string]float64)
			for _, r := range alloc.Allocate(series) {
				totals[r.Lender] += r.Target.Decimal.InexactFloat64()
				assert.InDelta(t, 1.0/365, *r.AnnualIndex, 1e-12)
			}
			for lender, expected := range tt.expected {
				assert.InDelta(t, expected, totals[lender], 1e-3, lender)
			}
		})
	}
}

func TestAllocateZeroDenominator(t *testing.T) {
	alloc, err := NewAllocator(DefaultTargets(), SplitSeries)
	require.NoError(t, err)
	rows := alloc.Allocate([]Series{{
		Points: points(date(2025, time.January, 1), 10, func(int) float64 { return 0 }),
	}})
	for _, r := range rows {
		assert.Nil(t, r.AnnualIndex)
		assert.Nil(t, r.QuarterIndex)
		assert.False(t, r.Target.Valid)
	}
}

func TestNewAllocatorInvalidSplit(t *testing.T) {
	_, err := NewAllocator(DefaultTargets(), "lender")
	assert.EqualError(t, err, `invalid target split "lender", must be "series" or "portfolio"`)
}

func TestParseTargets(t *testing.T) {
	targets, err := ParseTargets(map[string]string{"2026": "200000000.50", "2024": "1"})
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2026}, targets.Years())
	assert.Equal(t, "200000000.5", targets[2026].String())

	_, err = ParseTargets(map[string]string{"next": "1"})
	assert.Error(t, err)
	_, err = ParseTargets(map[string]string{"2026": "lots"})
	assert.Error(t, err)
}
