package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var weekdayEffect = map[time.Weekday]float64{
	time.Sunday:    -400,
	time.Monday:    150,
	time.Tuesday:   100,
	time.Wednesday: 80,
	time.Thursday:  60,
	time.Friday:    210,
	time.Saturday:  -200,
}

func syntheticSeries(start time.Time, days int) ([]time.Time, []float64) {
	dates := make([]time.Time, days)
	values := make([]float64, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		dates[i] = d
		values[i] = 5000 + 3*float64(i) + weekdayEffect[d.Weekday()]
	}
	return dates, values
}

func TestFitRecoversWeeklyPattern(t *testing.T) {
	dates, values := syntheticSeries(date(2023, time.March, 1), 420)
	m, err := Fit(dates, values, DefaultOptions())
	require.NoError(t, err)

	points := m.Predict(dates)
	require.Len(t, points, len(dates))
	for i, p := range points {
		assert.Equal(t, dates[i], p.Date)
		assert.InEpsilon(t, values[i], p.Yhat, 0.02, "day %s", p.Date.Format("2006-01-02"))
	}

	// the weekday ordering survives in the fitted values of the last week
	lastWeek := points[len(points)-7:]
	var fri, sun float64
	for _, p := range lastWeek {
		switch p.Date.Weekday() {
		case time.Friday:
			fri = p.Yhat
		case time.Sunday:
			sun = p.Yhat
		}
	}
	assert.Greater(t, fri, sun)
}

func TestPredictIntervals(t *testing.T) {
	dates, values := syntheticSeries(date(2023, time.March, 1), 200)
	for i := range values {
		// deterministic noise
		values[i] += 50 * math.Sin(float64(i)*1.7)
	}
	m, err := Fit(dates, values, DefaultOptions())
	require.NoError(t, err)

	all := m.Predict(m.FutureDates(60))
	require.Len(t, all, 260)

	inHistoryWidth := all[0].Upper - all[0].Lower
	assert.Greater(t, inHistoryWidth, 0.0)
	prevWidth := 0.0
	for i, p := range all {
		assert.LessOrEqual(t, p.Lower, p.Yhat)
		assert.GreaterOrEqual(t, p.Upper, p.Yhat)
		width := p.Upper - p.Lower
		if i < 200 {
			assert.InDelta(t, inHistoryWidth, width, 1e-6)
			continue
		}
		assert.GreaterOrEqual(t, width+1e-9, prevWidth)
		assert.GreaterOrEqual(t, width+1e-9, inHistoryWidth)
		prevWidth = width
	}
}

func TestFutureDates(t *testing.T) {
	dates, values := syntheticSeries(date(2025, time.January, 1), 30)
	m, err := Fit(dates, values, DefaultOptions())
	require.NoError(t, err)

	out := m.FutureDates(5)
	require.Len(t, out, 35)
	assert.Equal(t, date(2025, time.January, 1), out[0])
	assert.Equal(t, date(2025, time.January, 30), out[29])
	assert.Equal(t, date(2025, time.January, 31), out[30])
	assert.Equal(t, date(2025, time.February, 4), out[34])

	assert.Len(t, m.FutureDates(0), 30)
}

func TestFitErrors(t *testing.T) {
	tests := map[string]struct {
		dates  []time.Time
		values []float64
		opts   func(*Options)
		err    error
		msg    string
	}{
		"empty": {
			err: ErrInsufficientHistory,
		},
		"single observation": {
			dates:  []time.Time{date(2025, time.January, 1)},
			values: []float64{1},
			err:    ErrInsufficientHistory,
		},
		"length mismatch": {
			dates:  []time.Time{date(2025, time.January, 1)},
			values: []float64{1, 2},
			msg:    "got 1 dates and 2 values",
		},
		"not finite": {
			dates:  []time.Time{date(2025, time.January, 1), date(2025, time.January, 2)},
			values: []float64{1, math.NaN()},
			msg:    "value at 2025-01-02 is not finite",
		},
		"duplicate day": {
			dates:  []time.Time{date(2025, time.January, 1), date(2025, time.January, 1).Add(time.Hour)},
			values: []float64{1, 2},
			msg:    "duplicate observation for 2025-01-01",
		},
		"bad interval width": {
			dates:  []time.Time{date(2025, time.January, 1), date(2025, time.January, 2)},
			values: []float64{1, 2},
			opts:   func(o *Options) { o.IntervalWidth = 1 },
			msg:    "interval width must be in (0, 1), got 1",
		},
		"unknown country": {
			dates:  []time.Time{date(2025, time.January, 1), date(2025, time.January, 2)},
			values: []float64{1, 2},
			opts:   func(o *Options) { o.HolidayCountry = "XX" },
			msg:    `no holiday calendar for country "XX"`,
		},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := Fit(tt.dates, tt.values, opts)
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
			if tt.msg != "" {
				assert.EqualError(t, err, tt.msg)
			}
		})
	}
}

func TestFitTwoObservations(t *testing.T) {
	points, err := Forecast(
		[]time.Time{date(2025, time.January, 1), date(2025, time.January, 2)},
		[]float64{10, 20},
		3,
		DefaultOptions(),
	)
	require.NoError(t, err)
	require.Len(t, points, 5)
	for _, p := range points {
		assert.False(t, math.IsNaN(p.Yhat))
		assert.False(t, math.IsNaN(p.Lower))
		assert.False(t, math.IsNaN(p.Upper))
	}
}

func TestFitConstantZeroSeries(t *testing.T) {
	dates, _ := syntheticSeries(date(2025, time.January, 1), 20)
	points, err := Forecast(dates, make([]float64, len(dates)), 2, DefaultOptions())
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, 0, p.Yhat, 1e-6)
	}
}

func TestChangepointPlacement(t *testing.T) {
	dates, values := syntheticSeries(date(2024, time.January, 1), 101)
	m, err := Fit(dates, values, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, m.changepoints, 25)
	for i, cp := range m.changepoints {
		assert.Greater(t, cp, 0.0)
		assert.LessOrEqual(t, cp, 0.8)
		if i > 0 {
			assert.Greater(t, cp, m.changepoints[i-1])
		}
	}

	opts := DefaultOptions()
	opts.ChangepointCount = 0
	m, err = Fit(dates, values, opts)
	require.NoError(t, err)
	assert.Empty(t, m.changepoints)
}

func TestHorizon(t *testing.T) {
	tests := map[string]struct {
		now      time.Time
		expected int
	}{
		"a year before":     {now: date(2024, time.December, 31), expected: 365},
		"mid day":           {now: time.Date(2025, time.December, 29, 13, 0, 0, 0, time.UTC), expected: 1},
		"on the end day":    {now: DefaultEnd, expected: 0},
		"after the end day": {now: date(2026, time.March, 1), expected: 0},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Horizon(tt.now, DefaultEnd))
		})
	}
}

func TestSeasonalitiesResolution(t *testing.T) {
	opts := DefaultOptions()

	short := opts.seasonalities(400 * 24 * time.Hour)
	assert.Equal(t, []string{"daily", "weekly"}, seasonalityNames(short))

	long := opts.seasonalities(730 * 24 * time.Hour)
	assert.Equal(t, []string{"yearly", "daily", "weekly"}, seasonalityNames(long))

	opts.YearlySeasonality = ToggleOff
	opts.DailySeasonality = ToggleOff
	opts.Seasonalities = append(opts.Seasonalities, Seasonality{Name: "yearly", PeriodDays: 365.25, FourierOrder: 3})
	custom := opts.seasonalities(1000 * 24 * time.Hour)
	assert.Equal(t, []string{"weekly", "yearly"}, seasonalityNames(custom))
	assert.Equal(t, 3, custom[1].FourierOrder)
}

func seasonalityNames(s []Seasonality) []string {
	var out []string
	for _, x := range s {
		out = append(out, x.Name)
	}
	return out
}
