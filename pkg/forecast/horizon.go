package forecast

import (
	"time"
)

// DefaultEnd is the last day forecasts are produced for.
var DefaultEnd = time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)

// Horizon is the number of whole days between now and end, zero once end
// has passed.
func Horizon(now, end time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Forecast fits one series and predicts its history plus horizon future
// days.
func Forecast(dates []time.Time, values []float64, horizon int, opts Options) ([]Point, error) {
	m, err := Fit(dates, values, opts)
	if err != nil {
		return nil, err
	}
	return m.Predict(m.FutureDates(horizon)), nil
}
