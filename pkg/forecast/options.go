package forecast

import (
	"fmt"
	"time"
)

// Seasonality is a periodic component modelled by a Fourier series.
type Seasonality struct {
	Name         string
	PeriodDays   float64
	FourierOrder int
}

// Toggle is the enablement of a built-in seasonality.
type Toggle string

const (
	ToggleAuto Toggle = "auto"
	ToggleOn   Toggle = "on"
	ToggleOff  Toggle = "off"
)

type Options struct {
	// IntervalWidth is the coverage of the prediction interval.
	IntervalWidth float64

	YearlySeasonality Toggle
	DailySeasonality  Toggle
	// Seasonalities are added on top of the built-in ones. A seasonality
	// named like a built-in replaces it.
	Seasonalities []Seasonality

	// HolidayCountry selects the holiday calendar, empty for none.
	HolidayCountry string

	ChangepointCount      int
	ChangepointRange      float64
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	HolidayPriorScale     float64
}

// DefaultOptions is the configuration credit series are fitted with: daily
// seasonality on, Brazilian holidays, a 7 day seasonality of order 5 and a
// 95% interval.
func DefaultOptions() Options {
	return Options{
		IntervalWidth:     0.95,
		YearlySeasonality: ToggleAuto,
		DailySeasonality:  ToggleOn,
		Seasonalities: []Seasonality{
			{Name: "weekly", PeriodDays: 7, FourierOrder: 5},
		},
		HolidayCountry:        "BR",
		ChangepointCount:      25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		HolidayPriorScale:     10,
	}
}

func (o Options) Validate() error {
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return fmt.Errorf("interval width must be in (0, 1), got %v", o.IntervalWidth)
	}
	if o.ChangepointRange <= 0 || o.ChangepointRange > 1 {
		return fmt.Errorf("changepoint range must be in (0, 1], got %v", o.ChangepointRange)
	}
	if o.ChangepointCount < 0 {
		return fmt.Errorf("changepoint count must not be negative")
	}
	for _, s := range o.Seasonalities {
		if s.PeriodDays <= 0 || s.FourierOrder <= 0 {
			return fmt.Errorf("seasonality %q needs a positive period and fourier order", s.Name)
		}
	}
	for _, scale := range []float64{o.ChangepointPriorScale, o.SeasonalityPriorScale, o.HolidayPriorScale} {
		if scale <= 0 {
			return fmt.Errorf("prior scales must be positive")
		}
	}
	return nil
}

// seasonalities resolves the built-in toggles against the history span.
func (o Options) seasonalities(span time.Duration) []Seasonality {
	var out []Seasonality
	seen := make(map[string]bool)
	for _, s := range o.Seasonalities {
		seen[s.Name] = true
	}
	yearly := o.YearlySeasonality == ToggleOn ||
		(o.YearlySeasonality == ToggleAuto && span >= 730*24*time.Hour)
	if yearly && !seen["yearly"] {
		out = append(out, Seasonality{Name: "yearly", PeriodDays: 365.25, FourierOrder: 10})
	}
	if o.DailySeasonality == ToggleOn && !seen["daily"] {
		out = append(out, Seasonality{Name: "daily", PeriodDays: 1, FourierOrder: 4})
	}
	return append(out, o.Seasonalities...)
}
