// Package forecast fits an additive daily model (piecewise linear trend,
// Fourier seasonalities and holiday effects) to one series and projects it
// over a horizon with a two-sided prediction interval.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// prior scale of the intercept and base growth rate
	trendPriorScale = 5.0
	// initial noise scale, refined from the residuals of a first fit
	initialNoiseScale = 0.5
	minPenalty        = 1e-10
)

// ErrInsufficientHistory is returned when a series has fewer than two
// observations.
var ErrInsufficientHistory = errors.New("series has fewer than 2 observations")

// Point is one forecast date.
type Point struct {
	Date  time.Time
	Yhat  float64
	Lower float64
	Upper float64
}

// Model is a fitted series. It is not safe for concurrent use while
// fitting, and read only afterwards.
type Model struct {
	opts Options

	history []time.Time
	start   time.Time
	span    float64 // history length in days
	yScale  float64

	changepoints  []float64 // scaled time
	seasonalities []Seasonality
	holidayNames  []string
	holidays      HolidayCalendar

	beta  []float64
	sigma float64 // scaled residual standard deviation
	// future changepoint rate per unit of scaled time and mean magnitude
	cpRate  float64
	cpScale float64
	z       float64
}

// Fit estimates the model on the history of one series. Dates are truncated
// to UTC days; duplicated days are rejected.
func Fit(dates []time.Time, values []float64, opts Options) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(dates) != len(values) {
		return nil, fmt.Errorf("got %d dates and %d values", len(dates), len(values))
	}
	if len(dates) < 2 {
		return nil, ErrInsufficientHistory
	}

	type obs struct {
		t time.Time
		y float64
	}
	data := make([]obs, len(dates))
	for i := range dates {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return nil, fmt.Errorf("value at %s is not finite", dates[i].Format("2006-01-02"))
		}
		data[i] = obs{truncateDay(dates[i]), values[i]}
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].t.Before(data[j].t) })
	for i := 1; i < len(data); i++ {
		if data[i].t.Equal(data[i-1].t) {
			return nil, fmt.Errorf("duplicate observation for %s", data[i].t.Format("2006-01-02"))
		}
	}

	cal, err := CountryHolidays(opts.HolidayCountry)
	if err != nil {
		return nil, err
	}

	m := &Model{
		opts:     opts,
		start:    data[0].t,
		holidays: cal,
	}
	m.span = data[len(data)-1].t.Sub(m.start).Hours() / 24
	m.seasonalities = opts.seasonalities(data[len(data)-1].t.Sub(m.start))
	if cal != nil {
		m.holidayNames = cal.Names()
	}

	ts := make([]time.Time, len(data))
	y := make([]float64, len(data))
	for i, o := range data {
		ts[i] = o.t
		m.yScale = math.Max(m.yScale, math.Abs(o.y))
	}
	if m.yScale == 0 {
		m.yScale = 1
	}
	for i, o := range data {
		y[i] = o.y / m.yScale
	}
	m.history = ts
	m.changepoints = m.placeChangepoints(ts)

	x := m.design(ts)
	penalties := m.priorScales()

	// first pass with a nominal noise level, second with the estimated one
	noise := initialNoiseScale
	var beta []float64
	for pass := 0; pass < 2; pass++ {
		beta, err = solveMAP(x, y, penalties, noise)
		if err != nil {
			return nil, err
		}
		noise = residualStd(x, y, beta)
		if noise == 0 {
			noise = minPenalty
		}
	}
	m.beta = beta
	m.sigma = noise

	deltas := beta[2 : 2+len(m.changepoints)]
	if len(deltas) > 0 {
		var sum float64
		for _, d := range deltas {
			sum += math.Abs(d)
		}
		m.cpScale = sum / float64(len(deltas))
		m.cpRate = float64(len(deltas))
	}
	m.z = distuv.UnitNormal.Quantile(0.5 + opts.IntervalWidth/2)
	return m, nil
}

// History returns the fitted days in order.
func (m *Model) History() []time.Time {
	out := make([]time.Time, len(m.history))
	copy(out, m.history)
	return out
}

// FutureDates returns the history days followed by horizon consecutive days
// after the last one.
func (m *Model) FutureDates(horizon int) []time.Time {
	out := m.History()
	last := out[len(out)-1]
	for i := 1; i <= horizon; i++ {
		out = append(out, last.AddDate(0, 0, i))
	}
	return out
}

// Predict evaluates the model at dates.
func (m *Model) Predict(dates []time.Time) []Point {
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = truncateDay(d)
	}
	x := m.design(days)
	points := make([]Point, len(days))
	for i := range days {
		var yhat float64
		row := x.RawRowView(i)
		for j, b := range m.beta {
			yhat += row[j] * b
		}
		variance := m.sigma*m.sigma + m.trendVariance(m.scaledTime(days[i]))
		width := m.z * math.Sqrt(variance)
		points[i] = Point{
			Date:  days[i],
			Yhat:  yhat * m.yScale,
			Lower: (yhat - width) * m.yScale,
			Upper: (yhat + width) * m.yScale,
		}
	}
	return points
}

// trendVariance is the variance of the trend offset at scaled time t when
// changepoints keep occurring after the history at the fitted rate, with
// Laplace distributed magnitudes of the fitted mean scale.
func (m *Model) trendVariance(t float64) float64 {
	h := t - 1
	if h <= 0 || m.cpRate == 0 {
		return 0
	}
	return m.cpRate * 2 * m.cpScale * m.cpScale * h * h * h / 3
}

func (m *Model) scaledTime(t time.Time) float64 {
	if m.span == 0 {
		return 0
	}
	return t.Sub(m.start).Hours() / 24 / m.span
}

// placeChangepoints spreads potential changepoints uniformly over the first
// ChangepointRange of the history, on observed days.
func (m *Model) placeChangepoints(ts []time.Time) []float64 {
	histSize := int(math.Floor(float64(len(ts)) * m.opts.ChangepointRange))
	n := m.opts.ChangepointCount
	if n+1 > histSize {
		n = histSize - 1
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(histSize-1) / float64(n)))
		cps = append(cps, m.scaledTime(ts[idx]))
	}
	return cps
}

// design builds the regressor matrix. Columns: intercept, growth,
// changepoint hinges, Fourier pairs per seasonality, one indicator per
// holiday name.
func (m *Model) design(ts []time.Time) *mat.Dense {
	cols := 2 + len(m.changepoints) + len(m.holidayNames)
	for _, s := range m.seasonalities {
		cols += 2 * s.FourierOrder
	}
	x := mat.NewDense(len(ts), cols, nil)

	var holidays map[time.Time][]string
	if len(ts) > 0 {
		holidays = holidayIndex(m.holidays, ts[0].Year(), ts[len(ts)-1].Year())
	}
	holidayCol := make(map[string]int, len(m.holidayNames))
	offset := cols - len(m.holidayNames)
	for j, name := range m.holidayNames {
		holidayCol[name] = offset + j
	}

	for i, t := range ts {
		row := x.RawRowView(i)
		st := m.scaledTime(t)
		row[0] = 1
		row[1] = st
		c := 2
		for _, cp := range m.changepoints {
			row[c] = math.Max(0, st-cp)
			c++
		}
		epochDays := float64(t.Unix()) / 86400
		for _, s := range m.seasonalities {
			for k := 1; k <= s.FourierOrder; k++ {
				arg := 2 * math.Pi * float64(k) * epochDays / s.PeriodDays
				row[c] = math.Sin(arg)
				row[c+1] = math.Cos(arg)
				c += 2
			}
		}
		for _, name := range holidays[t] {
			if col, ok := holidayCol[name]; ok {
				row[col] = 1
			}
		}
	}
	return x
}

// priorScales returns the prior standard deviation of every coefficient in
// design column order.
func (m *Model) priorScales() []float64 {
	scales := []float64{trendPriorScale, trendPriorScale}
	for range m.changepoints {
		scales = append(scales, m.opts.ChangepointPriorScale)
	}
	for _, s := range m.seasonalities {
		for k := 0; k < 2*s.FourierOrder; k++ {
			scales = append(scales, m.opts.SeasonalityPriorScale)
		}
	}
	for range m.holidayNames {
		scales = append(scales, m.opts.HolidayPriorScale)
	}
	return scales
}

// solveMAP returns the posterior mode of a linear model with Gaussian noise
// of the given scale and independent zero mean Gaussian priors, solved as a
// ridge augmented least squares problem.
func solveMAP(x *mat.Dense, y []float64, priorScales []float64, noise float64) ([]float64, error) {
	n, p := x.Dims()
	a := mat.NewDense(n+p, p, nil)
	a.Slice(0, n, 0, p).(*mat.Dense).Copy(x)
	for j, scale := range priorScales {
		a.Set(n+j, j, math.Max(noise/scale, minPenalty))
	}
	b := mat.NewVecDense(n+p, nil)
	for i, v := range y {
		b.SetVec(i, v)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("unable to fit model: %w", err)
		}
	}
	out := make([]float64, p)
	for j := range out {
		out[j] = beta.AtVec(j)
	}
	return out, nil
}

func residualStd(x *mat.Dense, y, beta []float64) float64 {
	n, _ := x.Dims()
	var ss float64
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		var fit float64
		for j, b := range beta {
			fit += row[j] * b
		}
		r := y[i] - fit
		ss += r * r
	}
	dof := n - 1
	if dof < 1 {
		dof = 1
	}
	return math.Sqrt(ss / float64(dof))
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
