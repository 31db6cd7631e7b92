// Package seasonality derives annual and quarterly seasonality indices from
// forecasts and spreads yearly revenue targets over the forecast days.
package seasonality

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maistodos/credit-forecast/pkg/credit"
	"github.com/maistodos/credit-forecast/pkg/forecast"
)

// Targets maps a calendar year to the revenue target of that year.
type Targets map[int]decimal.Decimal

// DefaultTargets are the yearly origination targets.
func DefaultTargets() Targets {
	return Targets{
		2024: decimal.NewFromInt(105000000),
		2025: decimal.NewFromInt(145000000),
	}
}

// ParseTargets reads a year to amount map as found in job files.
func ParseTargets(raw map[string]string) (Targets, error) {
	targets := make(Targets, len(raw))
	for y, amount := range raw {
		year, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("invalid target year %q: %w", y, err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid target amount %q for %d: %w", amount, year, err)
		}
		targets[year] = d
	}
	return targets, nil
}

// Years returns the target years in ascending order.
func (t Targets) Years() []int {
	years := make([]int, 0, len(t))
	for y := range t {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Split selects how a yearly target is shared between series.
type Split string

const (
	// SplitSeries gives every series the full yearly target.
	SplitSeries Split = "series"
	// SplitPortfolio weights each series by its share of the predicted
	// portfolio total of the year, so all series together add up to the
	// target.
	SplitPortfolio Split = "portfolio"
)

func (s Split) Validate() error {
	switch s {
	case SplitSeries, SplitPortfolio:
		return nil
	default:
		return fmt.Errorf("invalid target split %q, must be %q or %q", s, SplitSeries, SplitPortfolio)
	}
}

// Series is the forecast of one lender, empty for the portfolio.
type Series struct {
	Lender string
	Points []forecast.Point
}

// Row is a forecast point with its seasonality indices and allocated
// target. Nil indices and an invalid target mean missing.
type Row struct {
	forecast.Point
	Lender       string
	AnnualIndex  *float64
	QuarterIndex *float64
	Target       decimal.NullDecimal
}

// Allocator computes indices and target allocations.
type Allocator struct {
	Targets Targets
	Split   Split
}

func NewAllocator(targets Targets, split Split) (*Allocator, error) {
	if split == "" {
		split = SplitSeries
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{Targets: targets, Split: split}, nil
}

type quarterKey struct {
	year    int
	quarter int
}

// Allocate returns one row per point of every series, in input order.
func (a *Allocator) Allocate(series []Series) []Row {
	portfolioYear := make(map[int]float64)
	if a.Split == SplitPortfolio {
		for _, s := range series {
			for _, p := range s.Points {
				portfolioYear[p.Date.Year()] += p.Yhat
			}
		}
	}

	var rows []Row
	for _, s := range series {
		yearSum := make(map[int]float64)
		quarterSum := make(map[quarterKey]float64)
		for _, p := range s.Points {
			yearSum[p.Date.Year()] += p.Yhat
			quarterSum[quarterOf(p.Date)] += p.Yhat
		}

		for _, p := range s.Points {
			row := Row{Point: p, Lender: s.Lender}
			year := p.Date.Year()
			row.AnnualIndex = ratio(p.Yhat, yearSum[year])
			row.QuarterIndex = ratio(p.Yhat, quarterSum[quarterOf(p.Date)])

			if target, ok := a.Targets[year]; ok {
				weight := row.AnnualIndex
				if a.Split == SplitPortfolio {
					weight = ratio(p.Yhat, portfolioYear[year])
				}
				if weight != nil {
					row.Target = decimal.NewNullDecimal(decimal.NewFromFloat(*weight).Mul(target))
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func quarterOf(t time.Time) quarterKey {
	return quarterKey{year: t.Year(), quarter: credit.QuarterOf(t)}
}

func ratio(v, total float64) *float64 {
	if total == 0 {
		return nil
	}
	r := v / total
	return &r
}
