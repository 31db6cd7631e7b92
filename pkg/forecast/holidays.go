package forecast

import (
	"fmt"
	"time"
)

// Holiday is one named holiday occurrence.
type Holiday struct {
	Name string
	Date time.Time
}

// HolidayCalendar lists the holidays of a country. Names must be stable
// across years since each name becomes one model regressor.
type HolidayCalendar interface {
	Names() []string
	Holidays(year int) []Holiday
}

// CountryHolidays returns the calendar for an ISO 3166 alpha-2 code.
func CountryHolidays(country string) (HolidayCalendar, error) {
	switch country {
	case "BR":
		return brazil{}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("no holiday calendar for country %q", country)
	}
}

const (
	holidayNewYear         = "Universal Fraternization Day"
	holidayGoodFriday      = "Good Friday"
	holidayTiradentes      = "Tiradentes' Day"
	holidayWorkers         = "Worker's Day"
	holidayIndependence    = "Independence Day"
	holidayAparecida       = "Our Lady of Aparecida"
	holidayAllSouls        = "All Souls' Day"
	holidayRepublic        = "Republic Proclamation Day"
	holidayBlackAwareness  = "National Day of Zumbi and Black Awareness"
	holidayChristmas       = "Christmas Day"
	blackAwarenessFromYear = 2024
)

// brazil is the national public holiday calendar of Brazil.
type brazil struct{}

func (brazil) Names() []string {
	return []string{
		holidayNewYear,
		holidayGoodFriday,
		holidayTiradentes,
		holidayWorkers,
		holidayIndependence,
		holidayAparecida,
		holidayAllSouls,
		holidayRepublic,
		holidayBlackAwareness,
		holidayChristmas,
	}
}

func (brazil) Holidays(year int) []Holiday {
	day := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
	}
	holidays := []Holiday{
		{holidayNewYear, day(time.January, 1)},
		{holidayGoodFriday, Easter(year).AddDate(0, 0, -2)},
		{holidayTiradentes, day(time.April, 21)},
		{holidayWorkers, day(time.May, 1)},
		{holidayIndependence, day(time.September, 7)},
		{holidayAparecida, day(time.October, 12)},
		{holidayAllSouls, day(time.November, 2)},
		{holidayRepublic, day(time.November, 15)},
	}
	if year >= blackAwarenessFromYear {
		holidays = append(holidays, Holiday{holidayBlackAwareness, day(time.November, 20)})
	}
	return append(holidays, Holiday{holidayChristmas, day(time.December, 25)})
}

// Easter returns Western Easter Sunday of year (anonymous Gregorian
// algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// holidayIndex maps each day to the calendar names falling on it, for every
// year in [from, to].
func holidayIndex(cal HolidayCalendar, from, to int) map[time.Time][]string {
	index := make(map[time.Time][]string)
	if cal == nil {
		return index
	}
	for y := from; y <= to; y++ {
		for _, h := range cal.Holidays(y) {
			index[h.Date] = append(index[h.Date], h.Name)
		}
	}
	return index
}
