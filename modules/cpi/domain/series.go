package domain

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// DefaultSeries are the CPI-U, U.S. city average, not seasonally adjusted
// food-at-home series fetched on every run.
var DefaultSeries = []string{
	"CUUR0000SAF11",
	"CUUR0000SAF111",
	"CUUR0000SAF112",
	"CUUR0000SAF113",
	"CUUR0000SAF114",
	"CUUR0000SAF115",
	"CUUR0000SAF116",
}

var categories = map[string]string{
	"CUUR0000SAF11":  "Food at home",
	"CUUR0000SAF111": "Cereals and bakery",
	"CUUR0000SAF112": "Meats, poultry, fish, eggs",
	"CUUR0000SAF113": "Dairy",
	"CUUR0000SAF114": "Fruits and vegetables",
	"CUUR0000SAF115": "Nonalcoholic beverages",
	"CUUR0000SAF116": "Other food at home",
}

// Category maps a series identifier to its category name. ok is false for
// identifiers outside the fixed table.
func Category(seriesID string) (name string, ok bool) {
	name, ok = categories[seriesID]
	return name, ok
}

// ParsePeriod turns a (year, month name) pair such as ("2020", "January") into
// the first day of that month in UTC. Non-month periods like "Annual" fail.
func ParsePeriod(year, periodName string) (time.Time, error) {
	v := strings.TrimSpace(year) + "-" + strings.TrimSpace(periodName)
	t, err := time.Parse("2006-January", v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse period %q", v)
	}
	return t, nil
}

// Record is one flattened data point of the price-index response.
type Record struct {
	SeriesID   string
	Year       string
	PeriodName string
	Value      float64
	Date       time.Time
}

// Month returns the calendar-month key of the record.
func (r Record) Month() string {
	return r.Date.Format(MonthLayout)
}

// MonthLayout formats the calendar-month join key.
const MonthLayout = "2006-01"

// DateLayout is the day-precision date written to processed files.
const DateLayout = "2006-01-02"
