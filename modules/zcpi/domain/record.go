package domain

import (
	"math"
	"time"

	"github.com/go-faster/errors"
)

const (
	MonthLayout = "2006-01"
	// ReferenceMonth is the month whose mean index value reads 100 after
	// normalization.
	ReferenceMonth = "2020-01"
)

// IndexRow is one line of the processed price-index table.
type IndexRow struct {
	SeriesID string
	Month    string
	Value    float64
}

// PriceRow is one line of the processed monthly market-price table.
type PriceRow struct {
	Month    string
	PriceUSD float64
}

// MergedRecord is one joined row. Category is empty when the series is not in
// the static category table. ZCPINorm is nil when no baseline exists.
type MergedRecord struct {
	SeriesID  string
	Month     string
	Category  string
	CPIValue  float64
	PriceUSD  float64
	ZCPIValue float64
	ZCPINorm  *float64
}

// Metric names a numeric column of the merged table.
type Metric string

const (
	MetricValue Metric = "zcpi_value"
	MetricNorm  Metric = "zcpi_norm"
)

// Value returns the metric for r and whether it is a finite number.
func (r MergedRecord) Value(m Metric) (float64, bool) {
	v := r.ZCPIValue
	if m == MetricNorm {
		if r.ZCPINorm == nil {
			return 0, false
		}
		v = *r.ZCPINorm
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Label is the axis caption used by the chart and the workbook.
func (m Metric) Label() string {
	if m == MetricNorm {
		return "ZCPI (Normalized, Jan 2020 = 100)"
	}
	return "ZCPI Value (ZEC/USD ÷ CPI)"
}

var dateLayouts = []string{
	MonthLayout,
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// NormalizeMonth reduces any of the accepted date spellings to YYYY-MM.
func NormalizeMonth(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(MonthLayout), nil
		}
	}
	return "", errors.Errorf("unrecognized date %q", s)
}

// MonthStart parses a YYYY-MM key into the first day of that month (UTC).
func MonthStart(month string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse month %q", month)
	}
	return t, nil
}
