package domain

import (
	"time"

	"github.com/go-faster/errors"
)

const DateLayout = "2006-01-02"

// Record is one merged row as the tabular store receives it. Pointer fields
// are nil where the merged table held a missing or non-finite number.
type Record struct {
	SeriesID  string   `json:"series_id"`
	Date      string   `json:"date"`
	Category  *string  `json:"category"`
	CPIValue  *float64 `json:"cpi_value"`
	PriceUSD  *float64 `json:"price_usd"`
	ZCPIValue *float64 `json:"zcpi_value"`
	ZCPINorm  *float64 `json:"zcpi_norm"`
}

// Columns is the store column order used by the SQL backends.
var Columns = []string{"series_id", "date", "category", "cpi_value", "price_usd", "zcpi_value", "zcpi_norm"}

// Values returns the record in Columns order with nil pointers as untyped
// nil. The date stays a string.
func (r Record) Values() []any {
	return []any{r.SeriesID, r.Date, deref(r.Category), deref(r.CPIValue), deref(r.PriceUSD), deref(r.ZCPIValue), deref(r.ZCPINorm)}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Day parses Date as a calendar day.
func (r Record) Day() (time.Time, error) {
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "record date %q", r.Date)
	}
	return t, nil
}

// HasColumn reports whether name is one of Columns.
func HasColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}
