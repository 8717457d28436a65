package services

import (
	"encoding/json"
	"math"

	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
	zcpidomain "github.com/zcpi-labs/zcpi/modules/zcpi/domain"
)

// SampleSize is how many records are test-encoded before anything is sent.
const SampleSize = 5

// ErrEncoding marks a sample that could not be encoded as JSON.
var ErrEncoding = errors.New("JSON encoding validation failed")

// Scrub converts merged rows to store records. Non-finite numbers become nil
// and month keys become first-of-month dates. No row is dropped.
func Scrub(rows []zcpidomain.MergedRecord) []domain.Record {
	out := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		rec := domain.Record{
			SeriesID:  r.SeriesID,
			Date:      monthToDate(r.Month),
			CPIValue:  finite(r.CPIValue),
			PriceUSD:  finite(r.PriceUSD),
			ZCPIValue: finite(r.ZCPIValue),
		}
		if r.Category != "" {
			c := r.Category
			rec.Category = &c
		}
		if r.ZCPINorm != nil {
			rec.ZCPINorm = finite(*r.ZCPINorm)
		}
		out = append(out, rec)
	}
	return out
}

// CountInvalid returns how many rows hold a missing or non-finite value.
func CountInvalid(rows []zcpidomain.MergedRecord) int {
	n := 0
	for _, r := range rows {
		if r.Category == "" || r.ZCPINorm == nil ||
			finite(r.CPIValue) == nil || finite(r.PriceUSD) == nil ||
			finite(r.ZCPIValue) == nil || finite(*r.ZCPINorm) == nil {
			n++
		}
	}
	return n
}

// ValidateSample encodes the first n records.
func ValidateSample(records []domain.Record, n int) error {
	if n > len(records) {
		n = len(records)
	}
	if _, err := json.Marshal(records[:n]); err != nil {
		return errors.Wrap(ErrEncoding, err.Error())
	}
	return nil
}

func monthToDate(s string) string {
	if len(s) == 7 {
		return s + "-01"
	}
	return s
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
