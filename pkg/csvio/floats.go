package csvio

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders v in its shortest round-tripping form. Non-finite
// values are written as NaN, inf and -inf so they survive a re-read.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatNullable writes nil as an empty cell.
func FormatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatFloat(*v)
}

// ParseFloat accepts everything FormatFloat writes. An empty cell parses as NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseNullable returns nil for an empty cell.
func ParseNullable(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := ParseFloat(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
