package domain

import (
	"sort"
	"time"
)

const MonthLayout = "2006-01"

type DailyPrice struct {
	Date  time.Time
	Price float64
}

// FromEpochMillis converts a millisecond Unix timestamp to its UTC calendar day.
func FromEpochMillis(ms int64, price float64) DailyPrice {
	t := time.UnixMilli(ms).UTC()
	y, m, d := t.Date()
	return DailyPrice{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Price: price}
}

type MonthlyPrice struct {
	Month    string
	PriceUSD float64
}

// MonthlyAverages groups daily prices by calendar month and averages each
// group. The result is ordered by month ascending.
func MonthlyAverages(daily []DailyPrice) []MonthlyPrice {
	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[string]*acc)
	for _, p := range daily {
		key := p.Date.Format(MonthLayout)
		a, ok := groups[key]
		if !ok {
			a = &acc{}
			groups[key] = a
		}
		a.sum += p.Price
		a.count++
	}

	out := make([]MonthlyPrice, 0, len(groups))
	for month, a := range groups {
		out = append(out, MonthlyPrice{Month: month, PriceUSD: a.sum / float64(a.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
