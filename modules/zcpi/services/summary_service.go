package services

import (
	"math"
	"sort"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
)

// Period is a look-back window for a percentage change. Days == 0 means the
// earliest available value.
type Period struct {
	Label string
	Days  int
}

var Periods = []Period{
	{Label: "7d", Days: 7},
	{Label: "1m", Days: 30},
	{Label: "3m", Days: 90},
	{Label: "6m", Days: 180},
	{Label: "9m", Days: 270},
	{Label: "1y", Days: 365},
	{Label: "5y", Days: 1825},
	{Label: "max"},
}

type Change struct {
	Period  string   `json:"period"`
	Percent *float64 `json:"percent"`
}

type CategorySummary struct {
	Category string   `json:"category"`
	Color    string   `json:"color"`
	Month    string   `json:"month"`
	CPI      *float64 `json:"cpi"`
	PriceUSD *float64 `json:"price_usd"`
	Value    *float64 `json:"value"`
	Changes  []Change `json:"changes"`
}

type point struct {
	at    time.Time
	value float64
}

// Summarize reports, per category, the latest row and the percentage change
// of metric against the value at or before latest-N days. The reference
// "latest" date is the newest month with a usable metric in any category.
func Summarize(rows []domain.MergedRecord, metric domain.Metric) []CategorySummary {
	var latestOverall time.Time
	for _, r := range rows {
		if _, ok := r.Value(metric); !ok {
			continue
		}
		if at, err := domain.MonthStart(r.Month); err == nil && at.After(latestOverall) {
			latestOverall = at
		}
	}

	categories := domain.Categories(rows)
	colors := domain.ColorMap(categories)

	out := make([]CategorySummary, 0, len(categories))
	for _, category := range categories {
		var members []domain.MergedRecord
		for _, r := range rows {
			if r.Category == category {
				members = append(members, r)
			}
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Month > members[j].Month })
		latest := members[0]

		var valid []point
		for _, r := range members {
			v, ok := r.Value(metric)
			if !ok {
				continue
			}
			at, err := domain.MonthStart(r.Month)
			if err != nil {
				continue
			}
			valid = append(valid, point{at: at, value: v})
		}

		s := CategorySummary{
			Category: category,
			Color:    colors[category],
			Month:    latest.Month,
			CPI:      finite(latest.CPIValue),
			PriceUSD: finite(latest.PriceUSD),
		}
		if v, ok := latest.Value(metric); ok {
			s.Value = &v
		}
		for _, p := range Periods {
			s.Changes = append(s.Changes, Change{Period: p.Label, Percent: change(s.Value, valid, latestOverall, p)})
		}
		out = append(out, s)
	}
	return out
}

// change expects valid ordered newest first.
func change(latest *float64, valid []point, latestOverall time.Time, p Period) *float64 {
	if latest == nil || len(valid) == 0 {
		return nil
	}
	var base float64
	if p.Days == 0 {
		base = valid[len(valid)-1].value
	} else {
		target := latestOverall.AddDate(0, 0, -p.Days)
		found := false
		for _, pt := range valid {
			if !pt.at.After(target) {
				base, found = pt.value, true
				break
			}
		}
		if !found {
			return nil
		}
	}
	if base == 0 {
		return nil
	}
	pct := (*latest - base) / base * 100
	return finite(pct)
}

// FilterCategories keeps the summaries whose category fuzzy-matches query,
// ignoring case and accents. An empty query keeps everything.
func FilterCategories(summary []CategorySummary, query string) []CategorySummary {
	if query == "" {
		return summary
	}
	out := make([]CategorySummary, 0, len(summary))
	for _, s := range summary {
		if fuzzy.MatchNormalizedFold(query, s.Category) {
			out = append(out, s)
		}
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FormatFixed rounds v half away from zero to places decimals. nil prints N/A.
func FormatFixed(v *float64, places int32) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(places)
}

// FormatPercent prints a signed percentage with two decimals, e.g. +12.50%.
func FormatPercent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	d := decimal.NewFromFloat(*v).Round(2)
	sign := ""
	if !d.IsNegative() {
		sign = "+"
	}
	return sign + d.StringFixed(2) + "%"
}

// FormatUSD rounds v to cents and prints it with a dollar sign and thousands
// separators, e.g. $1,234.57.
func FormatUSD(v *float64) string {
	if v == nil {
		return "N/A"
	}
	cents := decimal.NewFromFloat(*v).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}
