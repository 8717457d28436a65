package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
)

func ptr(v float64) *float64 { return &v }

func changeOf(t *testing.T, s CategorySummary, period string) *float64 {
	t.Helper()
	for _, c := range s.Changes {
		if c.Period == period {
			return c.Percent
		}
	}
	t.Fatalf("period %s not found", period)
	return nil
}

func TestSummarize(t *testing.T) {
	rows := []domain.MergedRecord{
		{Category: "Dairy", Month: "2020-01", CPIValue: 100, PriceUSD: 50, ZCPIValue: 50},
		{Category: "Dairy", Month: "2020-02", CPIValue: 100, PriceUSD: 60, ZCPIValue: 60},
		{Category: "Dairy", Month: "2020-03", CPIValue: 100, PriceUSD: 75, ZCPIValue: 75},
		{Category: "Food at home", Month: "2020-03", CPIValue: 0, PriceUSD: 75, ZCPIValue: math.Inf(1)},
		{Category: "", Month: "2020-03", ZCPIValue: 1},
	}

	got := Summarize(rows, domain.MetricValue)
	require.Len(t, got, 2)

	dairy := got[0]
	require.Equal(t, "Dairy", dairy.Category)
	require.Equal(t, "2020-03", dairy.Month)
	require.Equal(t, 75.0, *dairy.Value)
	require.Len(t, dairy.Changes, len(Periods))
	// 2020-03-01 minus 7 days is 2020-02-23, so the base is February.
	require.InDelta(t, 25.0, *changeOf(t, dairy, "7d"), 1e-9)
	// 30 days back lands on 2020-01-31, before the February row.
	require.InDelta(t, 50.0, *changeOf(t, dairy, "1m"), 1e-9)
	require.Nil(t, changeOf(t, dairy, "3m"))
	require.InDelta(t, 50.0, *changeOf(t, dairy, "max"), 1e-9)

	food := got[1]
	require.Equal(t, "#DC2626", food.Color)
	require.Nil(t, food.Value)
	require.Equal(t, 75.0, *food.PriceUSD)
	require.Nil(t, changeOf(t, food, "max"))
}

func TestSummarize_NormMetric(t *testing.T) {
	rows := []domain.MergedRecord{
		{Category: "Dairy", Month: "2020-01", ZCPIValue: 50, ZCPINorm: ptr(100)},
		{Category: "Dairy", Month: "2021-01", ZCPIValue: 40, ZCPINorm: ptr(80)},
	}
	got := Summarize(rows, domain.MetricNorm)
	require.Equal(t, 80.0, *got[0].Value)
	require.InDelta(t, -20.0, *changeOf(t, got[0], "1y"), 1e-9)
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "+12.35%", FormatPercent(ptr(12.345)))
	require.Equal(t, "-0.50%", FormatPercent(ptr(-0.5)))
	require.Equal(t, "+0.00%", FormatPercent(ptr(0)))
	require.Equal(t, "N/A", FormatPercent(nil))
	require.Equal(t, "101.2346", FormatFixed(ptr(101.23456), 4))
	require.Equal(t, "N/A", FormatFixed(nil, 2))
}

func TestFormatUSD(t *testing.T) {
	require.Equal(t, "$80.00", FormatUSD(ptr(80)))
	require.Equal(t, "$1,234.57", FormatUSD(ptr(1234.567)))
	require.Equal(t, "N/A", FormatUSD(nil))
}

func TestFilterCategories(t *testing.T) {
	summary := []CategorySummary{{Category: "Dairy"}, {Category: "Food at home"}, {Category: "Fruits and vegetables"}}

	require.Len(t, FilterCategories(summary, ""), 3)

	got := FilterCategories(summary, "fruit veg")
	require.Len(t, got, 1)
	require.Equal(t, "Fruits and vegetables", got[0].Category)

	got = FilterCategories(summary, "FOOD")
	require.Len(t, got, 1)
	require.Equal(t, "Food at home", got[0].Category)
}
