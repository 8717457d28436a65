package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	"github.com/zcpi-labs/zcpi/pkg/logging"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

func TestMerge_ReferenceExample(t *testing.T) {
	res := Merge(
		[]domain.IndexRow{{SeriesID: "CUUR0000SAF11", Month: "2020-01", Value: 100}},
		[]domain.PriceRow{{Month: "2020-01", PriceUSD: 50}},
		domain.ReferenceMonth,
	)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	require.Equal(t, "Food at home", row.Category)
	require.Equal(t, 50.0, row.ZCPIValue)
	require.NotNil(t, res.Baseline)
	require.Equal(t, 50.0, *res.Baseline)
	require.NotNil(t, row.ZCPINorm)
	require.Equal(t, 100.0, *row.ZCPINorm)
}

func TestMerge_InnerJoinManyToOne(t *testing.T) {
	res := Merge(
		[]domain.IndexRow{
			{SeriesID: "CUUR0000SAF113", Month: "2020-02", Value: 200},
			{SeriesID: "CUUR0000SAF11", Month: "2020-01", Value: 100},
			{SeriesID: "CUUR0000SAF113", Month: "2020-01", Value: 125},
			{SeriesID: "CUUR0000SAF11", Month: "2019-12", Value: 99},
		},
		[]domain.PriceRow{
			{Month: "2020-01", PriceUSD: 50},
			{Month: "2020-02", PriceUSD: 80},
			{Month: "2020-03", PriceUSD: 90},
		},
		domain.ReferenceMonth,
	)

	require.Len(t, res.Rows, 3)
	var months, series []string
	for _, r := range res.Rows {
		months = append(months, r.Month)
		series = append(series, r.SeriesID)
		require.Equal(t, r.PriceUSD/(r.CPIValue/100), r.ZCPIValue)
	}
	require.Equal(t, []string{"2020-01", "2020-01", "2020-02"}, months)
	require.Equal(t, []string{"CUUR0000SAF11", "CUUR0000SAF113", "CUUR0000SAF113"}, series)

	// (50 + 40) / 2
	require.Equal(t, 45.0, *res.Baseline)
	require.InDelta(t, 100*40/45.0, *res.Rows[2].ZCPINorm, 1e-9)
}

func TestMerge_ScaleInvariant(t *testing.T) {
	cpi := []domain.IndexRow{
		{SeriesID: "CUUR0000SAF11", Month: "2020-01", Value: 100},
		{SeriesID: "CUUR0000SAF112", Month: "2020-01", Value: 97.3},
		{SeriesID: "CUUR0000SAF11", Month: "2021-06", Value: 104.2},
		{SeriesID: "CUUR0000SAF112", Month: "2021-06", Value: 110.9},
	}
	prices := []domain.PriceRow{{Month: "2020-01", PriceUSD: 41.7}, {Month: "2021-06", PriceUSD: 123.4}}
	scaled := make([]domain.PriceRow, len(prices))
	for i, p := range prices {
		scaled[i] = domain.PriceRow{Month: p.Month, PriceUSD: p.PriceUSD * 7.5}
	}

	a := Merge(cpi, prices, domain.ReferenceMonth)
	b := Merge(cpi, scaled, domain.ReferenceMonth)
	require.Len(t, b.Rows, len(a.Rows))
	for i := range a.Rows {
		require.InDelta(t, *a.Rows[i].ZCPINorm, *b.Rows[i].ZCPINorm, 1e-9)
	}
}

func TestMerge_MissingBaseline(t *testing.T) {
	res := Merge(
		[]domain.IndexRow{{SeriesID: "CUUR0000SAF11", Month: "2021-01", Value: 100}},
		[]domain.PriceRow{{Month: "2021-01", PriceUSD: 50}},
		domain.ReferenceMonth,
	)
	require.Nil(t, res.Baseline)
	require.Len(t, res.Rows, 1)
	require.Nil(t, res.Rows[0].ZCPINorm)
}

func TestMerge_ZeroBaseline(t *testing.T) {
	res := Merge(
		[]domain.IndexRow{{SeriesID: "CUUR0000SAF11", Month: "2020-01", Value: 100}},
		[]domain.PriceRow{{Month: "2020-01", PriceUSD: 0}},
		domain.ReferenceMonth,
	)
	require.Nil(t, res.Baseline)
	require.Nil(t, res.Rows[0].ZCPINorm)
}

func TestMerge_NonFiniteValuesPropagate(t *testing.T) {
	res := Merge(
		[]domain.IndexRow{
			{SeriesID: "CUUR0000SAF11", Month: "2020-01", Value: 100},
			{SeriesID: "CUUR0000SAF111", Month: "2020-01", Value: 0},
			{SeriesID: "CUUR0000SAF112", Month: "2020-01", Value: math.NaN()},
			{SeriesID: "UNKNOWN", Month: "2020-02", Value: 0},
		},
		[]domain.PriceRow{{Month: "2020-01", PriceUSD: 50}, {Month: "2020-02", PriceUSD: 0}},
		domain.ReferenceMonth,
	)

	require.Len(t, res.Rows, 4)
	require.True(t, math.IsInf(res.Rows[1].ZCPIValue, 1))
	require.True(t, math.IsNaN(res.Rows[2].ZCPIValue))
	require.True(t, math.IsNaN(res.Rows[3].ZCPIValue))
	require.Empty(t, res.Rows[3].Category)
	// +Inf in the reference month makes the mean non-finite.
	require.Nil(t, res.Baseline)
}

func newMergeService(t *testing.T, cpi, prices string) (*MergeService, string) {
	t.Helper()
	dir := t.TempDir()
	cpiPath := filepath.Join(dir, "cpi_monthly.csv")
	pricePath := filepath.Join(dir, "zec_monthly.csv")
	require.NoError(t, os.WriteFile(cpiPath, []byte(cpi), 0o644))
	require.NoError(t, os.WriteFile(pricePath, []byte(prices), 0o644))
	out := filepath.Join(dir, "zcpi_computed.csv")
	return NewMergeService(MergeOptions{IndexPath: cpiPath, PricePath: pricePath, OutputPath: out}, logging.Discard()), out
}

func TestMergeService_DeterministicOutput(t *testing.T) {
	s, out := newMergeService(t,
		"series_id,year,periodName,value,date\n"+
			"CUUR0000SAF113,2020,February,200,2020-02-01\n"+
			"CUUR0000SAF11,2020,January,100,2020-01-01\n"+
			"CUUR0000SAF111,2020,January,0,2020-01-01\n",
		"month,price_usd\n2020-01,50\n2020-02,80\n")

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, outcome.Success, res.Kind)
	require.Equal(t, 3, res.Rows)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, "series_id,date,category,cpi_value,price_usd,zcpi_value,zcpi_norm\n"+
		"CUUR0000SAF11,2020-01,Food at home,100,50,50,\n"+
		"CUUR0000SAF111,2020-01,Cereals and bakery,0,50,inf,\n"+
		"CUUR0000SAF113,2020-02,Dairy,200,80,40,\n", string(first))
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "baseline (2020-01) missing")
}

func TestMergeService_MissingInput(t *testing.T) {
	s := NewMergeService(MergeOptions{
		IndexPath:  filepath.Join(t.TempDir(), "absent.csv"),
		PricePath:  filepath.Join(t.TempDir(), "absent.csv"),
		OutputPath: filepath.Join(t.TempDir(), "out.csv"),
	}, logging.Discard())

	_, err := s.Run(context.Background())
	require.Error(t, err)
}
