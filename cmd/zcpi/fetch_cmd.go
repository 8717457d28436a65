package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cpidomain "github.com/zcpi-labs/zcpi/modules/cpi/domain"
	"github.com/zcpi-labs/zcpi/modules/cpi/infrastructure/bls"
	cpiservices "github.com/zcpi-labs/zcpi/modules/cpi/services"
	"github.com/zcpi-labs/zcpi/modules/market/infrastructure/coingecko"
	marketservices "github.com/zcpi-labs/zcpi/modules/market/services"
	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	zcpiservices "github.com/zcpi-labs/zcpi/modules/zcpi/services"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

func (a *app) fetchCPI(startYear, endYear int) stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		opts := a.conf.BLS
		if startYear == 0 {
			startYear = opts.StartYear
		}
		if endYear == 0 {
			endYear = opts.EndYear
		}
		if startYear > endYear {
			return outcome.Result{}, withCode(exitUsage, fmt.Errorf("--start-year %d is after --end-year %d", startYear, endYear))
		}
		svc := cpiservices.NewFetchService(bls.NewClient(opts.URL, nil), cpiservices.FetchOptions{
			Request: bls.Request{
				SeriesIDs: cpidomain.DefaultSeries,
				StartYear: startYear,
				EndYear:   endYear,
				Key:       opts.Key,
			},
			SnapshotDir: a.conf.Paths.RawDir("bls"),
			OutputPath:  a.conf.Paths.CPIMonthly(),
		}, log)
		return svc.Run(ctx)
	}
}

func (a *app) fetchPrice(days int) stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		opts := a.conf.CoinGecko
		if days == 0 {
			days = opts.TrailingDays
		}
		if days < 0 {
			return outcome.Result{}, withCode(exitUsage, fmt.Errorf("--days must be positive, got %d", days))
		}
		svc := marketservices.NewFetchService(coingecko.NewClient(opts.URL, nil), marketservices.FetchOptions{
			Request: coingecko.Request{
				VsCurrency:   opts.VsCurrency,
				TrailingDays: days,
				Key:          opts.Key,
			},
			SnapshotDir: a.conf.Paths.RawDir("coingecko"),
			OutputPath:  a.conf.Paths.PriceMonthly(),
		}, log)
		return svc.Run(ctx)
	}
}

func (a *app) merge(referenceMonth string) stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		if _, err := domain.MonthStart(referenceMonth); err != nil {
			return outcome.Result{}, withCode(exitUsage, fmt.Errorf("invalid --reference-month: %w", err))
		}
		svc := zcpiservices.NewMergeService(zcpiservices.MergeOptions{
			IndexPath:      a.conf.Paths.CPIMonthly(),
			PricePath:      a.conf.Paths.PriceMonthly(),
			OutputPath:     a.conf.Paths.Computed(),
			ReferenceMonth: referenceMonth,
		}, log)
		return svc.Run(ctx)
	}
}

func newFetchCPICmd(a *app) *cobra.Command {
	var startYear, endYear int
	cmd := &cobra.Command{
		Use:   "fetch-cpi",
		Short: "Fetch CPI food-at-home series from the BLS API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, cpiservices.Stage, a.fetchCPI(startYear, endYear))
		},
	}
	cmd.Flags().IntVar(&startYear, "start-year", 0, "first year to request (default BLS_START_YEAR)")
	cmd.Flags().IntVar(&endYear, "end-year", 0, "last year to request (default BLS_END_YEAR)")
	return cmd
}

func newFetchPriceCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "fetch-price",
		Short: "Fetch daily ZEC prices from CoinGecko and average them per month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, marketservices.Stage, a.fetchPrice(days))
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "trailing window without an API key (default COINGECKO_TRAILING_DAYS)")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var referenceMonth string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Join CPI and price tables and compute the ZCPI index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, zcpiservices.MergeStage, a.merge(referenceMonth))
		},
	}
	cmd.Flags().StringVar(&referenceMonth, "reference-month", domain.ReferenceMonth, "month whose mean value reads 100 (YYYY-MM)")
	return cmd
}
