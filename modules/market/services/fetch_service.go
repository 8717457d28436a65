package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/zcpi-labs/zcpi/modules/market/domain"
	"github.com/zcpi-labs/zcpi/modules/market/infrastructure/coingecko"
	"github.com/zcpi-labs/zcpi/pkg/csvio"
	"github.com/zcpi-labs/zcpi/pkg/fsutil"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const Stage = "fetch-price"

var Header = []string{"month", "price_usd"}

type Fetcher interface {
	Fetch(ctx context.Context, req coingecko.Request) ([]byte, error)
}

type FetchOptions struct {
	Request     coingecko.Request
	SnapshotDir string
	OutputPath  string
}

type FetchService struct {
	fetcher Fetcher
	opts    FetchOptions
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewFetchService(fetcher Fetcher, opts FetchOptions, logger logrus.FieldLogger) *FetchService {
	return &FetchService{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Run downloads the daily ZEC series, snapshots it and writes monthly means.
func (s *FetchService) Run(ctx context.Context) (outcome.Result, error) {
	s.logger.WithFields(logrus.Fields{
		"vs_currency": s.opts.Request.VsCurrency,
		"days":        s.opts.Request.Days(),
	}).Info("fetching ZEC prices from CoinGecko")

	raw, err := s.fetcher.Fetch(ctx, s.opts.Request)
	if err != nil {
		return outcome.Result{Stage: Stage}, err
	}

	snapshot, err := fsutil.WriteSnapshot(s.opts.SnapshotDir, "zec", s.now(), raw)
	if err != nil {
		return outcome.Result{Stage: Stage}, errors.Wrap(err, "save raw CoinGecko response")
	}
	s.logger.WithField("path", snapshot).Info("saved raw CoinGecko JSON")

	daily, err := coingecko.DecodePrices(raw)
	if err != nil {
		res := outcome.MalformedResponse(Stage, err.Error())
		res.Snapshot = snapshot
		s.logger.WithError(err).Warn("unexpected CoinGecko response")
		return res, nil
	}

	monthly := domain.MonthlyAverages(daily)
	if len(monthly) == 0 {
		res := outcome.Empty(Stage, "no ZEC prices found in API response")
		res.Snapshot = snapshot
		s.logger.Warn(res.Message)
		return res, nil
	}

	rows := make([][]string, 0, len(monthly))
	for _, m := range monthly {
		rows = append(rows, []string{m.Month, csvio.FormatFloat(m.PriceUSD)})
	}
	if err := csvio.WriteFile(s.opts.OutputPath, Header, rows); err != nil {
		return outcome.Result{Stage: Stage}, errors.Wrapf(err, "write %s", s.opts.OutputPath)
	}
	s.logger.WithFields(logrus.Fields{
		"path":   s.opts.OutputPath,
		"months": len(monthly),
		"days":   len(daily),
	}).Info("saved monthly ZEC prices")

	res := outcome.Succeeded(Stage, s.opts.OutputPath, len(monthly))
	res.Snapshot = snapshot
	return res, nil
}
