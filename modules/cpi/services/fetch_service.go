package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/zcpi-labs/zcpi/modules/cpi/domain"
	"github.com/zcpi-labs/zcpi/modules/cpi/infrastructure/bls"
	"github.com/zcpi-labs/zcpi/pkg/csvio"
	"github.com/zcpi-labs/zcpi/pkg/fsutil"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const Stage = "fetch-cpi"

// Header is the column layout of the processed price-index file.
var Header = []string{"series_id", "year", "periodName", "value", "date"}

type Fetcher interface {
	Fetch(ctx context.Context, req bls.Request) ([]byte, error)
}

type FetchOptions struct {
	Request     bls.Request
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

// Run fetches the configured series, snapshots the raw response and rewrites
// the processed file. Transport failures and non-2xx statuses are errors; an
// undecodable body or an empty record set is reported through the outcome and
// leaves the previous processed file in place.
func (s *FetchService) Run(ctx context.Context) (outcome.Result, error) {
	s.logger.WithFields(logrus.Fields{
		"series":     len(s.opts.Request.SeriesIDs),
		"start_year": s.opts.Request.StartYear,
		"end_year":   s.opts.Request.EndYear,
		"keyed":      s.opts.Request.Key != "",
	}).Info("fetching CPI data from BLS API")

	raw, err := s.fetcher.Fetch(ctx, s.opts.Request)
	if err != nil {
		return outcome.Result{Stage: Stage}, err
	}

	snapshot, err := fsutil.WriteSnapshot(s.opts.SnapshotDir, "bls", s.now(), raw)
	if err != nil {
		return outcome.Result{Stage: Stage}, errors.Wrap(err, "save raw BLS response")
	}
	s.logger.WithField("path", snapshot).Info("saved raw BLS JSON")

	resp, err := bls.Decode(raw)
	if err != nil {
		res := outcome.MalformedResponse(Stage, err.Error())
		res.Snapshot = snapshot
		s.logger.WithError(err).Warn("BLS response is not valid JSON")
		return res, nil
	}
	if resp.Status != "" && resp.Status != bls.StatusSucceeded {
		s.logger.WithFields(logrus.Fields{
			"status":   resp.Status,
			"messages": resp.Message,
		}).Warn("BLS reported a non-success status")
	}

	records, dropped := resp.Flatten()
	if dropped > 0 {
		s.logger.WithField("dropped", dropped).Debug("skipped data points without a monthly date or numeric value")
	}
	if len(records) == 0 {
		res := outcome.Empty(Stage, "no CPI records found in API response")
		res.Snapshot = snapshot
		s.logger.Warn(res.Message)
		return res, nil
	}

	if err := csvio.WriteFile(s.opts.OutputPath, Header, encodeRecords(records)); err != nil {
		return outcome.Result{Stage: Stage}, errors.Wrapf(err, "write %s", s.opts.OutputPath)
	}
	s.logger.WithFields(logrus.Fields{
		"path": s.opts.OutputPath,
		"rows": len(records),
	}).Info("saved CPI data")

	res := outcome.Succeeded(Stage, s.opts.OutputPath, len(records))
	res.Snapshot = snapshot
	return res, nil
}

func encodeRecords(records []domain.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.SeriesID,
			r.Year,
			r.PeriodName,
			csvio.FormatFloat(r.Value),
			r.Date.Format(domain.DateLayout),
		})
	}
	return rows
}
