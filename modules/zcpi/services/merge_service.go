package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	cpidomain "github.com/zcpi-labs/zcpi/modules/cpi/domain"
	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	"github.com/zcpi-labs/zcpi/modules/zcpi/infrastructure/tables"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const MergeStage = "merge"

type MergeResult struct {
	Rows []domain.MergedRecord
	// Baseline is nil when the reference month has no usable value or its
	// mean is zero or not finite.
	Baseline *float64
}

// Merge joins index rows to monthly prices on the month key (inner,
// many-to-one), computes price / (cpi / 100) per row and rescales every row by
// one global baseline taken from referenceMonth. Rows come back in ascending
// month order; ties keep their input order.
func Merge(cpi []domain.IndexRow, prices []domain.PriceRow, referenceMonth string) MergeResult {
	byMonth := make(map[string][]domain.PriceRow, len(prices))
	for _, p := range prices {
		byMonth[p.Month] = append(byMonth[p.Month], p)
	}

	rows := make([]domain.MergedRecord, 0, len(cpi))
	for _, c := range cpi {
		category, _ := cpidomain.Category(c.SeriesID)
		for _, p := range byMonth[c.Month] {
			rows = append(rows, domain.MergedRecord{
				SeriesID:  c.SeriesID,
				Month:     c.Month,
				Category:  category,
				CPIValue:  c.Value,
				PriceUSD:  p.PriceUSD,
				ZCPIValue: p.PriceUSD / (c.Value / 100),
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })

	res := MergeResult{Rows: rows, Baseline: baseline(rows, referenceMonth)}
	if res.Baseline != nil {
		for i := range rows {
			norm := 100 * rows[i].ZCPIValue / *res.Baseline
			rows[i].ZCPINorm = &norm
		}
	}
	return res
}

// baseline is the mean of the non-NaN zcpi values in the reference month.
func baseline(rows []domain.MergedRecord, referenceMonth string) *float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if r.Month != referenceMonth || math.IsNaN(r.ZCPIValue) {
			continue
		}
		sum += r.ZCPIValue
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil
	}
	return &mean
}

type MergeOptions struct {
	IndexPath      string
	PricePath      string
	OutputPath     string
	ReferenceMonth string
}

type MergeService struct {
	opts   MergeOptions
	logger logrus.FieldLogger
}

func NewMergeService(opts MergeOptions, logger logrus.FieldLogger) *MergeService {
	if opts.ReferenceMonth == "" {
		opts.ReferenceMonth = domain.ReferenceMonth
	}
	return &MergeService{opts: opts, logger: logger}
}

// Run reads both processed tables and overwrites the computed table. A missing
// baseline is reported as a warning on the result, not as an error.
func (s *MergeService) Run(_ context.Context) (outcome.Result, error) {
	index, err := tables.ReadIndex(s.opts.IndexPath)
	if err != nil {
		return outcome.Result{Stage: MergeStage}, err
	}
	prices, err := tables.ReadPrices(s.opts.PricePath)
	if err != nil {
		return outcome.Result{Stage: MergeStage}, err
	}

	merged := Merge(index, prices, s.opts.ReferenceMonth)
	res := outcome.Succeeded(MergeStage, s.opts.OutputPath, len(merged.Rows))

	log := s.logger.WithFields(logrus.Fields{
		"cpi_rows":   len(index),
		"price_rows": len(prices),
		"merged":     len(merged.Rows),
	})
	if len(merged.Rows) == 0 {
		res.Warn("no overlapping months between CPI and price tables")
		log.Warn("no overlapping months between CPI and price tables")
	}
	if merged.Baseline == nil {
		msg := fmt.Sprintf("baseline (%s) missing, normalization skipped", s.opts.ReferenceMonth)
		res.Warn(msg)
		log.Warn(msg)
	} else {
		log = log.WithField("baseline", *merged.Baseline)
	}

	if err := tables.WriteComputed(s.opts.OutputPath, merged.Rows); err != nil {
		return outcome.Result{Stage: MergeStage}, err
	}
	log.WithField("path", s.opts.OutputPath).Info("saved merged ZCPI data")
	return res, nil
}
