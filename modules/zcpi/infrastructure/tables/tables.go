// Package tables reads and writes the processed CSV files the pipeline stages
// exchange. Each stage owns its output; these helpers only fix the columns.
package tables

import (
	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	"github.com/zcpi-labs/zcpi/pkg/csvio"
)

var (
	IndexColumns    = []string{"series_id", "value", "date"}
	PriceColumns    = []string{"month", "price_usd"}
	ComputedColumns = []string{"series_id", "date", "category", "cpi_value", "price_usd", "zcpi_value", "zcpi_norm"}
)

// ReadIndex loads the processed price-index file. Any date spelling accepted
// by domain.NormalizeMonth is reduced to its month key.
func ReadIndex(path string) ([]domain.IndexRow, error) {
	var rows []domain.IndexRow
	err := csvio.ReadAll(path, IndexColumns, func(r csvio.Row) error {
		month, err := domain.NormalizeMonth(r.Get("date"))
		if err != nil {
			return err
		}
		value, err := csvio.ParseFloat(r.Get("value"))
		if err != nil {
			return errors.Wrap(err, "value")
		}
		rows = append(rows, domain.IndexRow{
			SeriesID: r.Get("series_id"),
			Month:    month,
			Value:    value,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return rows, nil
}

func ReadPrices(path string) ([]domain.PriceRow, error) {
	var rows []domain.PriceRow
	err := csvio.ReadAll(path, PriceColumns, func(r csvio.Row) error {
		month, err := domain.NormalizeMonth(r.Get("month"))
		if err != nil {
			return err
		}
		price, err := csvio.ParseFloat(r.Get("price_usd"))
		if err != nil {
			return errors.Wrap(err, "price_usd")
		}
		rows = append(rows, domain.PriceRow{Month: month, PriceUSD: price})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return rows, nil
}

// ReadComputed loads the merged table. Only date, category and zcpi_value are
// required; a file without zcpi_norm loads with every norm nil.
func ReadComputed(path string) ([]domain.MergedRecord, error) {
	var rows []domain.MergedRecord
	err := csvio.ReadAll(path, []string{"date", "category", "zcpi_value"}, func(r csvio.Row) error {
		month, err := domain.NormalizeMonth(r.Get("date"))
		if err != nil {
			return err
		}
		rec := domain.MergedRecord{
			SeriesID: r.Get("series_id"),
			Month:    month,
			Category: r.Get("category"),
		}
		if rec.CPIValue, err = csvio.ParseFloat(r.Get("cpi_value")); err != nil {
			return errors.Wrap(err, "cpi_value")
		}
		if rec.PriceUSD, err = csvio.ParseFloat(r.Get("price_usd")); err != nil {
			return errors.Wrap(err, "price_usd")
		}
		if rec.ZCPIValue, err = csvio.ParseFloat(r.Get("zcpi_value")); err != nil {
			return errors.Wrap(err, "zcpi_value")
		}
		if rec.ZCPINorm, err = csvio.ParseNullable(r.Get("zcpi_norm")); err != nil {
			return errors.Wrap(err, "zcpi_norm")
		}
		rows = append(rows, rec)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return rows, nil
}

// WriteComputed overwrites path with rows in their given order.
func WriteComputed(path string, rows []domain.MergedRecord) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.SeriesID,
			r.Month,
			r.Category,
			csvio.FormatFloat(r.CPIValue),
			csvio.FormatFloat(r.PriceUSD),
			csvio.FormatFloat(r.ZCPIValue),
			csvio.FormatNullable(r.ZCPINorm),
		})
	}
	if err := csvio.WriteFile(path, ComputedColumns, out); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
