package presentation

import (
	"math"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	"github.com/zcpi-labs/zcpi/modules/zcpi/services"
)

const (
	DataSheet    = "Data"
	SummarySheet = "Summary"
)

var dataHeader = []interface{}{"series_id", "date", "category", "cpi_value", "price_usd", "zcpi_value", "zcpi_norm"}

// WriteWorkbook saves the merged rows and the per-category summary to an
// xlsx file. Non-finite and missing numbers become empty cells.
func WriteWorkbook(path string, rows []domain.MergedRecord, summary []services.CategorySummary, metric domain.Metric) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "header style")
	}
	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	sw, err := f.NewStreamWriter(DataSheet)
	if err != nil {
		return errors.Wrap(err, "stream writer")
	}
	if err := sw.SetRow("A1", dataHeader, excelize.RowOpts{StyleID: bold}); err != nil {
		return errors.Wrap(err, "data header")
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.SeriesID,
			r.Month,
			nullableString(r.Category),
			cellNumber(r.CPIValue),
			cellNumber(r.PriceUSD),
			cellNumber(r.ZCPIValue),
			nil,
		}
		if r.ZCPINorm != nil {
			values[6] = cellNumber(*r.ZCPINorm)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return errors.Wrapf(err, "data row %d", i+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flush data sheet")
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return errors.Wrap(err, "summary sheet")
	}
	header := []interface{}{"Category", "Month", "CPI", "ZEC/USD", string(metric)}
	for _, p := range services.Periods {
		header = append(header, p.Label)
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return errors.Wrap(err, "summary header")
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", last, bold); err != nil {
		return errors.Wrap(err, "summary header style")
	}
	for i, s := range summary {
		row := []interface{}{s.Category, s.Month, pointer(s.CPI), pointer(s.PriceUSD), pointer(s.Value)}
		for _, c := range s.Changes {
			row = append(row, pointer(c.Percent))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return errors.Wrapf(err, "summary row %d", i+2)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir outputs")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func cellNumber(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func pointer(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
