package presentation

import (
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
)

const (
	ChartID    = "zcpi-chart"
	ChartTitle = "ZCPI: Purchasing Power of 1 ZEC Over Time"
)

// SelectMetric prefers the normalized column unless every row lacks it.
func SelectMetric(rows []domain.MergedRecord) domain.Metric {
	for _, r := range rows {
		if r.ZCPINorm != nil && !math.IsNaN(*r.ZCPINorm) {
			return domain.MetricNorm
		}
	}
	return domain.MetricValue
}

// BuildChart draws one smoothed line per category against month. Months a
// category lacks, and non-finite values, are left as gaps.
func BuildChart(rows []domain.MergedRecord, metric domain.Metric) *charts.Line {
	monthSet := make(map[string]struct{})
	values := make(map[string]map[string]float64)
	for _, r := range rows {
		if r.Category == "" {
			continue
		}
		monthSet[r.Month] = struct{}{}
		v, ok := r.Value(metric)
		if !ok {
			continue
		}
		if values[r.Category] == nil {
			values[r.Category] = make(map[string]float64)
		}
		values[r.Category][r.Month] = v
	}
	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "ZCPI",
			ChartID:   ChartID,
			Theme:     types.ThemeWesteros,
			Width:     "1200px",
			Height:    "640px",
		}),
		charts.WithTitleOpts(opts.Title{Title: ChartTitle, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: metric.Label()}),
	)
	line.SetXAxis(months)

	categories := domain.Categories(rows)
	colors := domain.ColorMap(categories)
	for _, category := range categories {
		data := make([]opts.LineData, 0, len(months))
		for _, m := range months {
			if v, ok := values[category][m]; ok {
				data = append(data, opts.LineData{Value: v})
			} else {
				data = append(data, opts.LineData{Value: "-"})
			}
		}
		line.AddSeries(category, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[category]}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colors[category], Width: 2}),
		)
	}
	return line
}

// RenderChart writes the chart as a standalone HTML page.
func RenderChart(w io.Writer, rows []domain.MergedRecord) (domain.Metric, error) {
	metric := SelectMetric(rows)
	return metric, BuildChart(rows, metric).Render(w)
}
