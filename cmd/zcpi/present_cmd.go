package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	"github.com/zcpi-labs/zcpi/modules/zcpi/infrastructure/tables"
	"github.com/zcpi-labs/zcpi/modules/zcpi/presentation"
	"github.com/zcpi-labs/zcpi/modules/zcpi/services"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const (
	chartStage  = "chart"
	exportStage = "export"
)

func (a *app) chartPath() string {
	return filepath.Join(a.conf.Paths.OutputsDir(), "zcpi_chart.html")
}

func (a *app) chart(png bool) stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		rows, err := tables.ReadComputed(a.conf.Paths.Computed())
		if err != nil {
			return outcome.Result{}, err
		}
		path := a.chartPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return outcome.Result{}, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
		f, err := os.Create(path)
		if err != nil {
			return outcome.Result{}, err
		}
		metric, err := presentation.RenderChart(f, rows)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return outcome.Result{}, fmt.Errorf("render chart: %w", err)
		}
		log.WithFields(logrus.Fields{"path": path, "metric": metric}).Info("interactive chart saved")

		res := outcome.Succeeded(chartStage, path, len(rows))
		if png {
			img, err := presentation.Snapshot(ctx, path, 30*time.Second)
			if err != nil {
				res.Warn(err.Error())
				log.WithError(err).Warn("chart snapshot skipped")
				return res, nil
			}
			pngPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
			if err := os.WriteFile(pngPath, img, 0o644); err != nil {
				return outcome.Result{}, err
			}
			log.WithField("path", pngPath).Info("chart snapshot saved")
		}
		return res, nil
	}
}

func (a *app) export() stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		rows, err := tables.ReadComputed(a.conf.Paths.Computed())
		if err != nil {
			return outcome.Result{}, err
		}
		metric := presentation.SelectMetric(rows)
		path := filepath.Join(a.conf.Paths.OutputsDir(), "zcpi_computed.xlsx")
		if err := presentation.WriteWorkbook(path, rows, services.Summarize(rows, metric), metric); err != nil {
			return outcome.Result{}, err
		}
		log.WithField("path", path).Info("workbook saved")
		return outcome.Succeeded(exportStage, path, len(rows)), nil
	}
}

func newChartCmd(a *app) *cobra.Command {
	var png bool
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the merged table as an interactive line chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, chartStage, a.chart(png))
		},
	}
	cmd.Flags().BoolVar(&png, "png", false, "also save a PNG snapshot (needs Chrome)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the merged table and summary to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, exportStage, a.export())
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		category string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print latest values and percentage changes per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := tables.ReadComputed(a.conf.Paths.Computed())
			if err != nil {
				return err
			}
			metric := presentation.SelectMetric(rows)
			summary := services.FilterCategories(services.Summarize(rows, metric), category)
			if asJSON {
				return writeJSONLine(cmd.OutOrStdout(), map[string]any{
					"run_id":     a.runID,
					"metric":     metric,
					"categories": summary,
				})
			}
			return printSummary(cmd.OutOrStdout(), summary, metric)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON line instead of a table")
	cmd.Flags().StringVar(&category, "category", "", "only categories fuzzy-matching this text")
	return cmd
}

func printSummary(w io.Writer, summary []services.CategorySummary, metric domain.Metric) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Category", "Month", "CPI", "ZEC/USD", string(metric)}
	for _, p := range services.Periods {
		header = append(header, p.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, s := range summary {
		cells := []string{
			s.Category,
			s.Month,
			services.FormatFixed(s.CPI, 2),
			services.FormatUSD(s.PriceUSD),
			services.FormatFixed(s.Value, 4),
		}
		for _, c := range s.Changes {
			cells = append(cells, services.FormatPercent(c.Percent))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}
