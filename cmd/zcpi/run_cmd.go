package main

import (
	"github.com/spf13/cobra"

	cpiservices "github.com/zcpi-labs/zcpi/modules/cpi/services"
	marketservices "github.com/zcpi-labs/zcpi/modules/market/services"
	uploadservices "github.com/zcpi-labs/zcpi/modules/upload/services"
	"github.com/zcpi-labs/zcpi/modules/zcpi/domain"
	zcpiservices "github.com/zcpi-labs/zcpi/modules/zcpi/services"
	"github.com/zcpi-labs/zcpi/pkg/fsutil"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

type pipelineReport struct {
	RunID     string           `json:"run_id"`
	Completed bool             `json:"completed"`
	Stages    []outcome.Result `json:"stages"`
}

type pipelineStep struct {
	stage string
	fn    stageFunc
}

func newRunCmd(a *app) *cobra.Command {
	var withUpload, png bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fetch-cpi, fetch-price, merge and chart in order",
		Long: "Run the pipeline stages in order. The first stage that ends without " +
			"success stops the run; its outcome is reported and the exit code is 0 " +
			"unless the stage failed outright.",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := []pipelineStep{
				{cpiservices.Stage, a.fetchCPI(0, 0)},
				{marketservices.Stage, a.fetchPrice(0)},
				{zcpiservices.MergeStage, a.merge(domain.ReferenceMonth)},
				{chartStage, a.chart(png)},
			}
			if withUpload {
				steps = append(steps, pipelineStep{uploadservices.Stage, a.upload()})
			}

			report := pipelineReport{RunID: a.runID, Completed: true}
			var stageErr error
			for _, step := range steps {
				res, err := a.runStage(cmd.Context(), step.stage, step.fn)
				if err != nil {
					res.Message = err.Error()
					report.Stages = append(report.Stages, res)
					report.Completed = false
					stageErr = err
					break
				}
				report.Stages = append(report.Stages, res)
				if !res.OK() {
					report.Completed = false
					break
				}
			}
			if err := fsutil.WriteJSONFile(a.conf.Paths.RunReport(a.runID), report); err != nil {
				a.logger.WithError(err).Warn("failed to save run report")
			}
			if err := writeJSONLine(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return stageErr
		},
	}
	cmd.Flags().BoolVar(&withUpload, "upload", false, "append the upload stage")
	cmd.Flags().BoolVar(&png, "png", false, "also save a PNG chart snapshot")
	return cmd
}
