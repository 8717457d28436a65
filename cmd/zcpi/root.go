package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zcpi-labs/zcpi/pkg/configuration"
	"github.com/zcpi-labs/zcpi/pkg/logging"
	"github.com/zcpi-labs/zcpi/pkg/metrics"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

// app is the per-invocation state shared by every sub-command.
type app struct {
	conf    *configuration.Configuration
	logger  *logrus.Entry
	metrics *metrics.Recorder
	runID   string

	shutdownTracing func()
}

func (a *app) init(envFiles []string) error {
	conf, err := configuration.Load(envFiles)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
	}
	a.conf = conf
	a.runID = uuid.NewString()
	a.logger = conf.Logger().WithField("run_id", a.runID)
	a.metrics = metrics.New()
	a.shutdownTracing = func() {}
	if conf.OpenTelemetry.Enabled {
		a.shutdownTracing = logging.SetupTracing(context.Background(), conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
	}
	return nil
}

// close flushes traces and metrics. Safe to call when init failed.
func (a *app) close() {
	if a.conf == nil {
		return
	}
	a.shutdownTracing()
	if err := a.metrics.WriteTextfile(a.conf.MetricsTextfile); err != nil {
		a.logger.WithError(err).Warn("failed to write metrics textfile")
	}
	a.conf.Unload()
}

type stageFunc func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error)

// runStage wraps one stage in a span, records its metrics and maps its error
// to an exit code.
func (a *app) runStage(ctx context.Context, stage string, fn stageFunc) (outcome.Result, error) {
	started := time.Now()
	ctx, span := logging.StartSpan(ctx, stage, attribute.String("run_id", a.runID))
	defer span.End()

	log := a.logger.WithField("stage", stage)
	res, err := fn(ctx, log)
	if res.Stage == "" {
		res.Stage = stage
	}
	a.metrics.Observe(res, started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Error("stage failed")
		return res, classify(err)
	}
	span.SetAttributes(
		attribute.String("outcome", string(res.Kind)),
		attribute.Int("rows", res.Rows),
	)
	if !res.OK() {
		log.WithField("outcome", res.Kind).Warn(res.Message)
	}
	return res, nil
}

// runAndReport runs a single stage and prints its JSON summary line.
func (a *app) runAndReport(cmd *cobra.Command, stage string, fn stageFunc) error {
	res, err := a.runStage(cmd.Context(), stage, fn)
	if err != nil {
		return err
	}
	return writeJSONLine(cmd.OutOrStdout(), stageReport{RunID: a.runID, Result: res})
}

func newRootCmd(a *app) *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:           "zcpi",
		Short:         "ZEC purchasing-power index pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(envFiles)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "env files to load before reading the environment")

	cmd.AddCommand(newFetchCPICmd(a))
	cmd.AddCommand(newFetchPriceCmd(a))
	cmd.AddCommand(newMergeCmd(a))
	cmd.AddCommand(newChartCmd(a))
	cmd.AddCommand(newSummaryCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newUploadCmd(a))
	cmd.AddCommand(newPublishCmd(a))
	cmd.AddCommand(newRunCmd(a))
	return cmd
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	a := &app{}
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	return cmd.ExecuteContext(ctx)
}

func Execute() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
