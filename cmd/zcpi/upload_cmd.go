package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zcpi-labs/zcpi/modules/upload/infrastructure/postgres"
	"github.com/zcpi-labs/zcpi/modules/upload/infrastructure/postgrest"
	"github.com/zcpi-labs/zcpi/modules/upload/infrastructure/sqlite"
	"github.com/zcpi-labs/zcpi/modules/upload/services"
	"github.com/zcpi-labs/zcpi/pkg/artifacts"
	"github.com/zcpi-labs/zcpi/pkg/configuration"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const publishStage = "publish"

type closableStore interface {
	services.Store
	io.Closer
}

type restStore struct {
	*postgrest.Store
}

func (restStore) Close() error { return nil }

func openStore(ctx context.Context, opts configuration.StoreOptions) (closableStore, error) {
	if err := opts.Validate(); err != nil {
		return nil, withCode(exitUsage, err)
	}
	conflict := opts.ConflictColumns()
	switch opts.Backend {
	case configuration.StoreBackendPostgres:
		s, err := postgres.Open(ctx, opts.DSN, opts.Table, conflict)
		if err != nil {
			return nil, withCode(exitStoreWrite, err)
		}
		return s, nil
	case configuration.StoreBackendSQLite:
		s, err := sqlite.Open(ctx, opts.SQLitePath, opts.Table, conflict)
		if err != nil {
			return nil, withCode(exitStoreWrite, err)
		}
		return s, nil
	default:
		s, err := postgrest.New(opts.URL, opts.Key, opts.Table, conflict, nil)
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		return restStore{s}, nil
	}
}

func (a *app) upload() stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		store, err := openStore(ctx, a.conf.Store)
		if err != nil {
			return outcome.Result{}, err
		}
		defer func() { _ = store.Close() }()

		svc := services.NewUploadService(store, services.UploadOptions{
			InputPath: a.conf.Paths.Computed(),
			BatchSize: a.conf.Store.BatchSize,
		}, a.metrics, log)
		return svc.Run(ctx)
	}
}

func (a *app) publish() stageFunc {
	return func(ctx context.Context, log logrus.FieldLogger) (outcome.Result, error) {
		opts := a.conf.Artifacts
		if err := opts.Validate(); err != nil {
			return outcome.Result{}, withCode(exitUsage, err)
		}
		files, err := artifacts.Collect(a.conf.Paths.OutputsDir(), a.conf.Paths.Computed())
		if err != nil {
			return outcome.Result{}, err
		}
		if len(files) == 0 {
			return outcome.Empty(publishStage, "nothing to publish"), nil
		}
		client, err := artifacts.NewS3Client(ctx, opts)
		if err != nil {
			return outcome.Result{}, withCode(exitUsage, err)
		}
		published, err := artifacts.NewPublisher(client, opts.Bucket, opts.Prefix, log).Publish(ctx, files)
		if err != nil {
			return outcome.Result{Rows: len(published)}, withCode(exitRemote, err)
		}
		return outcome.Succeeded(publishStage, fmt.Sprintf("s3://%s/%s", opts.Bucket, opts.Prefix), len(published)), nil
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upsert the merged table into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, services.Stage, a.upload())
		},
	}
}

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Copy outputs and the merged table to an S3-compatible bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAndReport(cmd, publishStage, a.publish())
		},
	}
}
