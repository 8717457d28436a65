package services

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
	"github.com/zcpi-labs/zcpi/modules/zcpi/infrastructure/tables"
	"github.com/zcpi-labs/zcpi/pkg/metrics"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const Stage = "upload"

const DefaultBatchSize = 500

// Store upserts one batch keyed by the configured conflict columns.
type Store interface {
	Name() string
	Upsert(ctx context.Context, records []domain.Record) error
}

// BatchError reports the batch that stopped an upload.
type BatchError struct {
	Index int
	Sent  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d rows sent: %v", e.Index, e.Sent, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type Uploader struct {
	store     Store
	batchSize int
	metrics   *metrics.Recorder
	logger    logrus.FieldLogger
}

func NewUploader(store Store, batchSize int, rec *metrics.Recorder, logger logrus.FieldLogger) *Uploader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Uploader{store: store, batchSize: batchSize, metrics: rec, logger: logger}
}

// Upload sends records in order, batchSize at a time. The first failing batch
// ends the upload; earlier batches stay written.
func (u *Uploader) Upload(ctx context.Context, records []domain.Record) (int, error) {
	sent := 0
	for i, start := 0, 0; start < len(records); i, start = i+1, start+u.batchSize {
		end := start + u.batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		if err := u.store.Upsert(ctx, chunk); err != nil {
			u.metrics.Batch(u.store.Name(), false)
			return sent, &BatchError{Index: i, Sent: sent, Err: err}
		}
		u.metrics.Batch(u.store.Name(), true)
		sent += len(chunk)
		u.logger.WithFields(logrus.Fields{
			"batch": i,
			"rows":  len(chunk),
		}).Info("uploaded/updated rows")
	}
	return sent, nil
}

type UploadOptions struct {
	InputPath string
	BatchSize int
}

type UploadService struct {
	store   Store
	opts    UploadOptions
	metrics *metrics.Recorder
	logger  logrus.FieldLogger
}

func NewUploadService(store Store, opts UploadOptions, rec *metrics.Recorder, logger logrus.FieldLogger) *UploadService {
	return &UploadService{store: store, opts: opts, metrics: rec, logger: logger}
}

// Run loads the computed table, scrubs it, checks that a sample encodes and
// then upserts every record. An encoding failure sends nothing.
func (s *UploadService) Run(ctx context.Context) (outcome.Result, error) {
	rows, err := tables.ReadComputed(s.opts.InputPath)
	if err != nil {
		return outcome.Result{Stage: Stage}, err
	}
	log := s.logger.WithField("backend", s.store.Name())
	log.WithField("invalid", CountInvalid(rows)).Info("invalid rows before cleaning")

	return s.Send(ctx, Scrub(rows))
}

// Send checks that a sample of records encodes and then upserts them all.
// When the sample fails to encode no batch reaches the store.
func (s *UploadService) Send(ctx context.Context, records []domain.Record) (outcome.Result, error) {
	log := s.logger.WithField("backend", s.store.Name())
	if err := ValidateSample(records, SampleSize); err != nil {
		return outcome.Result{Stage: Stage}, err
	}
	log.Debug("JSON encoding validation passed")

	sent, err := NewUploader(s.store, s.opts.BatchSize, s.metrics, log).Upload(ctx, records)
	if err != nil {
		return outcome.Result{Stage: Stage, Rows: sent}, errors.Wrap(err, "upload")
	}
	log.WithField("rows", sent).Info("upload complete")
	return outcome.Succeeded(Stage, s.store.Name(), sent), nil
}
