package main

import (
	"net/url"

	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/upload/services"
	"github.com/zcpi-labs/zcpi/pkg/remote"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitRemote     = 4
	exitStoreWrite = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// classify attaches an exit code to an error returned by a stage. Errors that
// already carry one are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	var be *services.BatchError
	var se *remote.StatusError
	var ue *url.Error
	switch {
	case errors.Is(err, services.ErrEncoding):
		return withCode(exitValidation, err)
	case errors.As(err, &be):
		return withCode(exitStoreWrite, err)
	case errors.As(err, &se), errors.As(err, &ue):
		return withCode(exitRemote, err)
	}
	return err
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
