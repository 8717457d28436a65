package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

type stageReport struct {
	RunID string `json:"run_id"`
	outcome.Result
}

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
