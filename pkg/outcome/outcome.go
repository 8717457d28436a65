// Package outcome describes how a pipeline stage ended when it did not fail
// outright. Hard failures (transport, storage) are returned as errors; the
// soft ones below leave any previous output untouched.
package outcome

type Kind string

const (
	Success   Kind = "success"
	NoData    Kind = "no_data"
	Malformed Kind = "malformed_response"
)

type Result struct {
	Stage    string   `json:"stage"`
	Kind     Kind     `json:"outcome"`
	Rows     int      `json:"rows"`
	Output   string   `json:"output,omitempty"`
	Snapshot string   `json:"snapshot,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Message  string   `json:"message,omitempty"`
}

func (r Result) OK() bool {
	return r.Kind == Success
}

func Succeeded(stage, output string, rows int) Result {
	return Result{Stage: stage, Kind: Success, Output: output, Rows: rows}
}

func Empty(stage, msg string) Result {
	return Result{Stage: stage, Kind: NoData, Message: msg}
}

func MalformedResponse(stage, msg string) Result {
	return Result{Stage: stage, Kind: Malformed, Message: msg}
}

// Warn appends a non-fatal diagnostic.
func (r *Result) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
