package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/zcpi-labs/zcpi/modules/upload/services"
	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

const blsPayload = `{"status":"REQUEST_SUCCEEDED","message":[],"Results":{"series":[
	{"seriesID":"CUUR0000SAF11","data":[
		{"year":"2020","period":"M02","periodName":"February","value":"125.0"},
		{"year":"2020","period":"M01","periodName":"January","value":"100.0"},
		{"year":"2020","period":"M13","periodName":"Annual","value":"110.0"}]},
	{"seriesID":"CUUR0000SAF113","data":[
		{"year":"2020","period":"M01","periodName":"January","value":"100.0"}]}]}}`

// 2020-01-01, 2020-01-02, 2020-02-01, 2020-03-01
const pricePayload = `{"prices":[[1577836800000,40],[1577923200000,60],[1580515200000,80],[1583020800000,90]]}`

type env struct {
	dir string
}

func setupEnv(t *testing.T, blsHandler, priceHandler http.HandlerFunc) env {
	t.Helper()
	blsSrv := httptest.NewServer(blsHandler)
	t.Cleanup(blsSrv.Close)
	priceSrv := httptest.NewServer(priceHandler)
	t.Cleanup(priceSrv.Close)

	dir := t.TempDir()
	t.Setenv("BLS_API_URL", blsSrv.URL)
	t.Setenv("BLS_API_KEY", "")
	t.Setenv("COINGECKO_API_URL", priceSrv.URL)
	t.Setenv("COINGECKO_API_KEY", "")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("STORE_SQLITE_PATH", filepath.Join(dir, "zcpi.sqlite"))
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	t.Setenv("METRICS_TEXTFILE", filepath.Join(dir, "zcpi.prom"))
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_PATH", "")
	return env{dir: dir}
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), append(args, "--env-file="), &out)
	return out.String(), err
}

func TestRun_FullPipeline(t *testing.T) {
	e := setupEnv(t, respond(blsPayload), respond(pricePayload))

	out, err := run(t, "run", "--upload")
	require.NoError(t, err)

	var report pipelineReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.True(t, report.Completed)
	require.NotEmpty(t, report.RunID)
	require.Len(t, report.Stages, 5)
	for _, s := range report.Stages {
		require.Equal(t, outcome.Success, s.Kind, s.Stage)
	}

	computed, err := os.ReadFile(filepath.Join(e.dir, "processed", "zcpi_computed.csv"))
	require.NoError(t, err)
	require.Equal(t, "series_id,date,category,cpi_value,price_usd,zcpi_value,zcpi_norm\n"+
		"CUUR0000SAF11,2020-01,Food at home,100,50,50,100\n"+
		"CUUR0000SAF113,2020-01,Dairy,100,50,50,100\n"+
		"CUUR0000SAF11,2020-02,Food at home,125,80,64,128\n", string(computed))

	require.FileExists(t, filepath.Join(e.dir, "outputs", "zcpi_chart.html"))
	require.FileExists(t, filepath.Join(e.dir, "runs", report.RunID+".json"))
	snaps, err := filepath.Glob(filepath.Join(e.dir, "raw", "bls", "bls_*.json"))
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	db, err := sql.Open("sqlite", filepath.Join(e.dir, "zcpi.sqlite"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM zcpi_data`).Scan(&n))
	require.Equal(t, 3, n)

	prom, err := os.ReadFile(filepath.Join(e.dir, "zcpi.prom"))
	require.NoError(t, err)
	require.Contains(t, string(prom), `zcpi_stage_rows_total{stage="merge"} 3`)
	require.Contains(t, string(prom), `zcpi_upload_batches_total{backend="sqlite",result="ok"} 1`)

	// Upserting the same rows again leaves the row count unchanged.
	_, err = run(t, "upload")
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM zcpi_data`).Scan(&n))
	require.Equal(t, 3, n)
}

func TestRun_StopsOnSoftOutcome(t *testing.T) {
	setupEnv(t, respond(blsPayload), respond(`{"status":{"error_code":429,"error_message":"throttled"}}`))

	out, err := run(t, "run")
	require.NoError(t, err)

	var report pipelineReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.False(t, report.Completed)
	require.Len(t, report.Stages, 2)
	require.Equal(t, outcome.Malformed, report.Stages[1].Kind)
}

func TestRun_FailedStageKeepsPartialReport(t *testing.T) {
	e := setupEnv(t, respond(blsPayload), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	out, err := run(t, "run")
	require.Equal(t, exitRemote, exitCode(err))

	var report pipelineReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.False(t, report.Completed)
	require.Len(t, report.Stages, 2)
	require.Equal(t, outcome.Success, report.Stages[0].Kind)
	require.Contains(t, report.Stages[1].Message, "502")

	b, err := os.ReadFile(filepath.Join(e.dir, "runs", report.RunID+".json"))
	require.NoError(t, err)
	var saved pipelineReport
	require.NoError(t, json.Unmarshal(b, &saved))
	require.False(t, saved.Completed)
	require.Len(t, saved.Stages, 2)
}

func TestFetchCPI_HTTPErrorExitCode(t *testing.T) {
	e := setupEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusServiceUnavailable)
	}, respond(pricePayload))

	_, err := run(t, "fetch-cpi")
	require.Error(t, err)
	require.Equal(t, exitRemote, exitCode(err))
	require.NoFileExists(t, filepath.Join(e.dir, "processed", "cpi_monthly.csv"))
}

func TestFetchCPI_InvalidYears(t *testing.T) {
	setupEnv(t, respond(blsPayload), respond(pricePayload))

	_, err := run(t, "fetch-cpi", "--start-year", "2024", "--end-year", "2020")
	require.Equal(t, exitUsage, exitCode(err))
}

func TestMerge_MissingBaselineIsNotFatal(t *testing.T) {
	e := setupEnv(t, respond(blsPayload), respond(pricePayload))
	processed := filepath.Join(e.dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "cpi_monthly.csv"),
		[]byte("series_id,year,periodName,value,date\nCUUR0000SAF11,2021,March,100,2021-03-01\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "zec_monthly.csv"),
		[]byte("month,price_usd\n2021-03,150\n"), 0o644))

	out, err := run(t, "merge")
	require.NoError(t, err)

	var report stageReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, outcome.Success, report.Kind)
	require.Len(t, report.Warnings, 1)

	b, err := os.ReadFile(filepath.Join(processed, "zcpi_computed.csv"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(b), "CUUR0000SAF11,2021-03,Food at home,100,150,150,\n"))
}

func TestUpload_RestRequiresCredentials(t *testing.T) {
	setupEnv(t, respond(blsPayload), respond(pricePayload))
	t.Setenv("STORE_BACKEND", "rest")

	_, err := run(t, "upload")
	require.Equal(t, exitUsage, exitCode(err))
}

func TestUpload_BatchFailureExitCode(t *testing.T) {
	e := setupEnv(t, respond(blsPayload), respond(pricePayload))
	_, err := run(t, "run")
	require.NoError(t, err)

	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"42501","message":"permission denied"}`, http.StatusForbidden)
	}))
	defer store.Close()
	t.Setenv("STORE_BACKEND", "rest")
	t.Setenv("SUPABASE_URL", store.URL)
	t.Setenv("SUPABASE_KEY", "anon")

	_, err = run(t, "upload")
	require.Equal(t, exitStoreWrite, exitCode(err))
	var be *services.BatchError
	require.True(t, errors.As(err, &be))
	require.Equal(t, 0, be.Index)
	require.FileExists(t, filepath.Join(e.dir, "processed", "zcpi_computed.csv"))
}

func TestSummary_JSON(t *testing.T) {
	setupEnv(t, respond(blsPayload), respond(pricePayload))
	_, err := run(t, "run")
	require.NoError(t, err)

	out, err := run(t, "summary", "--json")
	require.NoError(t, err)
	var got struct {
		Metric     string `json:"metric"`
		Categories []struct {
			Category string   `json:"category"`
			Value    *float64 `json:"value"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "zcpi_norm", got.Metric)
	require.Len(t, got.Categories, 2)
	require.Equal(t, "Dairy", got.Categories[0].Category)
	require.Equal(t, 128.0, *got.Categories[1].Value)

	out, err = run(t, "summary", "--json", "--category", "dairy")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Categories, 1)
	require.Equal(t, "Dairy", got.Categories[0].Category)

	table, err := run(t, "summary")
	require.NoError(t, err)
	require.Contains(t, table, "Food at home")
	require.Contains(t, table, "+28.00%")
	require.Contains(t, table, "$80.00")
}

func TestExport_Workbook(t *testing.T) {
	e := setupEnv(t, respond(blsPayload), respond(pricePayload))
	_, err := run(t, "run")
	require.NoError(t, err)

	_, err = run(t, "export")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(e.dir, "outputs", "zcpi_computed.xlsx"))
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, err := run(t, "merge", "--no-such-flag")
	require.Equal(t, exitUsage, exitCode(err))
}
