package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zcpi-labs/zcpi/pkg/logging"
)

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type BLSOptions struct {
	URL       string `env:"BLS_API_URL" envDefault:"https://api.bls.gov/publicAPI/v2/timeseries/data/"`
	Key       string `env:"BLS_API_KEY"`
	StartYear int    `env:"BLS_START_YEAR" envDefault:"2016"`
	EndYear   int    `env:"BLS_END_YEAR" envDefault:"2025"`
}

type CoinGeckoOptions struct {
	URL          string `env:"COINGECKO_API_URL" envDefault:"https://api.coingecko.com/api/v3/coins/zcash/market_chart"`
	Key          string `env:"COINGECKO_API_KEY"`
	VsCurrency   string `env:"COINGECKO_VS_CURRENCY" envDefault:"usd"`
	TrailingDays int    `env:"COINGECKO_TRAILING_DAYS" envDefault:"365"`
}

const (
	StoreBackendREST     = "rest"
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
)

type StoreOptions struct {
	Backend    string `env:"STORE_BACKEND" envDefault:"rest"`
	URL        string `env:"SUPABASE_URL"`
	Key        string `env:"SUPABASE_KEY"`
	Table      string `env:"STORE_TABLE" envDefault:"zcpi_data"`
	OnConflict string `env:"STORE_ON_CONFLICT" envDefault:"date,category"`
	BatchSize  int    `env:"STORE_BATCH_SIZE" envDefault:"500"`
	DSN        string `env:"STORE_DSN"`
	SQLitePath string `env:"STORE_SQLITE_PATH" envDefault:"data/zcpi.sqlite"`
}

// ConflictColumns splits OnConflict into trimmed, non-empty column names.
func (s *StoreOptions) ConflictColumns() []string {
	var cols []string
	for _, part := range strings.Split(s.OnConflict, ",") {
		if p := strings.TrimSpace(part); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

// Validate checks the fields the selected backend needs.
func (s *StoreOptions) Validate() error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("STORE_BATCH_SIZE must be positive, got %d", s.BatchSize)
	}
	if len(s.ConflictColumns()) == 0 {
		return fmt.Errorf("STORE_ON_CONFLICT must name at least one column")
	}
	v := validator.New()
	switch s.Backend {
	case StoreBackendREST:
		req := struct {
			URL   string `validate:"required,url"`
			Key   string `validate:"required"`
			Table string `validate:"required"`
		}{s.URL, s.Key, s.Table}
		if err := v.Struct(req); err != nil {
			return fmt.Errorf("rest store requires SUPABASE_URL and SUPABASE_KEY: %w", err)
		}
	case StoreBackendPostgres:
		if err := v.Var(s.DSN, "required"); err != nil {
			return fmt.Errorf("postgres store requires STORE_DSN: %w", err)
		}
	case StoreBackendSQLite:
		if err := v.Var(s.SQLitePath, "required"); err != nil {
			return fmt.Errorf("sqlite store requires STORE_SQLITE_PATH: %w", err)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND=%q (expected rest|postgres|sqlite)", s.Backend)
	}
	return nil
}

type ArtifactOptions struct {
	Bucket    string `env:"S3_BUCKET" validate:"required"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1" validate:"required"`
	Endpoint  string `env:"S3_ENDPOINT" validate:"omitempty,url"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY" validate:"required_with=AccessKey"`
	Prefix    string `env:"S3_PREFIX" envDefault:"zcpi"`
}

func (a *ArtifactOptions) Validate() error {
	if err := validator.New().Struct(a); err != nil {
		return fmt.Errorf("artifact publishing configuration error: %w", err)
	}
	return nil
}

type PathOptions struct {
	DataDir string `env:"DATA_DIR" envDefault:"data"`
}

func (p PathOptions) RawDir(source string) string {
	return filepath.Join(p.DataDir, "raw", source)
}

func (p PathOptions) ProcessedDir() string {
	return filepath.Join(p.DataDir, "processed")
}

func (p PathOptions) OutputsDir() string {
	return filepath.Join(p.DataDir, "outputs")
}

// RunReport is where the run command keeps the report of one invocation.
func (p PathOptions) RunReport(runID string) string {
	return filepath.Join(p.DataDir, "runs", runID+".json")
}

func (p PathOptions) CPIMonthly() string {
	return filepath.Join(p.ProcessedDir(), "cpi_monthly.csv")
}

func (p PathOptions) PriceMonthly() string {
	return filepath.Join(p.ProcessedDir(), "zec_monthly.csv")
}

func (p PathOptions) Computed() string {
	return filepath.Join(p.ProcessedDir(), "zcpi_computed.csv")
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"zcpi"`
}

type Configuration struct {
	BLS           BLSOptions
	CoinGecko     CoinGeckoOptions
	Store         StoreOptions
	Artifacts     ArtifactOptions
	Paths         PathOptions
	OpenTelemetry OpenTelemetryOptions

	MetricsTextfile string `env:"METRICS_TEXTFILE"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath         string `env:"LOG_PATH"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Load reads the given env files (missing ones are skipped) and parses the
// process environment into a Configuration.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		tried := make([]string, 0, len(envFiles))
		for _, file := range envFiles {
			tried = append(tried, filepath.Join(wd, file))
		}
		logger.WithField("tried", tried).Debug("no .env files found")
	}
	return nil
}

func (c *Configuration) validate() error {
	if c.BLS.StartYear > c.BLS.EndYear {
		return fmt.Errorf("BLS_START_YEAR=%d is after BLS_END_YEAR=%d", c.BLS.StartYear, c.BLS.EndYear)
	}
	if c.CoinGecko.TrailingDays <= 0 {
		return fmt.Errorf("COINGECKO_TRAILING_DAYS must be positive, got %d", c.CoinGecko.TrailingDays)
	}
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if backend == "" {
		backend = StoreBackendREST
	}
	c.Store.Backend = backend
	return nil
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
