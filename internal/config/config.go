package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned by RequireToken when no API token is set.
var ErrMissingToken = errors.New("tibber access token is not configured")

type Config struct {
	Tibber      TibberConfig      `yaml:"tibber"`
	Directories DirectoriesConfig `yaml:"directories"`
	Paths       PathsConfig       `yaml:"paths"`
	CSV         CSVConfig         `yaml:"csv"`
	Processing  ProcessingConfig  `yaml:"processing"`
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`

	// Workers bounds parallel file validation.
	Workers  int    `yaml:"workers" validate:"gte=1,lte=64"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
}

type TibberConfig struct {
	AccessToken string        `yaml:"access_token"`
	Endpoint    string        `yaml:"endpoint" validate:"required,url"`
	DateRange   string        `yaml:"date_range"`
	First       int           `yaml:"first" validate:"gte=0,lte=744"` // 0 derives the page size from the month
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

type DirectoriesConfig struct {
	Data   string `yaml:"data" validate:"required"`
	Input  string `yaml:"input" validate:"required"`
	Output string `yaml:"output" validate:"required"`
}

type PathsConfig struct {
	Input struct {
		JSONFilePrefix string `yaml:"json_file_prefix" validate:"required"`
	} `yaml:"input"`
	Output struct {
		CSVFilePrefix string `yaml:"csv_file_prefix" validate:"required"`
		CombinedFile  string `yaml:"combined_file" validate:"required"`
	} `yaml:"output"`
}

type CSVConfig struct {
	Delimiter        string   `yaml:"delimiter" validate:"required"`
	DateFormat       string   `yaml:"date_format" validate:"required"`
	DecimalSeparator string   `yaml:"decimal_separator" validate:"required"`
	Header           []string `yaml:"header" validate:"min=1,dive,required"`
	EmptyColumns     int      `yaml:"empty_columns" validate:"gte=0"`
}

type ProcessingConfig struct {
	ConsumptionMultiplier float64 `yaml:"consumption_multiplier" validate:"gt=0"`
	DecimalPlaces         int     `yaml:"decimal_places" validate:"gte=0,lte=10"`
}

type DatabaseConfig struct {
	// URL enables the Postgres reading sink when set.
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Port             string        `yaml:"port" validate:"required,numeric"`
	ScheduleInterval time.Duration `yaml:"schedule_interval" validate:"gte=1m"`

	// In-memory report retention.
	ReportHistory int           `yaml:"report_history" validate:"gte=0"` // 0 = unlimited
	ReportMaxAge  time.Duration `yaml:"report_max_age" validate:"gte=0"` // 0 = unlimited
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	var c Config
	c.Tibber.Endpoint = "https://api.tibber.com/v1-beta/gql"
	c.Tibber.Timeout = 30 * time.Second
	c.Directories = DirectoriesConfig{Data: "data", Input: "input", Output: "output"}
	c.Paths.Input.JSONFilePrefix = "-Verbrauch.json"
	c.Paths.Output.CSVFilePrefix = "-consumption.csv"
	c.Paths.Output.CombinedFile = "year-consumption.csv"
	c.CSV = CSVConfig{
		Delimiter:        ",",
		DateFormat:       "%Y-%m-%d %H:%M:%S",
		DecimalSeparator: ",",
		Header:           []string{"Datetime", "Power"},
	}
	c.Processing = ProcessingConfig{ConsumptionMultiplier: 1, DecimalPlaces: 3}
	c.Server = ServerConfig{Port: "8080", ScheduleInterval: 24 * time.Hour, ReportHistory: 30}
	c.Workers = 4
	c.LogLevel = "info"
	return c
}

// Load reads the YAML file at path over Default (the file is skipped when
// path is empty), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Tibber.AccessToken = getenvDefault("TIBBER_ACCESS_TOKEN", c.Tibber.AccessToken)
	c.Tibber.DateRange = getenvDefault("TIBBER_DATE_RANGE", c.Tibber.DateRange)
	c.Database.URL = getenvDefault("DATABASE_URL", c.Database.URL)
	c.Server.Port = getenvDefault("PORT", c.Server.Port)
	c.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", c.LogLevel))
	c.Workers = getenvInt("WORKERS", c.Workers)

	if v := os.Getenv("SCHEDULE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULE_INTERVAL: %w", err)
		}
		c.Server.ScheduleInterval = d
	}
	return nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		return fmt.Errorf("invalid config: csv.delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	return nil
}

// RequireToken reports ErrMissingToken when the API token is empty.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Tibber.AccessToken) == "" {
		return ErrMissingToken
	}
	return nil
}

func (c *Config) InputDir() string {
	return filepath.Join(c.Directories.Data, c.Directories.Input)
}

func (c *Config) OutputDir() string {
	return filepath.Join(c.Directories.Data, c.Directories.Output)
}

// DelimiterRune returns the configured field delimiter.
func (c CSVConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Multiplier returns the consumption multiplier as a decimal.
func (p ProcessingConfig) Multiplier() decimal.Decimal {
	return decimal.NewFromFloat(p.ConsumptionMultiplier)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
