package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
tibber:
  date_range: "2024-01;2024-03"
csv:
  date_format: "%Y%m%d:%H"
  empty_columns: 2
processing:
  decimal_places: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Tibber.Endpoint != "https://api.tibber.com/v1-beta/gql" {
		t.Fatalf("unexpected endpoint default %s", cfg.Tibber.Endpoint)
	}
	if cfg.Tibber.DateRange != "2024-01;2024-03" {
		t.Fatalf("unexpected date range %s", cfg.Tibber.DateRange)
	}
	if cfg.CSV.DateFormat != "%Y%m%d:%H" || cfg.CSV.EmptyColumns != 2 {
		t.Fatalf("csv section not read: %+v", cfg.CSV)
	}
	if diff := cmp.Diff([]string{"Datetime", "Power"}, cfg.CSV.Header); diff != "" {
		t.Fatalf("header default mismatch (-want +got):\n%s", diff)
	}
	if cfg.Processing.DecimalPlaces != 0 {
		t.Fatalf("explicit zero decimal places must be kept, got %d", cfg.Processing.DecimalPlaces)
	}
	if cfg.CSV.DelimiterRune() != ',' {
		t.Fatalf("unexpected delimiter %q", cfg.CSV.DelimiterRune())
	}
	if got := cfg.InputDir(); got != filepath.Join("data", "input") {
		t.Fatalf("unexpected input dir %s", got)
	}
	if cfg.Server.ScheduleInterval != 24*time.Hour || cfg.Workers != 4 {
		t.Fatalf("unexpected server/worker defaults: %+v %d", cfg.Server, cfg.Workers)
	}
	if !errors.Is(cfg.RequireToken(), ErrMissingToken) {
		t.Fatalf("expected missing token")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TIBBER_ACCESS_TOKEN", "secret")
	t.Setenv("TIBBER_DATE_RANGE", "2023-11;2023-12")
	t.Setenv("DATABASE_URL", "postgres://localhost/consumption")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SCHEDULE_INTERVAL", "6h")

	cfg, err := Load(writeConfig(t, "tibber:\n  access_token: from-file\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Tibber.AccessToken != "secret" || cfg.RequireToken() != nil {
		t.Fatalf("token override not applied: %q", cfg.Tibber.AccessToken)
	}
	if cfg.Tibber.DateRange != "2023-11;2023-12" || cfg.Database.URL != "postgres://localhost/consumption" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Server.Port != "9090" || cfg.LogLevel != "debug" || cfg.Server.ScheduleInterval != 6*time.Hour {
		t.Fatalf("server overrides not applied: %+v %s", cfg.Server, cfg.LogLevel)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Paths.Output.CombinedFile != "year-consumption.csv" {
		t.Fatalf("unexpected combined file %s", cfg.Paths.Output.CombinedFile)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"delimiter":  "csv:\n  delimiter: \";;\"\n",
		"multiplier": "processing:\n  consumption_multiplier: -1\n",
		"workers":    "workers: 100\n",
		"log level":  "log_level: chatty\n",
		"first":      "tibber:\n  first: 1000\n",
		"yaml":       "tibber: [\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, data)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
