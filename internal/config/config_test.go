package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"casesync/internal/qase"
	"casesync/internal/reconcile"
)

// clearEnv unsets every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range env {
		for _, n := range names {
			t.Setenv(n, "")
			os.Unsetenv(n)
		}
	}
}

func load(t *testing.T, src Sources) *Config {
	t.Helper()
	v, err := NewViper(src)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := load(t, Sources{})

	if cfg.BaseURL != qase.DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.AppURL != reconcile.DefaultAppURL {
		t.Errorf("AppURL = %q", cfg.AppURL)
	}
	if cfg.CasesDir != "docs/manual-testing/tests" {
		t.Errorf("CasesDir = %q", cfg.CasesDir)
	}
	if !cfg.EmbedMarker || !cfg.Search || cfg.MaxRetries != 3 || cfg.IndexConcurrency != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if diff := cmp.Diff(reconcile.DefaultExtractPaths, cfg.ExtractPaths); diff != "" {
		t.Errorf("ExtractPaths (-want +got):\n%s", diff)
	}
	if cfg.DriftPolicy() != reconcile.DriftOff {
		t.Errorf("DriftPolicy = %v", cfg.DriftPolicy())
	}
	if cfg.PaginationMode() != qase.OffsetPagination {
		t.Errorf("pagination = %q", cfg.Pagination)
	}
	if cfg.ReportFormat != "text" || cfg.SummaryFile != "" {
		t.Errorf("report=%q summary=%q", cfg.ReportFormat, cfg.SummaryFile)
	}
}

func TestLoad_StepSummaryFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_STEP_SUMMARY", "/tmp/step-summary.md")
	t.Setenv("QASE_REPORT_FORMAT", "Markdown")

	cfg := load(t, Sources{})
	if cfg.SummaryFile != "/tmp/step-summary.md" || cfg.ReportFormat != "markdown" {
		t.Errorf("summary=%q report=%q", cfg.SummaryFile, cfg.ReportFormat)
	}
}

func TestLoad_EnvironmentNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_TOKEN", "fallback-token")
	t.Setenv("QASE_PROJECT", "DEMO")
	t.Setenv("PROJECT", "IGNORED")
	t.Setenv("CHANGED_FILES", "a.json b.json")
	t.Setenv("RUN_SUITE", "checkout")
	t.Setenv("EXTERNAL_IDS", "CHK-001, CHK-002\nCHK-003,,")
	t.Setenv("QASE_RECREATE_ON_DRIFT", "true")
	t.Setenv("QASE_FAIL_FAST", "1")
	t.Setenv("QASE_TIMEOUT", "5s")
	t.Setenv("QASE_PAGINATION", "Page")
	t.Setenv("QASE_LOG_LEVEL", "DEBUG")

	cfg := load(t, Sources{})
	if cfg.Token != "fallback-token" || cfg.Project != "DEMO" {
		t.Errorf("token=%q project=%q", cfg.Token, cfg.Project)
	}
	if diff := cmp.Diff([]string{"CHK-001", "CHK-002", "CHK-003"}, cfg.ExternalIDs); diff != "" {
		t.Errorf("ExternalIDs (-want +got):\n%s", diff)
	}
	if cfg.DriftPolicy() != reconcile.DriftRecreate || !cfg.FailFast {
		t.Errorf("drift=%v failFast=%v", cfg.DriftPolicy(), cfg.FailFast)
	}
	if cfg.PaginationMode() != qase.PagePagination {
		t.Errorf("pagination = %q", cfg.Pagination)
	}
	if cfg.Timeout != 5*time.Second || cfg.LogLevel != "debug" {
		t.Errorf("timeout=%v level=%q", cfg.Timeout, cfg.LogLevel)
	}
	sel := cfg.Selection()
	if sel.ChangedFiles != "a.json b.json" || sel.Hint != "checkout" || sel.Mode() != "changed" {
		t.Errorf("selection = %+v", sel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("QASE_PROJECT", "FROMENV")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("project", "", "")
	fs.Int("max-retries", 3, "")
	if err := fs.Parse([]string{"--project", "FROMFLAG", "--max-retries", "5"}); err != nil {
		t.Fatal(err)
	}

	cfg := load(t, Sources{Flags: fs})
	if cfg.Project != "FROMFLAG" || cfg.MaxRetries != 5 {
		t.Errorf("project=%q retries=%d", cfg.Project, cfg.MaxRetries)
	}
}

func TestLoad_EnvFileAndConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "sync.env")
	if err := os.WriteFile(envFile, []byte("QASE_API_TOKEN=from-dotenv\nQASE_PROJECT=DOTENV\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(dir, "casesync.yaml")
	if err := os.WriteFile(cfgFile, []byte("project: FROMFILE\nrate_limit: 2.5\nlog_format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("QASE_API_TOKEN")
		os.Unsetenv("QASE_PROJECT")
	})

	cfg := load(t, Sources{EnvFile: envFile, ConfigFile: cfgFile})
	if cfg.Token != "from-dotenv" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.Project != "DOTENV" {
		t.Errorf("environment should win over the config file, Project = %q", cfg.Project)
	}
	if cfg.RateLimit != 2.5 || cfg.LogFormat != "json" {
		t.Errorf("rate=%v format=%q", cfg.RateLimit, cfg.LogFormat)
	}
}

func TestNewViper_MissingFiles(t *testing.T) {
	clearEnv(t)
	var ce *ConfigurationError
	if _, err := NewViper(Sources{EnvFile: filepath.Join(t.TempDir(), "nope.env")}); !errors.As(err, &ce) {
		t.Errorf("missing env file: err = %v", err)
	}
	if _, err := NewViper(Sources{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}); !errors.As(err, &ce) {
		t.Errorf("missing config file: err = %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	cfg := load(t, Sources{})
	cfg.LogFormat = "xml"
	cfg.IndexConcurrency = 0

	err := cfg.Validate()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"token is required (set QASE_API_TOKEN or --token)",
		"project is required (set QASE_PROJECT or --project)",
		"log_format must be one of [text json]",
		"index_concurrency failed min=1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateLocal_IgnoresRemoteSettings(t *testing.T) {
	clearEnv(t)
	cfg := load(t, Sources{})
	if err := cfg.ValidateLocal(); err != nil {
		t.Errorf("ValidateLocal without token: %v", err)
	}
	cfg.CasesDir = ""
	if err := cfg.ValidateLocal(); err == nil {
		t.Error("expected error for empty cases_dir")
	}
}

func TestValidate_RejectsBadURLAndDrift(t *testing.T) {
	clearEnv(t)
	cfg := load(t, Sources{})
	cfg.Token, cfg.Project = "tok", "DEMO"
	cfg.BaseURL = "not a url"
	cfg.Drift = "sometimes"

	msg := cfg.Validate().Error()
	if !strings.Contains(msg, `base_url must be a URL, got "not a url"`) {
		t.Errorf("missing url problem: %s", msg)
	}
	if !strings.Contains(msg, "drift must be one of") {
		t.Errorf("missing drift problem: %s", msg)
	}
}
