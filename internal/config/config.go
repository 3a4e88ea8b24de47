// Package config loads sync settings from flags, environment, an optional
// .env file and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"casesync/internal/casefile"
	"casesync/internal/qase"
	"casesync/internal/reconcile"
)

// Config is the fully resolved sync configuration.
type Config struct {
	Token   string `mapstructure:"token" validate:"required"`
	Project string `mapstructure:"project" validate:"required,alphanum"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	AppURL  string `mapstructure:"app_url" validate:"required,url"`

	CasesDir     string   `mapstructure:"cases_dir" validate:"required"`
	ChangedFiles string   `mapstructure:"changed_files"`
	RunSuite     string   `mapstructure:"run_suite"`
	ExternalIDs  []string `mapstructure:"external_ids" validate:"dive,required"`

	Drift            string        `mapstructure:"drift" validate:"oneof=off report recreate true false 0 1"`
	FailFast         bool          `mapstructure:"fail_fast"`
	DryRun           bool          `mapstructure:"dry_run"`
	EmbedMarker      bool          `mapstructure:"embed_marker"`
	Search           bool          `mapstructure:"search"`
	ExtractPaths     []string      `mapstructure:"extract_paths" validate:"dive,required"`
	RateLimit        float64       `mapstructure:"rate_limit" validate:"gte=0"`
	MaxRetries       int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	IndexConcurrency int           `mapstructure:"index_concurrency" validate:"min=1,max=32"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Pagination       string        `mapstructure:"pagination" validate:"oneof=offset page"`
	LockDir          string        `mapstructure:"lock_dir"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=text json"`
	LogFile   string `mapstructure:"log_file"`

	ReportFormat string `mapstructure:"report_format" validate:"oneof=text markdown"`
	SummaryFile  string `mapstructure:"summary_file"`
}

// env lists the environment variables bound to each key. The first one set wins.
var env = map[string][]string{
	"token":             {"QASE_API_TOKEN", "API_TOKEN"},
	"project":           {"QASE_PROJECT", "PROJECT"},
	"base_url":          {"QASE_BASE_URL", "BASE_URL"},
	"app_url":           {"QASE_APP_URL"},
	"cases_dir":         {"QASE_CASES_DIR"},
	"changed_files":     {"CHANGED_FILES"},
	"run_suite":         {"RUN_SUITE"},
	"external_ids":      {"QASE_EXTERNAL_IDS", "EXTERNAL_IDS"},
	"drift":             {"QASE_DRIFT", "QASE_RECREATE_ON_DRIFT"},
	"fail_fast":         {"QASE_FAIL_FAST"},
	"dry_run":           {"QASE_DRY_RUN"},
	"embed_marker":      {"QASE_EMBED_MARKER"},
	"search":            {"QASE_SEARCH"},
	"extract_paths":     {"QASE_EXTRACT_PATHS"},
	"rate_limit":        {"QASE_RATE_LIMIT"},
	"max_retries":       {"QASE_MAX_RETRIES"},
	"index_concurrency": {"QASE_INDEX_CONCURRENCY"},
	"timeout":           {"QASE_TIMEOUT"},
	"pagination":        {"QASE_PAGINATION"},
	"lock_dir":          {"QASE_LOCK_DIR"},
	"log_level":         {"QASE_LOG_LEVEL"},
	"log_format":        {"QASE_LOG_FORMAT"},
	"log_file":          {"QASE_LOG_FILE"},
	"report_format":     {"QASE_REPORT_FORMAT"},
	"summary_file":      {"QASE_SUMMARY_FILE", "GITHUB_STEP_SUMMARY"},
}

// FlagName is the command-line flag bound to key.
func FlagName(key string) string { return strings.ReplaceAll(key, "_", "-") }

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", qase.DefaultBaseURL)
	v.SetDefault("app_url", reconcile.DefaultAppURL)
	v.SetDefault("cases_dir", casefile.DefaultDir)
	v.SetDefault("drift", "off")
	v.SetDefault("embed_marker", true)
	v.SetDefault("search", true)
	v.SetDefault("extract_paths", reconcile.DefaultExtractPaths)
	v.SetDefault("max_retries", 3)
	v.SetDefault("index_concurrency", 1)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("pagination", "offset")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("report_format", "text")
}

// Sources names where configuration comes from besides the process
// environment.
type Sources struct {
	// Flags are bound key by key when a flag named FlagName(key) exists.
	Flags *pflag.FlagSet
	// EnvFile is loaded into the environment first. Empty means ".env" if it
	// exists. Variables already set are not overridden.
	EnvFile string
	// ConfigFile is an optional YAML, TOML or JSON file read by viper.
	ConfigFile string
}

// NewViper builds a viper instance wired to every source in src.
func NewViper(src Sources) (*viper.Viper, error) {
	if err := loadEnvFile(src.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	for key, names := range env {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if src.Flags != nil {
		for key := range env {
			if f := src.Flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", f.Name, err)
				}
			}
		}
	}
	if src.ConfigFile != "" {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("read config file %s: %v", src.ConfigFile, err)}}
		}
	}
	return v, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigurationError{Problems: []string{fmt.Sprintf("load env file %s: %v", path, err)}}
	}
	return nil
}

// Load decodes v into a Config without validating it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		listHook,
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.Project = strings.TrimSpace(cfg.Project)
	cfg.ExternalIDs = compact(cfg.ExternalIDs)
	cfg.ExtractPaths = compact(cfg.ExtractPaths)
	cfg.Drift = strings.ToLower(strings.TrimSpace(cfg.Drift))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.ReportFormat = strings.ToLower(strings.TrimSpace(cfg.ReportFormat))
	cfg.Pagination = strings.ToLower(strings.TrimSpace(cfg.Pagination))
	return &cfg, nil
}

// listHook splits a string on commas and newlines when the target is a slice,
// so list settings can come from a single environment variable.
func listHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	s := data.(string)
	if strings.TrimSpace(s) == "" {
		return []string{}, nil
	}
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }), nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks the full configuration needed to talk to the remote store.
func (c *Config) Validate() error {
	return toConfigurationError(validate.Struct(c))
}

// ValidateLocal checks only the settings used by discovery and loading, for
// commands that never contact the remote store.
func (c *Config) ValidateLocal() error {
	return toConfigurationError(validate.StructPartial(c, "CasesDir", "ExternalIDs", "LogLevel", "LogFormat"))
}

// DriftPolicy returns the parsed drift setting.
func (c *Config) DriftPolicy() reconcile.DriftPolicy {
	p, _ := reconcile.ParseDriftPolicy(c.Drift)
	return p
}

// PaginationMode returns the list pagination tried first.
func (c *Config) PaginationMode() qase.Pagination {
	p, _ := qase.ParsePagination(c.Pagination)
	return p
}

// Selection returns the discovery inputs.
func (c *Config) Selection() casefile.Selection {
	return casefile.Selection{ChangedFiles: c.ChangedFiles, Hint: c.RunSuite, Dir: c.CasesDir}
}

// ConfigurationError reports missing or invalid settings, one problem per
// field.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func toConfigurationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Problems: []string{err.Error()}}
	}
	ce := &ConfigurationError{}
	for _, fe := range verrs {
		ce.Problems = append(ce.Problems, describe(fe))
	}
	return ce
}

func describe(fe validator.FieldError) string {
	key := fe.Field()
	hint := ""
	if names := env[key]; len(names) > 0 {
		hint = fmt.Sprintf(" (set %s or --%s)", names[0], FlagName(key))
	}
	switch fe.Tag() {
	case "required":
		return key + " is required" + hint
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s, got %v", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s, got %v", key, fe.Tag(), fe.Value())
}
