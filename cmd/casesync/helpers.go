package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"casesync/internal/casefile"
	"casesync/internal/config"
	"casesync/internal/lock"
	"casesync/internal/logging"
)

func addSelectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cases-dir", casefile.DefaultDir, "Directory scanned for case files (QASE_CASES_DIR)")
	f.String("changed-files", "", "Newline-separated changed paths; only case files among them are synced (CHANGED_FILES)")
	f.String("run-suite", "", "Only files whose name contains this hint (RUN_SUITE)")
}

// loadConfig resolves settings from the command's flags, the environment and
// the files named by --env-file and --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	cfgFile, _ := flags.GetString("config")

	v, err := config.NewViper(config.Sources{Flags: flags, EnvFile: envFile, ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}
	return config.Load(v)
}

// setupLogging installs the global logger. The returned closer flushes the
// optional log file.
func setupLogging(cfg *config.Config) (io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	w, closer := logging.Output(cfg.LogFile)
	logging.Init(level, cfg.LogFormat, w)
	return closer, nil
}

// osFS is swapped for an in-memory filesystem in tests.
var osFS = afero.NewOsFs

// loadCaseFiles discovers and parses every input file. It runs before any
// remote call so malformed input never leaves a partial sync behind.
func loadCaseFiles(cfg *config.Config, logger *slog.Logger) ([]casefile.File, error) {
	fsys := osFS()
	paths, err := casefile.Discover(fsys, cfg.Selection(), logger)
	if err != nil {
		return nil, err
	}
	return casefile.NewLoader(fsys, logger).LoadAll(paths)
}

// exitCode maps an error to the process exit status: 2 for bad configuration
// or input, 3 when another sync holds the project lock, 1 otherwise.
func exitCode(err error) int {
	var ce *config.ConfigurationError
	var ie *casefile.InputError
	switch {
	case errors.As(err, &ce), errors.As(err, &ie):
		return 2
	case errors.Is(err, lock.ErrLocked):
		return 3
	}
	return 1
}
