// casesync reconciles locally authored manual test cases with a Qase project
// and opens a test run over the cases it touched.
//
// Usage:
//
//	casesync sync [--project=<code>] [--changed-files=<list>] [--run-suite=<hint>] [--dry-run]
//	casesync validate [--cases-dir=<dir>] [--changed-files=<list>]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casesync",
		Short: "Sync manual test cases into Qase",
		Long: "casesync upserts test cases from JSON or YAML files into a Qase project,\n" +
			"keyed by a stable external id, and opens a run over every case it touched.\n\n" +
			"Settings come from flags, then QASE_* environment variables (a .env file\n" +
			"is loaded first), then an optional --config file.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	p := root.PersistentFlags()
	p.String("config", "", "Config file (YAML, TOML or JSON)")
	p.String("env-file", "", "Env file loaded before reading the environment (default .env if present)")
	p.String("log-level", "info", "Log level: debug, info, warn, error")
	p.String("log-format", "text", "Log format: text or json")
	p.String("log-file", "", "Also write logs to this size-rotated file")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newValidateCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "casesync:", err)
		stop()
		os.Exit(exitCode(err))
	}
}
