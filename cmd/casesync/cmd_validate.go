package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"casesync/internal/logging"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and check case files without contacting Qase",
		Long: "validate runs discovery and loading exactly as sync does, reporting shape\n" +
			"errors, missing titles and duplicate external ids. No token is needed.",
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
	addSelectionFlags(cmd)
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLocal(); err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	files, err := loadCaseFiles(cfg, logging.New("validate"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	total := 0
	for _, f := range files {
		fmt.Fprintf(out, "%s: %d suite(s), %d case(s)\n", f.Path, len(f.Suites), f.CaseCount())
		total += f.CaseCount()
	}
	fmt.Fprintf(out, "OK: %d file(s), %d case(s)\n", len(files), total)
	return nil
}
