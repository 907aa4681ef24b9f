package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml|directory...>",
	Short: "Validate suite files without running them",
	Long: `Check suite files for syntax and semantic errors without sending
any request.

Examples:
  reqcheck validate users.yaml
  reqcheck validate ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	var errs []error
	for _, file := range files {
		s, err := suite.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %v\n", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(s.Tests))
	}

	if len(errs) > 0 {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed: %w", errors.Join(errs...)))
	}

	return nil
}
