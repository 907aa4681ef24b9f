package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/config"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new reqcheck project",
	Long: `Initialize a new reqcheck project.

This creates:
  - reqcheck.yaml  - Configuration file with the default target
  - reqres.yaml    - The built-in reqres.in suite, ready to edit

Examples:
  reqcheck init
  reqcheck init --dir api-tests --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
}

func initCommand(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(initDir, 0o755); err != nil {
		return withExitCode(ExitConfigError, err)
	}

	configFile := filepath.Join(initDir, config.ConfigFilenames[0])
	suiteFile := filepath.Join(initDir, "reqres.yaml")

	if !forceInit {
		for _, f := range []string{configFile, suiteFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "reqcheck/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(suiteFile, suite.ReqresYAML(), 0o644); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create suite file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", suiteFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nreqcheck project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'reqcheck run %s' to execute the suite.\n", suiteFile)

	return nil
}
