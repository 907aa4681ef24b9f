package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [suite.yaml|directory...]",
	Short: "List the cases of test suites",
	Long: `List every case defined in suite files. Without arguments the
built-in reqres.in suite is listed.

Examples:
  reqcheck list
  reqcheck list ./suites/`,
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	suites, err := loadSuites(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range suites {
		source := s.Path
		if source == "" {
			source = "embedded"
		}
		fmt.Fprintf(out, "\n%s (%s):\n", s.Name, source)
		for _, tc := range s.Tests {
			fmt.Fprintf(out, "  - %-18s %-6s %-14s -> %d", tc.Name, tc.Method, tc.ExpandPath(), tc.Expect.Status)
			if tc.Description != "" {
				fmt.Fprintf(out, "  %s", tc.Description)
			}
			fmt.Fprintln(out)
			if len(tc.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(tc.Tags, ", "))
			}
		}
	}

	return nil
}
