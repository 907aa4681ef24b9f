// Package cmd implements the reqcheck CLI commands using Cobra.
//
// Available commands:
//   - run: Execute test suites (the built-in reqres.in suite by default)
//   - validate: Check suite files without sending requests
//   - list: Display the cases of suites
//   - mock: Serve a local reqres.in fixture
//   - init: Create a config file and an editable copy of the built-in suite
//   - version: Show version information
//   - completion: Generate shell completion scripts
//
// Commands report failures through exit codes, see exitcodes.go.
package cmd
