// Package output renders run results.
//
// Supported output formats:
//   - console: colored terminal output with failure details
//   - json: one machine-readable document per run
//   - junit: JUnit XML for CI systems
//   - tap: Test Anything Protocol
//
// Every formatter implements Formatter. Formats that buffer results until
// the run ends also implement Flushable.
package output
