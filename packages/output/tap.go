package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	kind       runner.Kind
	skipReason string
	failures   []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		f.results = append(f.results, tapResult{
			number:     f.testCount,
			name:       r.Name,
			kind:       r.Kind,
			skipReason: r.SkipReason,
			failures:   failureLines(r),
		})
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		switch r.kind {
		case runner.KindPass:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		case runner.KindSkipped:
			reason := r.skipReason
			if reason == "" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  kind: %s\n", r.kind)
			if len(r.failures) > 0 {
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, line := range r.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(line))
				}
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	fmt.Fprintf(f.writer, "# duration %dms\n", totalDuration.Milliseconds())
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", `\n`)
		return "\"" + s + "\""
	}
	return s
}
