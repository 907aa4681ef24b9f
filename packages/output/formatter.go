package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer results until the
// end of the run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap"}

// Options are shared by every formatter.
type Options struct {
	Writer io.Writer
	// Verbosity 1 adds curl and the request log to failures, 2 adds the
	// request log to every executed case.
	Verbosity int
	NoColor   bool
}

// New returns the formatter registered under name.
func New(name string, opts Options) (Formatter, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	switch strings.ToLower(name) {
	case "", "console":
		return NewConsoleFormatter(
			WithWriter(opts.Writer),
			WithVerbosity(opts.Verbosity),
			WithNoColor(opts.NoColor),
		), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(opts.Writer), JSONWithLogs(opts.Verbosity > 0)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(opts.Writer)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(opts.Writer)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (available: %s)", name, strings.Join(Formats, ", "))
}

// failureLines describes why a result did not pass, one line per problem.
func failureLines(r *runner.Result) []string {
	switch r.Kind {
	case runner.KindTransportFailure, runner.KindMalformedResponse:
		if r.Error != nil {
			return []string{r.Error.Error()}
		}
		return []string{r.Kind.String()}
	case runner.KindStatusMismatch:
		return []string{fmt.Sprintf("expected status %d, got %d", r.ExpectedStatus, r.ActualStatus)}
	case runner.KindAssertionFailure:
		lines := make([]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Assertion, f.Message))
		}
		if r.Error != nil {
			lines = append(lines, r.Error.Error())
		}
		return lines
	}
	return nil
}

// formatValue formats a value for display, summarizing large values.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<missing>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case string:
		v = fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
