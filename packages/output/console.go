package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer    io.Writer
	verbosity int
	noColor   bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbosity(v int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbosity = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	source := result.File
	if source == "" {
		source = "embedded"
	}
	fmt.Fprintf(f.writer, "\n%s %s\n\n", bold("Running: "+result.Suite), faint("("+source+")"))

	for _, r := range result.Results {
		label := r.Name
		if r.Description != "" {
			label += " " + faint(r.Description)
		}

		switch {
		case r.Skipped():
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), label)
			if r.SkipReason != "" && r.SkipReason != runner.SkipFiltered {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintln(f.writer)
			continue
		case r.Passed():
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), label, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", red("✗"), label, red("["+r.Kind.String()+"]"), cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
			f.writeFailure(r, red)
		}

		if f.verbosity >= 2 || (f.verbosity == 1 && !r.Passed()) {
			if r.Curl != "" {
				fmt.Fprintf(f.writer, "    %s\n", faint(r.Curl))
			}
			r.Log.Dump(f.writer, "    ")
		}
	}

	fmt.Fprintln(f.writer)
	fmt.Fprintf(f.writer, "Tests:   ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Results))
	fmt.Fprintf(f.writer, "Time:    %dms\n", result.Duration.Milliseconds())
	if l := result.Latency; l.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %s  p95 %s  p99 %s  max %s\n", l.P50, l.P95, l.P99, l.Max)
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) writeFailure(r *runner.Result, red func(a ...any) string) {
	if r.Kind != runner.KindAssertionFailure {
		for _, line := range failureLines(r) {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), line)
		}
		if r.Kind == runner.KindStatusMismatch && r.Response != nil && len(r.Response.Body) > 0 {
			fmt.Fprintf(f.writer, "      Body: %s\n", formatValue(r.Response.BodyString(), 200))
		}
		return
	}

	for _, a := range r.Failures {
		fmt.Fprintf(f.writer, "    %s %s\n", red("→"), a.Assertion)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
		if a.Diff != "" {
			fmt.Fprintf(f.writer, "      Diff:\n")
			for _, line := range strings.Split(strings.TrimRight(a.Diff, "\n"), "\n") {
				fmt.Fprintf(f.writer, "        %s\n", line)
			}
		}
		if a.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Message)
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("reqcheck"), version)
}
