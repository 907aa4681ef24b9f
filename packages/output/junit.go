package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
)

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a test suite (typically a file)
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
	now        func() time.Time
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	name := result.Suite
	if result.File != "" {
		name = result.File
	}
	ts := JUnitTestSuite{
		Name:      name,
		Tests:     len(result.Results),
		Skipped:   result.Skipped,
		Time:      result.Duration.Seconds(),
		Timestamp: f.now().Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: result.Suite,
			Time:      r.Duration.Seconds(),
		}

		switch r.Kind {
		case runner.KindPass:
		case runner.KindSkipped:
			tc.Skipped = &JUnitSkipped{Message: r.SkipReason}
		case runner.KindTransportFailure, runner.KindMalformedResponse:
			// No usable response: reported as an error rather than a failure.
			ts.Errors++
			tc.Error = &JUnitError{
				Message: strings.Join(failureLines(r), "; "),
				Type:    r.Kind.String(),
				Content: r.Curl,
			}
		default:
			ts.Failures++
			tc.Failure = &JUnitFailure{
				Message: failureSummary(r),
				Type:    r.Kind.String(),
				Content: failureDetail(r),
			}
		}

		ts.TestCases = append(ts.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, ts)
}

func failureSummary(r *runner.Result) string {
	if r.Kind == runner.KindStatusMismatch {
		return failureLines(r)[0]
	}
	return fmt.Sprintf("%d assertion(s) failed", len(r.Failures))
}

func failureDetail(r *runner.Result) string {
	var b strings.Builder
	for _, a := range r.Failures {
		fmt.Fprintf(&b, "%s: expected %s, got %s. %s\n",
			a.Assertion, formatValue(a.Expected, 200), formatValue(a.Actual, 200), a.Message)
		if a.Diff != "" {
			b.WriteString(a.Diff)
			b.WriteString("\n")
		}
	}
	if r.Curl != "" {
		b.WriteString(r.Curl)
		b.WriteString("\n")
	}
	return b.String()
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, ts := range f.testSuites {
		totalTests += ts.Tests
		totalFailures += ts.Failures
		totalErrors += ts.Errors
		totalSkipped += ts.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "reqcheck",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  f.now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	if _, err := io.WriteString(f.writer, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
