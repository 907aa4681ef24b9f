package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/runner"
)

// JSONOutput is the document written by JSONFormatter.
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Suites   []JSONSuite `json:"suites"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int            `json:"total"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	ByKind  map[string]int `json:"byKind"`
}

type JSONSuite struct {
	Name     string       `json:"name"`
	File     string       `json:"file,omitempty"`
	Duration float64      `json:"duration"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Tests    []JSONTest   `json:"tests"`
}

// JSONLatency holds response time percentiles in milliseconds.
type JSONLatency struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

type JSONTest struct {
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Kind           runner.Kind   `json:"kind"`
	Passed         bool          `json:"passed"`
	SkipReason     string        `json:"skipReason,omitempty"`
	ExpectedStatus int           `json:"expectedStatus,omitempty"`
	ActualStatus   int           `json:"actualStatus,omitempty"`
	Duration       float64       `json:"duration"`
	Error          string        `json:"error,omitempty"`
	Request        *JSONRequest  `json:"request,omitempty"`
	Failures       []JSONFailure `json:"failures,omitempty"`
	Curl           string        `json:"curl,omitempty"`
	Log            []string      `json:"log,omitempty"`
}

type JSONRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type JSONFailure struct {
	Assertion string `json:"assertion"`
	Path      string `json:"path"`
	Operator  string `json:"operator"`
	Expected  any    `json:"expected"`
	Actual    any    `json:"actual"`
	Message   string `json:"message,omitempty"`
	Diff      string `json:"diff,omitempty"`
}

// JSONFormatter buffers every suite and writes one document on Flush.
type JSONFormatter struct {
	writer   io.Writer
	withLogs bool
	suites   []JSONSuite
	now      func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		suites: make([]JSONSuite, 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithLogs includes curl and the request log of every failed case.
func JSONWithLogs(enabled bool) JSONOption {
	return func(f *JSONFormatter) {
		f.withLogs = enabled
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	s := JSONSuite{
		Name:     result.Suite,
		File:     result.File,
		Duration: millis(result.Duration),
		Tests:    make([]JSONTest, 0, len(result.Results)),
	}
	if l := result.Latency; l.Count > 0 {
		s.Latency = &JSONLatency{
			Count: l.Count,
			Min:   millis(l.Min),
			Mean:  millis(l.Mean),
			P50:   millis(l.P50),
			P95:   millis(l.P95),
			P99:   millis(l.P99),
			Max:   millis(l.Max),
		}
	}

	for _, r := range result.Results {
		test := JSONTest{
			Name:           r.Name,
			Description:    r.Description,
			Tags:           r.Tags,
			Kind:           r.Kind,
			Passed:         r.Passed(),
			ExpectedStatus: r.ExpectedStatus,
			ActualStatus:   r.ActualStatus,
			Duration:       millis(r.Duration),
		}
		if r.Skipped() {
			test.SkipReason = r.SkipReason
			test.ExpectedStatus = 0
		}
		if r.Error != nil {
			test.Error = r.Error.Error()
		}
		if r.Request != nil {
			test.Request = &JSONRequest{Method: r.Request.Method, URL: r.Request.BuildURL()}
		}
		for _, a := range r.Failures {
			test.Failures = append(test.Failures, JSONFailure{
				Assertion: a.Assertion.String(),
				Path:      a.Assertion.Path,
				Operator:  string(a.Assertion.Op),
				Expected:  a.Expected,
				Actual:    a.Actual,
				Message:   a.Message,
				Diff:      a.Diff,
			})
		}
		if f.withLogs && !r.Passed() && !r.Skipped() {
			test.Curl = r.Curl
			test.Log = r.Log.Messages()
		}
		s.Tests = append(s.Tests, test)
	}

	f.suites = append(f.suites, s)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{ByKind: map[string]int{}}
	for _, s := range f.suites {
		for _, t := range s.Tests {
			summary.Total++
			summary.ByKind[t.Kind.String()]++
			switch {
			case t.Kind == runner.KindSkipped:
				summary.Skipped++
			case t.Passed:
				summary.Passed++
			default:
				summary.Failed++
			}
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Suites:   f.suites,
		Duration: millis(totalDuration),
		Time:     f.now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
