package runner

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/assertions"
	"github.com/abdul-hamid-achik/reqcheck/packages/http"
	"github.com/abdul-hamid-achik/reqcheck/packages/logging"
	"github.com/abdul-hamid-achik/reqcheck/packages/stats"
)

// Kind classifies the outcome of one test case.
type Kind int

// The zero Kind is KindUnknown so an unclassified Result never counts as
// passed.
const (
	KindUnknown Kind = iota
	KindPass
	KindTransportFailure
	KindStatusMismatch
	KindMalformedResponse
	KindAssertionFailure
	KindSkipped
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindPass:              "pass",
	KindTransportFailure:  "transport_failure",
	KindStatusMismatch:    "status_mismatch",
	KindMalformedResponse: "malformed_response",
	KindAssertionFailure:  "assertion_failure",
	KindSkipped:           "skipped",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", text)
}

// Result is the outcome of executing one test case.
type Result struct {
	Name           string
	Description    string
	Tags           []string
	Kind           Kind
	ExpectedStatus int
	// ActualStatus is zero when no response was received.
	ActualStatus int
	Failures     []*assertions.Result
	Error        error
	SkipReason   string
	Duration     time.Duration
	Request      *http.Request
	Response     *http.Response
	Curl         string
	Log          logging.CapturedOutput
}

func (r *Result) Passed() bool {
	return r.Kind == KindPass
}

func (r *Result) Skipped() bool {
	return r.Kind == KindSkipped
}

// RunResult aggregates the results of a suite run in suite order.
type RunResult struct {
	Suite    string
	File     string
	Results  []*Result
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Latency  stats.Summary
}

// Success reports whether no executed case failed.
func (rr *RunResult) Success() bool {
	return rr.Failed == 0
}

// Count returns how many results have the given kind.
func (rr *RunResult) Count(kind Kind) int {
	n := 0
	for _, r := range rr.Results {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// AllTransportFailures reports whether every executed case failed before
// receiving a response, which usually means the target is unreachable.
func (rr *RunResult) AllTransportFailures() bool {
	executed := len(rr.Results) - rr.Skipped
	return executed > 0 && rr.Count(KindTransportFailure) == executed
}

// Skip reasons set by Run.
const (
	SkipFiltered = "filtered out"
	SkipBail     = "bail: an earlier case failed"
)

func skipped(name, description string, tags []string, reason string) *Result {
	return &Result{
		Name:        name,
		Description: description,
		Tags:        tags,
		Kind:        KindSkipped,
		SkipReason:  reason,
	}
}
