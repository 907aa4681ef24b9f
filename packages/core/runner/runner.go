package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/reqcheck/packages/assertions"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/env"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/abdul-hamid-achik/reqcheck/packages/http"
	"github.com/abdul-hamid-achik/reqcheck/packages/logging"
	"github.com/abdul-hamid-achik/reqcheck/packages/stats"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second

	maxLoggedBody = 4096
)

type Runner struct {
	client   *http.Client
	resolver *env.Resolver
	limiter  *rate.Limiter
	config   *Config
}

type Config struct {
	Timeout        time.Duration
	FollowRedirect bool
	Insecure       bool
	Proxy          string

	Parallel    bool
	Sequential  bool
	AutoIsolate bool
	Concurrency int
	// RateLimit caps requests per second across the run. Zero means unlimited.
	RateLimit float64
	Bail      bool

	NameFilter string
	TagsFilter []string

	// BaseDir resolves relative schema file paths of suites that were not
	// loaded from a file. File suites use their own directory.
	BaseDir string
	// Variables feed {{name}} templates. A suite's own variables win over
	// them, VarOverrides win over both.
	Variables    map[string]any
	VarOverrides map[string]any
	// RedactHeaders are masked in curl commands and debug logs.
	RedactHeaders []string
	Warn          env.WarnFunc
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Timeouts are applied per request through the context.
	clientOpts := []http.ClientOption{
		http.WithTimeout(0),
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(!cfg.Insecure),
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}

	resolver := env.NewResolver()
	resolver.SetVariables(cfg.Variables)
	resolver.SetVariables(cfg.VarOverrides)
	if cfg.Warn != nil {
		resolver.SetWarnFunc(cfg.Warn)
	}

	r := &Runner{
		client:   http.NewClient(clientOpts...),
		resolver: resolver,
		config:   cfg,
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return r
}

// Client returns the HTTP client requests are sent with.
func (r *Runner) Client() *http.Client {
	return r.client
}

// scope holds what differs between the suites sharing one Runner.
type scope struct {
	resolver *env.Resolver
	baseDir  string
}

func (r *Runner) scopeFor(s *suite.Suite) scope {
	sc := scope{resolver: r.resolver, baseDir: r.config.BaseDir}
	if s.Path != "" {
		sc.baseDir = filepath.Dir(s.Path)
	}
	if len(s.Variables) > 0 {
		sc.resolver = r.resolver.Clone()
		sc.resolver.SetVariables(s.Variables)
		sc.resolver.SetVariables(r.config.VarOverrides)
	}
	return sc
}

func (r *Runner) parallel() bool {
	return r.config.Parallel && !r.config.Sequential
}

// Run executes every selected case of s and returns results in suite order.
// A failing case never stops the others unless Bail is set.
func (r *Runner) Run(ctx context.Context, spec *RequestSpec, s *suite.Suite) *RunResult {
	start := time.Now()
	result := &RunResult{
		Suite:   s.Name,
		File:    s.Path,
		Results: make([]*Result, len(s.Tests)),
	}

	var reads, writes, selected []int
	for i := range s.Tests {
		tc := &s.Tests[i]
		if !r.shouldRun(tc) {
			result.Results[i] = skipped(tc.Name, tc.Description, tc.Tags, SkipFiltered)
			continue
		}
		selected = append(selected, i)
		if tc.Mutating() {
			writes = append(writes, i)
		} else {
			reads = append(reads, i)
		}
	}

	sc := r.scopeFor(s)
	var bailed atomic.Bool
	switch {
	case !r.parallel():
		r.runSequential(ctx, spec, sc, s, selected, result.Results, &bailed)
	case r.config.AutoIsolate:
		r.runParallel(ctx, spec, sc, s, reads, result.Results, &bailed)
		r.runSequential(ctx, spec, sc, s, writes, result.Results, &bailed)
	default:
		r.runParallel(ctx, spec, sc, s, selected, result.Results, &bailed)
	}

	latency := stats.NewLatency()
	for _, res := range result.Results {
		switch {
		case res.Skipped():
			result.Skipped++
		case res.Passed():
			result.Passed++
		default:
			result.Failed++
		}
		if res.Response != nil {
			latency.Record(res.Response.Duration)
		}
	}
	result.Latency = latency.Summary()
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) runSequential(ctx context.Context, spec *RequestSpec, sc scope, s *suite.Suite, indexes []int, results []*Result, bailed *atomic.Bool) {
	for _, i := range indexes {
		tc := &s.Tests[i]
		if bailed.Load() {
			results[i] = skipped(tc.Name, tc.Description, tc.Tags, SkipBail)
			continue
		}
		results[i] = r.execute(ctx, spec, sc, tc)
		if r.config.Bail && !results[i].Passed() {
			bailed.Store(true)
		}
	}
}

func (r *Runner) runParallel(ctx context.Context, spec *RequestSpec, sc scope, s *suite.Suite, indexes []int, results []*Result, bailed *atomic.Bool) {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, i := range indexes {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			tc := &s.Tests[idx]
			if bailed.Load() {
				results[idx] = skipped(tc.Name, tc.Description, tc.Tags, SkipBail)
				return
			}
			results[idx] = r.execute(ctx, spec, sc, tc)
			if r.config.Bail && !results[idx].Passed() {
				bailed.Store(true)
			}
		}(i)
	}

	wg.Wait()
}

func (r *Runner) shouldRun(tc *suite.TestCase) bool {
	if r.config.NameFilter != "" && !matchesPattern(tc.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !tc.HasTag(r.config.TagsFilter...) {
		return false
	}
	return true
}

// Execute sends one test case and classifies the outcome. It never panics
// on bad input; every problem is reported through the Result.
func (r *Runner) Execute(ctx context.Context, spec *RequestSpec, tc *suite.TestCase) *Result {
	return r.execute(ctx, spec, scope{resolver: r.resolver, baseDir: r.config.BaseDir}, tc)
}

func (r *Runner) execute(ctx context.Context, spec *RequestSpec, sc scope, tc *suite.TestCase) *Result {
	logger := &logging.CapturingLogger{}
	result := &Result{
		Name:           tc.Name,
		Description:    tc.Description,
		Tags:           tc.Tags,
		ExpectedStatus: tc.Expect.Status,
	}
	defer func() { result.Log = logger.Output() }()

	req, err := r.buildRequest(spec, sc.resolver, tc)
	if err != nil {
		result.Kind = KindTransportFailure
		result.Error = err
		return result
	}
	result.Request = req
	result.Curl = http.Curl(req, r.config.RedactHeaders...)
	r.logRequest(logger, req)

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			result.Kind = KindTransportFailure
			result.Error = fmt.Errorf("waiting for rate limiter: %w", err)
			return result
		}
	}

	start := time.Now()
	resp, err := r.client.Do(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		logger.Printf("<-- transport error: %v", err)
		result.Kind = KindTransportFailure
		result.Error = err
		return result
	}
	result.Response = resp
	result.ActualStatus = resp.StatusCode
	r.logResponse(logger, resp)

	if resp.StatusCode != tc.Expect.Status {
		result.Kind = KindStatusMismatch
		return result
	}

	if len(tc.Expect.Body) > 0 {
		evaluator := assertions.NewEvaluator(resp, assertions.WithBaseDir(sc.baseDir))
		if err := evaluator.CheckBody(); err != nil {
			result.Kind = KindMalformedResponse
			result.Error = err
			return result
		}
		for _, a := range tc.Expect.Body {
			if res := evaluator.Evaluate(a); !res.Passed {
				result.Failures = append(result.Failures, res)
			}
		}
	}

	if tc.Expect.Empty && !resp.IsEmpty() {
		result.Failures = append(result.Failures, &assertions.Result{
			Assertion: suite.Assertion{Op: suite.OpBlank},
			Expected:  "",
			Actual:    truncate(resp.BodyString(), 200),
			Message:   "expected an empty body",
		})
	}

	if len(result.Failures) > 0 {
		result.Kind = KindAssertionFailure
		return result
	}
	result.Kind = KindPass
	return result
}

func (r *Runner) buildRequest(spec *RequestSpec, resolver *env.Resolver, tc *suite.TestCase) (*http.Request, error) {
	var unresolved []string
	check := func(where, v string) {
		for _, name := range resolver.GetUnresolvedVariables(v) {
			unresolved = append(unresolved, fmt.Sprintf("%s (%s)", name, where))
		}
	}
	resolve := func(where, v string) string {
		out := resolver.Resolve(v)
		check(where, out)
		return out
	}

	path := resolve("path", tc.ExpandPath())
	req := http.NewRequest(tc.Method, spec.URL(path))
	req.SetTimeout(r.config.Timeout)

	for k, v := range spec.DefaultHeaders() {
		setHeader(req, k, resolve("header "+k, v))
	}

	resolved := *tc
	resolved.Body = resolver.ResolveValue(tc.Body)
	body, err := resolved.EncodeBody()
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	check("body", string(body))
	if body != nil {
		setHeader(req, "Content-Type", spec.ContentType())
		req.SetBody(body)
	}

	for _, k := range sortedKeys(tc.Headers) {
		setHeader(req, k, resolve("header "+k, tc.Headers[k]))
	}
	for _, k := range sortedKeys(tc.Query) {
		req.SetQueryParam(k, resolve("query "+k, tc.Query[k]))
	}

	if len(unresolved) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(unresolved, ", "))
	}
	return req, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setHeader replaces any header with the same name regardless of case.
func setHeader(req *http.Request, key, value string) {
	for existing := range req.Headers {
		if strings.EqualFold(existing, key) {
			delete(req.Headers, existing)
		}
	}
	req.SetHeader(key, value)
}

func (r *Runner) redacted(name, value string) string {
	for _, h := range r.config.RedactHeaders {
		if strings.EqualFold(h, name) {
			return "***"
		}
	}
	return value
}

func (r *Runner) logRequest(logger logging.Logger, req *http.Request) {
	logger.Printf("--> %s %s", req.Method, req.BuildURL())
	for _, name := range req.HeaderNames() {
		logger.Printf("%s: %s", name, r.redacted(name, req.Headers[name]))
	}
	if len(req.Body) > 0 {
		logger.Printf("%s", prettyBody(req.Body))
	}
}

func (r *Runner) logResponse(logger logging.Logger, resp *http.Response) {
	logger.Printf("<-- %s %s (%s)", resp.Proto, resp.Status, resp.Duration.Round(time.Millisecond))
	for _, name := range resp.HeaderNames() {
		logger.Printf("%s: %s", name, resp.Headers[name])
	}
	if !resp.IsEmpty() {
		logger.Printf("%s", prettyBody(resp.Body))
	}
}

func prettyBody(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		if indented, err := json.MarshalIndent(v, "", "  "); err == nil {
			return truncate(string(indented), maxLoggedBody)
		}
	}
	return truncate(string(body), maxLoggedBody)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if pattern == "*" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}
	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}
	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}
