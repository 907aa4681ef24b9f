package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/reqcheck/packages/assertions"
	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
	"github.com/abdul-hamid-achik/reqcheck/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gock.v1"
)

const apiKey = "reqres-free-v1"

// newFixture starts the reqres fixture and returns a spec pointing at it.
func newFixture(t *testing.T, opts ...mock.Option) *RequestSpec {
	t.Helper()
	srv := httptest.NewServer(mock.NewServer(opts...).Handler())
	t.Cleanup(srv.Close)

	spec, err := Configure(srv.URL+"/api/", map[string]string{"x-api-key": apiKey}, "")
	require.NoError(t, err)
	return spec
}

func findCase(t *testing.T, s *suite.Suite, name string) *suite.TestCase {
	t.Helper()
	for i := range s.Tests {
		if s.Tests[i].Name == name {
			return &s.Tests[i]
		}
	}
	t.Fatalf("no case named %s", name)
	return nil
}

func resultNames(rr *RunResult) []string {
	names := make([]string, len(rr.Results))
	for i, r := range rr.Results {
		names[i] = r.Name
	}
	return names
}

func TestConfigure(t *testing.T) {
	spec, err := Configure("https://reqres.in/api/", map[string]string{"x-api-key": apiKey}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://reqres.in/api", spec.BaseURL())
	assert.Equal(t, "https://reqres.in/api/users/2", spec.URL("/users/2"))
	assert.Equal(t, "https://reqres.in/api/users", spec.URL("users"))
	assert.Equal(t, DefaultContentType, spec.ContentType())

	headers := spec.DefaultHeaders()
	headers["x-api-key"] = "changed"
	assert.Equal(t, apiKey, spec.DefaultHeaders()["x-api-key"], "spec must not change through accessors")

	spec, err = Configure("http://localhost:3000/api", nil, "application/vnd.api+json")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.api+json", spec.ContentType())
	assert.Empty(t, spec.DefaultHeaders())
}

func TestConfigure_Errors(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr error
	}{
		{"empty", "", ErrEmptyBaseURL},
		{"blank", "   ", ErrEmptyBaseURL},
		{"no scheme", "reqres.in/api", ErrMalformedBaseURL},
		{"ftp scheme", "ftp://reqres.in/api", ErrMalformedBaseURL},
		{"no host", "https:///api", ErrMalformedBaseURL},
		{"unparsable", "http://[::1", ErrMalformedBaseURL},
		{"query", "https://reqres.in/api?page=2", ErrMalformedBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Configure(tt.baseURL, nil, "")
			require.Error(t, err)
			assert.Nil(t, spec)
			assert.ErrorIs(t, err, tt.wantErr)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
		})
	}
}

func TestRunner_ReqresSuite(t *testing.T) {
	spec := newFixture(t, mock.WithAPIKey("", apiKey))

	rr := NewRunner(&Config{}).Run(context.Background(), spec, suite.Reqres())

	for _, r := range rr.Results {
		assert.True(t, r.Passed(), "%s: kind=%s error=%v failures=%v", r.Name, r.Kind, r.Error, r.Failures)
	}
	assert.Equal(t, 8, rr.Passed)
	assert.Equal(t, 0, rr.Failed)
	assert.True(t, rr.Success())
	assert.Equal(t, "reqres", rr.Suite)
	assert.Equal(t, int64(8), rr.Latency.Count)
	assert.Equal(t, []string{
		"successLogin", "unsuccessfulLogin", "listUsers", "createUser",
		"getUser", "deleteUser", "updateUser", "patchUser",
	}, resultNames(rr))
}

func TestRunner_ReqresSuite_Parallel(t *testing.T) {
	spec := newFixture(t)

	rr := NewRunner(&Config{Parallel: true, Concurrency: 3}).Run(context.Background(), spec, suite.Reqres())

	assert.Equal(t, 8, rr.Passed)
	assert.Equal(t, resultNames(NewRunner(nil).Run(context.Background(), spec, suite.Reqres())), resultNames(rr))
}

func TestRunner_MissingAPIKey(t *testing.T) {
	srv := httptest.NewServer(mock.NewServer(mock.WithAPIKey("", apiKey)).Handler())
	defer srv.Close()
	spec, err := Configure(srv.URL+"/api", nil, "")
	require.NoError(t, err)

	rr := NewRunner(nil).Run(context.Background(), spec, suite.Reqres())

	assert.Equal(t, 8, rr.Failed)
	for _, r := range rr.Results {
		assert.Equal(t, KindStatusMismatch, r.Kind)
		assert.Equal(t, 401, r.ActualStatus)
	}
	assert.False(t, rr.AllTransportFailures())
}

func TestRunner_TokenPolicy(t *testing.T) {
	spec := newFixture(t)
	login := suite.Reqres().WithTokenPolicy(suite.TokenPolicy{Strict: true, Value: suite.ReqresToken})
	tc := findCase(t, login, "successLogin")

	res := NewRunner(nil).Execute(context.Background(), spec, tc)
	assert.Equal(t, KindPass, res.Kind)

	wrong := suite.Reqres().WithTokenPolicy(suite.TokenPolicy{Strict: true, Value: "not-the-token"})
	tc = findCase(t, wrong, "successLogin")

	res = NewRunner(nil).Execute(context.Background(), spec, tc)
	assert.Equal(t, KindAssertionFailure, res.Kind)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, suite.ReqresToken, res.Failures[0].Actual)
}

func TestExecute_StatusMismatch(t *testing.T) {
	spec := newFixture(t)
	tc := &suite.TestCase{
		Name:   "missingUser",
		Method: "GET",
		Path:   "/users/23",
		Expect: suite.Expect{
			Status: 200,
			Body:   []suite.Assertion{{Path: "data.first_name", Op: suite.OpEquals, Value: "Janet"}},
		},
	}

	res := NewRunner(nil).Execute(context.Background(), spec, tc)

	assert.Equal(t, KindStatusMismatch, res.Kind)
	assert.Equal(t, 200, res.ExpectedStatus)
	assert.Equal(t, 404, res.ActualStatus)
	assert.Empty(t, res.Failures, "body assertions are not evaluated on status mismatch")
	assert.False(t, res.Passed())
}

func TestExecute_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)
	srv.Close()

	tc := &suite.TestCase{Name: "down", Method: "GET", Path: "/users", Expect: suite.Expect{Status: 200}}
	rr := NewRunner(nil).Run(context.Background(), spec, &suite.Suite{Tests: []suite.TestCase{*tc}})

	res := rr.Results[0]
	assert.Equal(t, KindTransportFailure, res.Kind)
	assert.Zero(t, res.ActualStatus)
	assert.Nil(t, res.Response)
	assert.Error(t, res.Error)
	assert.True(t, rr.AllTransportFailures())
	assert.Equal(t, int64(0), rr.Latency.Count)
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)

	tc := &suite.TestCase{Name: "slow", Method: "GET", Path: "/slow", Expect: suite.Expect{Status: 200}}
	res := NewRunner(&Config{Timeout: 50 * time.Millisecond}).Execute(context.Background(), spec, tc)

	assert.Equal(t, KindTransportFailure, res.Kind)
	assert.Zero(t, res.ActualStatus)
	assert.ErrorIs(t, res.Error, context.DeadlineExceeded)
}

func TestExecute_Cancelled(t *testing.T) {
	spec := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := findCase(t, suite.Reqres(), "getUser")
	res := NewRunner(nil).Execute(ctx, spec, tc)

	assert.Equal(t, KindTransportFailure, res.Kind)
	assert.ErrorIs(t, res.Error, context.Canceled)
}

func TestExecute_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)

	tc := &suite.TestCase{
		Name:   "login",
		Method: "POST",
		Path:   "/login",
		Body:   map[string]any{"email": "eve.holt@reqres.in", "password": "cityslicka"},
		Expect: suite.Expect{Status: 200, Body: []suite.Assertion{{Path: "token", Op: suite.OpNotBlank}}},
	}
	res := NewRunner(nil).Execute(context.Background(), spec, tc)

	assert.Equal(t, KindMalformedResponse, res.Kind)
	assert.ErrorIs(t, res.Error, assertions.ErrMalformedBody)
	assert.Equal(t, 200, res.ActualStatus)
}

func TestExecute_ReportsAllFailures(t *testing.T) {
	spec := newFixture(t)
	tc := &suite.TestCase{
		Name:       "patchUser",
		Method:     "PATCH",
		Path:       "/users/{id}",
		PathParams: map[string]string{"id": "2"},
		Body:       map[string]any{"name": "nik", "job": "programmer"},
		Expect: suite.Expect{
			Status: 200,
			Body: []suite.Assertion{
				{Path: "updatedAt", Op: suite.OpNotBlank},
				{Path: "name", Op: suite.OpEquals, Value: "morpheus"},
				{Path: "job", Op: suite.OpEquals, Value: "leader"},
				{Path: "data.id", Op: suite.OpEquals, Value: 2},
			},
		},
	}

	res := NewRunner(nil).Execute(context.Background(), spec, tc)

	assert.Equal(t, KindAssertionFailure, res.Kind)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "name", res.Failures[0].Assertion.Path)
	assert.Equal(t, "nik", res.Failures[0].Actual)
	assert.Equal(t, "morpheus", res.Failures[0].Expected)
	assert.Equal(t, "job", res.Failures[1].Assertion.Path)
	assert.Equal(t, "data.id", res.Failures[2].Assertion.Path)
	assert.Equal(t, "field not found", res.Failures[2].Message)
}

func TestExecute_ExpectEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)

	tc := &suite.TestCase{Name: "delete", Method: "DELETE", Path: "/users/2", Expect: suite.Expect{Status: 204, Empty: true}}
	assert.Equal(t, KindPass, NewRunner(nil).Execute(context.Background(), spec, tc).Kind)

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"deleted": true}`))
	}))
	defer srv2.Close()
	spec, err = Configure(srv2.URL, nil, "")
	require.NoError(t, err)

	tc.Expect.Status = 200
	res := NewRunner(nil).Execute(context.Background(), spec, tc)
	assert.Equal(t, KindAssertionFailure, res.Kind)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "expected an empty body", res.Failures[0].Message)
}

func TestExecute_RequestBuilding(t *testing.T) {
	var mu sync.Mutex
	var got *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got, gotBody = r.Clone(context.Background()), string(body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	t.Setenv("REQCHECK_TEST_JOB", "programmer")
	spec, err := Configure(srv.URL+"/api", map[string]string{"x-api-key": apiKey, "X-Trace": "default"}, "")
	require.NoError(t, err)

	r := NewRunner(&Config{Variables: map[string]any{"userId": 2, "name": "nik"}})

	post := &suite.TestCase{
		Name:       "update",
		Method:     "PUT",
		Path:       "/users/{id}/{{userId}}",
		PathParams: map[string]string{"id": "teams"},
		Query:      map[string]string{"dry": "{{name}}"},
		Headers:    map[string]string{"x-trace": "per-case"},
		Body:       map[string]any{"name": "{{name}}", "job": "{{$REQCHECK_TEST_JOB}}"},
		Expect:     suite.Expect{Status: 200},
	}
	res := r.Execute(context.Background(), spec, post)
	require.Equal(t, KindPass, res.Kind, res.Error)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "PUT", got.Method)
	assert.Equal(t, "/api/users/teams/2", got.URL.Path)
	assert.Equal(t, "nik", got.URL.Query().Get("dry"))
	assert.Equal(t, apiKey, got.Header.Get("X-Api-Key"))
	assert.Equal(t, "per-case", got.Header.Get("X-Trace"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"nik","job":"programmer"}`, gotBody)

	get := &suite.TestCase{Name: "list", Method: "GET", Path: "/users", Expect: suite.Expect{Status: 200}}
	mu.Unlock()
	res = r.Execute(context.Background(), spec, get)
	mu.Lock()
	require.Equal(t, KindPass, res.Kind)
	assert.Empty(t, got.Header.Get("Content-Type"), "no content type without a body")
	assert.Equal(t, "default", got.Header.Get("X-Trace"))
}

func TestExecute_CurlAndLog(t *testing.T) {
	spec := newFixture(t)
	tc := findCase(t, suite.Reqres(), "createUser")

	res := NewRunner(&Config{RedactHeaders: []string{"x-api-key"}}).Execute(context.Background(), spec, tc)
	require.Equal(t, KindPass, res.Kind)

	assert.True(t, strings.HasPrefix(res.Curl, "curl -sS -X POST"))
	assert.Contains(t, res.Curl, "'x-api-key: ***'")
	assert.Contains(t, res.Curl, `--data-raw '{"job":"programmer","name":"nik"}'`)

	messages := strings.Join(res.Log.Messages(), "\n")
	assert.Contains(t, messages, "--> POST "+spec.URL("/users"))
	assert.Contains(t, messages, "x-api-key: ***")
	assert.Contains(t, messages, "<-- HTTP/1.1 201 Created")
	assert.Contains(t, messages, `"createdAt"`)
}

func TestExecute_UnresolvedVariable(t *testing.T) {
	spec := newFixture(t)
	var warnings []string
	r := NewRunner(&Config{Warn: func(format string, args ...any) {
		warnings = append(warnings, format)
	}})

	tc := &suite.TestCase{Name: "x", Method: "GET", Path: "/users/{{missing}}", Expect: suite.Expect{Status: 200}}
	res := r.Execute(context.Background(), spec, tc)

	assert.Equal(t, KindTransportFailure, res.Kind)
	assert.Contains(t, res.Error.Error(), "missing")
	assert.NotEmpty(t, warnings)
}

func TestExecute_UnresolvedVariableOutsidePath(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		tc    suite.TestCase
		where string
	}{
		{"query", suite.TestCase{Query: map[string]string{"page": "{{page}}"}}, "page (query page)"},
		{"header", suite.TestCase{Headers: map[string]string{"Authorization": "Bearer {{token}}"}}, "token (header Authorization)"},
		{"body", suite.TestCase{Body: map[string]any{"name": "{{name}}", "job": "leader"}}, "name (body)"},
		{"string body", suite.TestCase{Body: `{"email": "{{$REQCHECK_TEST_SURELY_UNSET}}"}`}, "$REQCHECK_TEST_SURELY_UNSET (body)"},
		{"unknown function", suite.TestCase{Query: map[string]string{"id": "{{nope()}}"}}, "nope() (query id)"},
		{"function with bad argument", suite.TestCase{Query: map[string]string{"page": "{{random(one, 2)}}"}}, "random(one, 2) (query page)"},
	}

	r := NewRunner(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := tt.tc
			tc.Name, tc.Method, tc.Path = tt.name, "POST", "/users"
			tc.Expect = suite.Expect{Status: 200}

			res := r.Execute(context.Background(), spec, &tc)

			assert.Equal(t, KindTransportFailure, res.Kind)
			require.Error(t, res.Error)
			assert.Contains(t, res.Error.Error(), tt.where)
			assert.Nil(t, res.Request)
		})
	}
	assert.Zero(t, hits.Load(), "nothing is sent with unresolved templates")

	ok := &suite.TestCase{
		Name:    "resolved",
		Method:  "POST",
		Path:    "/users",
		Query:   map[string]string{"id": "{{uuid()}}"},
		Headers: map[string]string{"X-Request-Id": "{{uuid()}}"},
		Body:    map[string]any{"name": "nik"},
		Expect:  suite.Expect{Status: 200},
	}
	assert.Equal(t, KindPass, r.Execute(context.Background(), spec, ok).Kind)
}

func TestRunner_SchemaRelativeToSuiteFile(t *testing.T) {
	spec := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{
  "type": "object",
  "required": ["id", "email", "first_name"],
  "properties": {"id": {"type": "integer"}, "email": {"type": "string"}}
}`), 0o644))
	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: users
tests:
  - name: getUser
    method: GET
    path: /users/2
    expect:
      status: 200
      body:
        - {path: data, op: schema, value: user.json}
`), 0o644))

	s, err := suite.Load(path)
	require.NoError(t, err)

	rr := NewRunner(&Config{BaseDir: t.TempDir()}).Run(context.Background(), spec, s)

	res := rr.Results[0]
	assert.Equal(t, KindPass, res.Kind, "%v %v", res.Error, res.Failures)
}

func TestRunner_SchemaStaysInsideSuiteDir(t *testing.T) {
	spec := newFixture(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "user.json"), []byte(`{"type": "object"}`), 0o644))
	dir := filepath.Join(root, "suites")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tests:
  - name: getUser
    method: GET
    path: /users/2
    expect:
      status: 200
      body:
        - {path: data, op: schema, value: ../user.json}
`), 0o644))

	s, err := suite.Load(path)
	require.NoError(t, err)

	res := NewRunner(nil).Run(context.Background(), spec, s).Results[0]
	assert.Equal(t, KindAssertionFailure, res.Kind)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Message, "outside")
}

func TestRunner_FixtureIsDeterministic(t *testing.T) {
	spec := newFixture(t)

	bodies := func() map[string]string {
		rr := NewRunner(nil).Run(context.Background(), spec, suite.Reqres())
		out := map[string]string{}
		for _, r := range rr.Results {
			require.True(t, r.Passed(), r.Name)
			if r.Request.Method == "GET" {
				out[r.Name] = r.Response.BodyString()
			}
		}
		return out
	}

	first, second := bodies(), bodies()
	require.Contains(t, first, "listUsers")
	require.Contains(t, first, "getUser")
	assert.Equal(t, first, second)
	assert.Equal(t, "Michael", gjson.Get(first["listUsers"], "data.0.first_name").String())
	assert.Equal(t, "Janet", gjson.Get(first["getUser"], "data.first_name").String())
}

func TestRunner_VariablePrecedence(t *testing.T) {
	spec := newFixture(t)
	s := &suite.Suite{
		Name:      "vars",
		Variables: map[string]any{"userId": 3},
		Tests: []suite.TestCase{{
			Name:   "getUser",
			Method: "GET",
			Path:   "/users/{{userId}}",
			Expect: suite.Expect{Status: 200, Body: []suite.Assertion{{Path: "data.first_name", Op: suite.OpNotBlank}}},
		}},
	}

	firstName := func(cfg *Config, s *suite.Suite) string {
		t.Helper()
		res := NewRunner(cfg).Run(context.Background(), spec, s).Results[0]
		require.Equal(t, KindPass, res.Kind, res.Error)
		return gjson.Get(res.Response.BodyString(), "data.first_name").String()
	}

	assert.Equal(t, "Emma", firstName(&Config{Variables: map[string]any{"userId": 2}}, s), "suite beats config")
	assert.Equal(t, "Eve", firstName(&Config{Variables: map[string]any{"userId": 2}, VarOverrides: map[string]any{"userId": 4}}, s), "overrides beat suite")

	noVars := s.Clone()
	noVars.Variables = nil
	assert.Equal(t, "Janet", firstName(&Config{Variables: map[string]any{"userId": 2}}, noVars))

	r := NewRunner(&Config{Variables: map[string]any{"userId": 2}})
	r.Run(context.Background(), spec, s)
	res := r.Execute(context.Background(), spec, &noVars.Tests[0])
	assert.Equal(t, "Janet", gjson.Get(res.Response.BodyString(), "data.first_name").String(), "suite variables do not leak")
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "П...", truncate("Привет", 3))
	assert.Equal(t, "Пр...", truncate("Привет", 4))

	long := strings.Repeat("Ответ сервера ", 400)
	out := prettyBody([]byte(long))
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), maxLoggedBody+len("..."))
}

// concurrencyRecorder counts in-flight requests and records arrival order.
type concurrencyRecorder struct {
	mu       sync.Mutex
	inFlight atomic.Int32
	max      atomic.Int32
	order    []string
	delay    time.Duration
}

func (c *concurrencyRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		cur := c.max.Load()
		if n <= cur || c.max.CompareAndSwap(cur, n) {
			break
		}
	}
	c.mu.Lock()
	c.order = append(c.order, r.Method)
	c.mu.Unlock()

	time.Sleep(c.delay)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func recordedSuite() *suite.Suite {
	s := &suite.Suite{Name: "recorded"}
	for i, method := range []string{"GET", "POST", "GET", "DELETE", "GET", "PUT", "GET"} {
		s.Tests = append(s.Tests, suite.TestCase{
			Name:   method + string(rune('a'+i)),
			Method: method,
			Path:   "/recorded",
			Expect: suite.Expect{Status: 200},
		})
	}
	return s
}

func runRecorded(t *testing.T, cfg *Config) (*concurrencyRecorder, *RunResult) {
	t.Helper()
	rec := &concurrencyRecorder{delay: 60 * time.Millisecond}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	spec, err := Configure(srv.URL, nil, "")
	require.NoError(t, err)

	rr := NewRunner(cfg).Run(context.Background(), spec, recordedSuite())
	return rec, rr
}

func TestRunner_SequentialByDefault(t *testing.T) {
	rec, rr := runRecorded(t, &Config{})
	assert.Equal(t, 7, rr.Passed)
	assert.Equal(t, int32(1), rec.max.Load())
	assert.Equal(t, []string{"GET", "POST", "GET", "DELETE", "GET", "PUT", "GET"}, rec.order)
}

func TestRunner_Parallel(t *testing.T) {
	rec, rr := runRecorded(t, &Config{Parallel: true, Concurrency: 7})
	assert.Equal(t, 7, rr.Passed)
	assert.Greater(t, rec.max.Load(), int32(1))
	assert.Equal(t, resultNames(rr), []string{"GETa", "POSTb", "GETc", "DELETEd", "GETe", "PUTf", "GETg"})
}

func TestRunner_SequentialOverridesParallel(t *testing.T) {
	rec, rr := runRecorded(t, &Config{Parallel: true, Sequential: true, Concurrency: 7})
	assert.Equal(t, 7, rr.Passed)
	assert.Equal(t, int32(1), rec.max.Load())
}

func TestRunner_AutoIsolate(t *testing.T) {
	rec, rr := runRecorded(t, &Config{Parallel: true, AutoIsolate: true, Concurrency: 7})
	assert.Equal(t, 7, rr.Passed)
	assert.Equal(t, []string{"GET", "GET", "GET", "GET", "POST", "DELETE", "PUT"}, rec.order)
	assert.Equal(t, resultNames(rr), []string{"GETa", "POSTb", "GETc", "DELETEd", "GETe", "PUTf", "GETg"})
}

func TestRunner_RateLimit(t *testing.T) {
	spec := newFixture(t)
	s := &suite.Suite{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		s.Tests = append(s.Tests, suite.TestCase{Name: name, Method: "GET", Path: "/users/1", Expect: suite.Expect{Status: 200}})
	}

	start := time.Now()
	rr := NewRunner(&Config{RateLimit: 20, Parallel: true}).Run(context.Background(), spec, s)

	assert.Equal(t, 5, rr.Passed)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestRunner_Bail(t *testing.T) {
	spec := newFixture(t)
	s := suite.Reqres()
	s.Tests[1].Expect.Status = 200 // unsuccessfulLogin now fails

	rr := NewRunner(&Config{Bail: true}).Run(context.Background(), spec, s)

	assert.Equal(t, 1, rr.Passed)
	assert.Equal(t, 1, rr.Failed)
	assert.Equal(t, 6, rr.Skipped)
	assert.Equal(t, KindSkipped, rr.Results[2].Kind)
	assert.Contains(t, rr.Results[2].SkipReason, "bail")
}

func TestRunner_NoBailKeepsGoing(t *testing.T) {
	spec := newFixture(t)
	s := suite.Reqres()
	s.Tests[1].Expect.Status = 200

	rr := NewRunner(nil).Run(context.Background(), spec, s)

	assert.Equal(t, 7, rr.Passed)
	assert.Equal(t, 1, rr.Failed)
	assert.Equal(t, 0, rr.Skipped)
	assert.False(t, rr.Success())
	assert.Equal(t, 1, rr.Count(KindStatusMismatch))
}

func TestRunner_NameFilter(t *testing.T) {
	spec := newFixture(t)

	rr := NewRunner(&Config{NameFilter: "*User"}).Run(context.Background(), spec, suite.Reqres())

	assert.Equal(t, 5, rr.Passed)
	assert.Equal(t, 3, rr.Skipped)
	assert.Equal(t, "filtered out", rr.Results[0].SkipReason)
}

func TestRunner_TagsFilter(t *testing.T) {
	spec := newFixture(t)

	rr := NewRunner(&Config{TagsFilter: []string{"auth"}}).Run(context.Background(), spec, suite.Reqres())

	assert.Equal(t, 2, rr.Passed)
	assert.Equal(t, 6, rr.Skipped)
	assert.True(t, rr.Results[0].Passed())
	assert.True(t, rr.Results[1].Passed())
}

func TestRunner_Gock(t *testing.T) {
	defer gock.Off()

	r := NewRunner(nil)
	gock.InterceptClient(r.Client().HTTPClient())
	defer gock.RestoreClient(r.Client().HTTPClient())

	gock.New("https://reqres.in").
		Post("/api/login").
		MatchHeader("x-api-key", apiKey).
		MatchHeader("Content-Type", "application/json").
		Reply(200).
		JSON(map[string]string{"token": suite.ReqresToken})

	gock.New("https://reqres.in").
		Get("/api/users/2").
		ReplyError(errors.New("dial tcp: lookup reqres.in: no such host"))

	spec, err := Configure(suite.DefaultBaseURL, map[string]string{"x-api-key": apiKey}, "")
	require.NoError(t, err)

	login := findCase(t, suite.Reqres(), "successLogin")
	res := r.Execute(context.Background(), spec, login)
	assert.Equal(t, KindPass, res.Kind, res.Error)

	get := findCase(t, suite.Reqres(), "getUser")
	res = r.Execute(context.Background(), spec, get)
	assert.Equal(t, KindTransportFailure, res.Kind)
	assert.Contains(t, res.Error.Error(), "no such host")

	assert.True(t, gock.IsDone())
}

func TestResult_ZeroValueIsNotPassed(t *testing.T) {
	var r Result
	assert.Equal(t, KindUnknown, r.Kind)
	assert.False(t, r.Passed())
	assert.False(t, r.Skipped())

	rr := &RunResult{Results: []*Result{{Name: "unclassified"}}}
	assert.Zero(t, rr.Count(KindPass))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "pass", KindPass.String())
	assert.Equal(t, "malformed_response", KindMalformedResponse.String())
	assert.Equal(t, "unknown", Kind(99).String())

	text, err := KindStatusMismatch.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "status_mismatch", string(text))
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"exact match", "getUser", true},
		{"prefix match", "get*", true},
		{"suffix match", "*User", true},
		{"contains match", "*tUs*", true},
		{"wildcard", "*", true},
		{"no match", "delete*", false},
		{"empty pattern", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" - "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesPattern("getUser", tt.pattern))
		})
	}
}
