package mock

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	srv := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, body string, headers map[string]string) (int, map[string]any, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded, raw
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL + "/api/login"

	tests := []struct {
		name   string
		body   string
		status int
		key    string
		value  string
	}{
		{"success", `{"email":"eve.holt@reqres.in","password":"cityslicka"}`, 200, "token", Token},
		{"username", `{"username":"eve.holt@reqres.in","password":"x"}`, 200, "token", Token},
		{"missing password", `{"email":"eve.holt@reqres.in"}`, 400, "error", "Missing password"},
		{"missing email", `{"password":"cityslicka"}`, 400, "error", "Missing email or username"},
		{"unknown user", `{"email":"peter@klaven","password":"x"}`, 400, "error", "user not found"},
		{"bad json", `{"email":`, 400, "error", "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := call(t, http.MethodPost, url, tt.body, nil)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.value, body[tt.key])
		})
	}
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := call(t, http.MethodPost, srv.URL+"/api/register", `{"email":"eve.holt@reqres.in","password":"pistol"}`, nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, float64(4), body["id"])
	assert.Equal(t, Token, body["token"])

	status, body, _ = call(t, http.MethodPost, srv.URL+"/api/register", `{"email":"sydney@fife","password":"pistol"}`, nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Note: Only defined users succeed registration", body["error"])
}

func TestListUsers(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := call(t, http.MethodGet, srv.URL+"/api/users?page=2", "", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, float64(2), body["page"])
	assert.Equal(t, float64(6), body["per_page"])
	assert.Equal(t, float64(12), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])

	data := body["data"].([]any)
	require.Len(t, data, 6)
	assert.Equal(t, "Michael", data[0].(map[string]any)["first_name"])

	_, body, _ = call(t, http.MethodGet, srv.URL+"/api/users", "", nil)
	assert.Equal(t, "George", body["data"].([]any)[0].(map[string]any)["first_name"])

	_, body, _ = call(t, http.MethodGet, srv.URL+"/api/users?page=5", "", nil)
	assert.Empty(t, body["data"])
}

func TestListUsers_HugePagination(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		query      string
		data       int
		totalPages float64
	}{
		{"max page", "page=9223372036854775807", 0, 2},
		{"max per page", "page=3&per_page=9223372036854775807", 0, 1},
		{"max per page first page", "per_page=9223372036854775807", 12, 1},
		{"max both", "page=9223372036854775807&per_page=9223372036854775807", 0, 1},
		{"overflowing page falls back", "page=9223372036854775808", 6, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := call(t, http.MethodGet, srv.URL+"/api/users?"+tt.query, "", nil)
			require.Equal(t, 200, status)
			assert.Len(t, body["data"], tt.data)
			assert.Equal(t, tt.totalPages, body["total_pages"])
		})
	}
}

func TestGetUser(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := call(t, http.MethodGet, srv.URL+"/api/users/2", "", nil)
	require.Equal(t, 200, status)
	user := body["data"].(map[string]any)
	assert.Equal(t, "Janet", user["first_name"])
	assert.Equal(t, "janet.weaver@reqres.in", user["email"])

	status, _, raw := call(t, http.MethodGet, srv.URL+"/api/users/23", "", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "{}", string(raw))
}

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := call(t, http.MethodPost, srv.URL+"/api/users", `{"name":"nik","job":"programmer"}`, nil)
	require.Equal(t, 201, status)
	assert.Equal(t, "nik", body["name"])
	assert.Equal(t, "programmer", body["job"])
	assert.Equal(t, "1", body["id"])
	assert.Equal(t, "2024-05-01T10:30:00.000Z", body["createdAt"])

	_, body, _ = call(t, http.MethodPost, srv.URL+"/api/users", `{"name":"morpheus"}`, nil)
	assert.Equal(t, "2", body["id"])
}

func TestUpdateUser(t *testing.T) {
	srv := newTestServer(t)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			status, body, _ := call(t, method, srv.URL+"/api/users/2", `{"name":"nik","job":"programmer"}`, nil)
			require.Equal(t, 200, status)
			assert.Equal(t, "nik", body["name"])
			assert.Equal(t, "programmer", body["job"])
			assert.Equal(t, "2024-05-01T10:30:00.000Z", body["updatedAt"])
		})
	}
}

func TestDeleteUser(t *testing.T) {
	srv := newTestServer(t)

	status, _, raw := call(t, http.MethodDelete, srv.URL+"/api/users/2", "", nil)
	assert.Equal(t, 204, status)
	assert.Empty(t, raw)
}

func TestRouting(t *testing.T) {
	srv := newTestServer(t)

	status, _, _ := call(t, http.MethodGet, srv.URL+"/api/unknown/route", "", nil)
	assert.Equal(t, 404, status)

	status, _, _ = call(t, http.MethodGet, srv.URL+"/users/2", "", nil)
	assert.Equal(t, 404, status, "routes live under the base path")

	status, body, _ := call(t, http.MethodDelete, srv.URL+"/api/users", "", nil)
	assert.Equal(t, 405, status)
	assert.Equal(t, "method not allowed", body["error"])

	status, _, _ = call(t, http.MethodGet, srv.URL+"/api/users/2/", "", nil)
	assert.Equal(t, 200, status)
}

func TestAPIKey(t *testing.T) {
	srv := newTestServer(t, WithAPIKey("", "reqres-free-v1"))

	status, body, _ := call(t, http.MethodGet, srv.URL+"/api/users/2", "", nil)
	assert.Equal(t, 401, status)
	assert.Equal(t, "Missing API key", body["error"])

	status, _, _ = call(t, http.MethodGet, srv.URL+"/api/users/2", "", map[string]string{"x-api-key": "reqres-free-v1"})
	assert.Equal(t, 200, status)
}

func TestBasePathAndDelay(t *testing.T) {
	srv := newTestServer(t, WithBasePath("/v1/"), WithDelay(30*time.Millisecond))

	start := time.Now()
	status, _, _ := call(t, http.MethodGet, srv.URL+"/v1/users/1", "", nil)
	assert.Equal(t, 200, status)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLogger(t *testing.T) {
	var logger logging.CapturingLogger
	srv := newTestServer(t, WithLogger(&logger))

	call(t, http.MethodGet, srv.URL+"/api/users?page=2", "", nil)

	messages := logger.Output().Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "GET /api/users?page=2 -> 200")
}

func TestRoutes(t *testing.T) {
	s := NewServer()
	assert.Equal(t, DefaultBasePath, s.BasePath())
	assert.Len(t, s.Routes(), 8)
}

func TestRouter_Match(t *testing.T) {
	r := NewRouter()
	r.Handle("get", "/users/{id}", "getUser", nil)

	route, params, _ := r.Match("GET", "/users/7")
	require.NotNil(t, route)
	assert.Equal(t, "getUser", route.Name)
	assert.Equal(t, map[string]string{"id": "7"}, params)

	route, _, pathMatched := r.Match("POST", "/users/7")
	assert.Nil(t, route)
	assert.True(t, pathMatched)

	route, _, pathMatched = r.Match("GET", "/users/7/posts")
	assert.Nil(t, route)
	assert.False(t, pathMatched)
}
