package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"page": 2}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL+"/api/users"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Contains(t, resp.HeaderNames(), "Content-Type")
	assert.Contains(t, resp.BodyString(), `"page"`)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"nik","job":"programmer"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "123"}`))
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(`{"name":"nik","job":"programmer"}`))
	resp, err := NewClient().Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Contains(t, resp.BodyString(), "123")
}

func TestClient_QueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("get", server.URL+"/api/users").SetQueryParam("page", "2")
	resp, err := NewClient().Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "GET", req.Method)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Do(context.Background(), NewRequest("GET", server.URL))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestClient_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL).SetTimeout(50 * time.Millisecond)
	_, err := NewClient().Do(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient().Do(context.Background(), NewRequest("GET", url))
	assert.Error(t, err)
}

func TestClient_UserAgent(t *testing.T) {
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Do(context.Background(), NewRequest("GET", server.URL))
	require.NoError(t, err)
	_, err = client.Do(context.Background(), NewRequest("GET", server.URL).SetHeader("User-Agent", "smoke/1.0"))
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultUserAgent, "smoke/1.0"}, agents)
}

func TestClient_RedirectLimit(t *testing.T) {
	hops := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	resp, err := NewClient().Do(context.Background(), NewRequest("GET", server.URL+"/loop"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, DefaultMaxRedirects, hops)
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(true))
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Do(context.Background(), NewRequest("GET", server.URL+"/redirect"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://reqres.in/api/users", wantErr: false},
		{name: "http with port", url: "http://localhost:3000/api", wantErr: false},
		{name: "ftp scheme", url: "ftp://reqres.in", wantErr: true},
		{name: "no scheme", url: "reqres.in/api", wantErr: true},
		{name: "no host", url: "http:///api", wantErr: true},
		{name: "bad escape", url: "http://reqres.in/%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResponse_IsEmpty(t *testing.T) {
	assert.True(t, (&Response{}).IsEmpty())
	assert.True(t, (&Response{Body: []byte(" \n")}).IsEmpty())
	assert.False(t, (&Response{Body: []byte(`{}`)}).IsEmpty())
}

func TestCurl(t *testing.T) {
	req := NewRequest("POST", "https://reqres.in/api/users").
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", "reqres-free-v1").
		SetBody([]byte(`{"name":"nik"}`))

	got := Curl(req, "x-api-key")

	assert.Equal(t,
		`curl -sS -X POST -H 'Content-Type: application/json' -H 'x-api-key: ***' --data-raw '{"name":"nik"}' https://reqres.in/api/users`,
		got)
}

func TestCurl_QueryParams(t *testing.T) {
	req := NewRequest("GET", "https://reqres.in/api/users").SetQueryParam("page", "2")
	assert.Equal(t, `curl -sS -X GET 'https://reqres.in/api/users?page=2'`, Curl(req))
}
