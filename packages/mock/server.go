package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/logging"
)

const (
	DefaultPort         = 3000
	DefaultBasePath     = "/api"
	DefaultAPIKeyHeader = "x-api-key"

	maxRequestBody = 1 << 20
)

// Server is a local stand-in for the reqres.in users API
type Server struct {
	router       *Router
	fixture      *reqres
	port         int
	basePath     string
	delay        time.Duration
	apiKeyHeader string
	apiKey       string
	logger       logging.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithBasePath sets the prefix every route is served under.
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = strings.TrimSuffix(path, "/")
	}
}

// WithAPIKey rejects requests whose header does not carry key.
func WithAPIKey(header, key string) Option {
	return func(s *Server) {
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		s.apiKeyHeader = header
		s.apiKey = key
	}
}

// WithLogger logs one line per request.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock overrides the time source for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.fixture.now = now
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:   NewRouter(),
		fixture:  &reqres{now: time.Now},
		port:     DefaultPort,
		basePath: DefaultBasePath,
		logger:   logging.NullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fixture.routes(s.router)
	return s
}

// Routes returns all registered routes
func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// BasePath returns the prefix routes are mounted under.
func (s *Server) BasePath() string {
	return s.basePath
}

// Handler returns the server as an http.Handler, for httptest or embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("mock server listening on http://localhost:%d%s (%d routes)", s.port, s.basePath, len(s.router.routes))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := s.respond(r)
	s.logger.Printf("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), resp.StatusCode, time.Since(start).Round(time.Microsecond))
	writeResponse(w, resp)
}

func (s *Server) respond(r *http.Request) *MockResponse {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return &MockResponse{StatusCode: http.StatusServiceUnavailable}
		}
	}

	path, ok := strings.CutPrefix(r.URL.Path, s.basePath)
	if !ok || (path != "" && !strings.HasPrefix(path, "/")) {
		return jsonResponse(http.StatusNotFound, map[string]any{})
	}

	if s.apiKey != "" && r.Header.Get(s.apiKeyHeader) != s.apiKey {
		return errorResponse(http.StatusUnauthorized, "Missing API key")
	}

	route, params, pathMatched := s.router.Match(r.Method, path)
	if route == nil {
		if pathMatched {
			return errorResponse(http.StatusMethodNotAllowed, "method not allowed")
		}
		return jsonResponse(http.StatusNotFound, map[string]any{})
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errorResponse(http.StatusBadRequest, "unreadable request body")
	}
	return route.Handler(r, params, body)
}

func writeResponse(w http.ResponseWriter, resp *MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.Body == nil {
		w.WriteHeader(resp.StatusCode)
		return
	}

	data, err := json.Marshal(resp.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}
