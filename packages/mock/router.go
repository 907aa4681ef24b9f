package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// HandlerFunc produces the response for a matched route.
type HandlerFunc func(r *http.Request, params map[string]string, body []byte) *MockResponse

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Handler     HandlerFunc
}

// MockResponse represents a mock HTTP response. A nil Body writes no content.
type MockResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers handler for method and a path pattern that may contain
// {param} placeholders.
func (r *Router) Handle(method, pattern, name string, handler HandlerFunc) {
	pattern = normalizePath(pattern)
	r.routes = append(r.routes, &Route{
		Method:      strings.ToUpper(method),
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Name:        name,
		Handler:     handler,
	})
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []*Route {
	return r.routes
}

// Match finds a route matching the given method and path. pathMatched
// reports whether any route matched the path regardless of method.
func (r *Router) Match(method, path string) (route *Route, params map[string]string, pathMatched bool) {
	path = normalizePath(path)

	for _, candidate := range r.routes {
		p := matchPath(candidate, path)
		if p == nil {
			continue
		}
		pathMatched = true
		if strings.EqualFold(candidate.Method, method) {
			return candidate, p, true
		}
	}

	return nil, nil, pathMatched
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

var paramPlaceholder = regexp.MustCompile(`\\\{(\w+)\\\}`)

func createPathRegex(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + paramPlaceholder.ReplaceAllString(quoted, `(?P<$1>[^/]+)`) + "$")
}

func matchPath(route *Route, path string) map[string]string {
	matches := route.PathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}
	params := make(map[string]string)
	for i, name := range route.PathRegex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params
}
