package runner

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
)

// DefaultContentType is used when Configure receives an empty content type.
const DefaultContentType = "application/json"

var (
	ErrEmptyBaseURL     = errors.New("base URL is empty")
	ErrMalformedBaseURL = errors.New("base URL is malformed")
)

// ConfigError reports a setup problem found before any request is sent.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RequestSpec holds what every request of a run shares. It is immutable
// once built and safe to share between goroutines.
type RequestSpec struct {
	baseURL        string
	defaultHeaders map[string]string
	contentType    string
}

// Configure validates baseURL and builds a RequestSpec. A trailing slash on
// baseURL is dropped so joining it with a case path never yields "//".
func Configure(baseURL string, headers map[string]string, contentType string) (*RequestSpec, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, &ConfigError{Field: "base URL", Err: ErrEmptyBaseURL}
	}

	malformed := func(reason string) error {
		return &ConfigError{Field: "base URL", Value: baseURL, Err: fmt.Errorf("%w: %s", ErrMalformedBaseURL, reason)}
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, malformed(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, malformed("scheme must be http or https")
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, malformed("missing host")
	}
	if !govalidator.IsRequestURL(baseURL) {
		return nil, malformed("not a valid request URL")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, malformed("query and fragment are not allowed")
	}

	if contentType == "" {
		contentType = DefaultContentType
	}

	return &RequestSpec{
		baseURL:        strings.TrimRight(baseURL, "/"),
		defaultHeaders: maps.Clone(headers),
		contentType:    contentType,
	}, nil
}

// BaseURL returns the base URL without a trailing slash.
func (s *RequestSpec) BaseURL() string {
	return s.baseURL
}

// DefaultHeaders returns a copy of the headers sent with every request.
func (s *RequestSpec) DefaultHeaders() map[string]string {
	out := maps.Clone(s.defaultHeaders)
	if out == nil {
		out = map[string]string{}
	}
	return out
}

func (s *RequestSpec) ContentType() string {
	return s.contentType
}

// URL joins the base URL and a case path.
func (s *RequestSpec) URL(path string) string {
	if path == "" {
		return s.baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}
