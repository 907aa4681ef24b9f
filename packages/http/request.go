package http

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	Timeout     time.Duration
	QueryParams map[string]string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

// BuildURL returns URL with QueryParams merged into its query string.
// Parameters already present in URL are overridden.
func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// HeaderNames returns the request header names in sorted order.
func (r *Request) HeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
