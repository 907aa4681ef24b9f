package http

import (
	"sort"
	"strings"
	"time"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// HeaderNames returns the response header names in sorted order.
func (r *Response) HeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether the body has no content besides whitespace.
func (r *Response) IsEmpty() bool {
	return len(strings.TrimSpace(string(r.Body))) == 0
}
