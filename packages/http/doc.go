// Package http provides the HTTP client reqcheck executes test cases with.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts, per client and per request
//   - Redirect, proxy and TLS verification settings
//   - Default headers merged under per-request headers
//   - Fully read response bodies with timing
//   - curl reproduction of a request for failure reports
package http
