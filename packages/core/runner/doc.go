// Package runner executes declarative test cases against an HTTP API.
//
// Configure validates the base URL and default headers once per run.
// Execute sends one case and classifies the outcome as Pass,
// TransportFailure, StatusMismatch, MalformedResponse or AssertionFailure.
// Run executes a whole suite, sequentially by default or on a bounded
// worker pool, keeping results in suite order.
package runner
