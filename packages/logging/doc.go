// Package logging provides the small Printf-style loggers the runner uses
// for per-case request and response dumps.
package logging
