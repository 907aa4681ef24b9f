// Package stats aggregates request latencies across a run.
package stats
