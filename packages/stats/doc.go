// Package stats summarizes a test run: pass/fail counts split by failure cause
// and latency percentiles backed by an HDR histogram.
package stats
