// Package runner executes parsed apicase test cases.
//
// Run starts one goroutine per test case and writes each outcome into the slot
// matching the case's position, so results come back in input order no matter
// which request finishes first. A case passes when the response status equals
// its statuscode line. Transport errors and missing methods fail the case with
// RequestFailed remarks. There are no retries.
package runner
