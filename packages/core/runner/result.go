package runner

import (
	"fmt"
	"time"
)

// Remarks explains why a test case failed. It is either StatusMismatch or
// RequestFailed.
type Remarks interface {
	fmt.Stringer
	remarks()
}

// StatusMismatch means a response arrived with an unexpected status code.
type StatusMismatch struct {
	Expected uint16
	Received uint16
}

func (StatusMismatch) remarks() {}

func (r StatusMismatch) String() string {
	return fmt.Sprintf("expected status code: %d, got: %d", r.Expected, r.Received)
}

// RequestFailed means no response was received.
type RequestFailed struct {
	Cause string
}

func (RequestFailed) remarks() {}

func (r RequestFailed) String() string {
	return "failed due to error: " + r.Cause
}

// Result is the outcome of one test case. Remarks is nil when Passed.
type Result struct {
	Name     string
	Passed   bool
	Remarks  Remarks
	Block    int
	Method   string
	URL      string
	Expected uint16
	// Received is the response status, zero when the request failed.
	Received int
	Duration time.Duration
}

func Success(name string) Result {
	return Result{Name: name, Passed: true}
}

func Fail(name string, remarks Remarks) Result {
	return Result{Name: name, Remarks: remarks}
}

func (r Result) String() string {
	if r.Passed {
		return fmt.Sprintf("✅ Successfully passed test: \"%s\"", r.Name)
	}
	return fmt.Sprintf("❌ Failed test: \"%s\", remarks: %s", r.Name, r.remarksText())
}

func (r Result) remarksText() string {
	if r.Remarks == nil {
		return ""
	}
	return r.Remarks.String()
}

// IsStatusMismatch reports whether the case failed on a status comparison.
func (r Result) IsStatusMismatch() bool {
	_, ok := r.Remarks.(StatusMismatch)
	return ok
}

// IsRequestFailed reports whether the case failed before a response arrived.
func (r Result) IsRequestFailed() bool {
	_, ok := r.Remarks.(RequestFailed)
	return ok
}
