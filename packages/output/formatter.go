package output

import "github.com/abdul-hamid-achik/apicase/packages/core/runner"

// Failure kinds reported by the machine-readable formats.
const (
	KindStatusMismatch = "status_mismatch"
	KindRequestFailed  = "request_failed"
)

func failureKind(r runner.Result) string {
	switch {
	case r.Passed:
		return ""
	case r.IsStatusMismatch():
		return KindStatusMismatch
	default:
		return KindRequestFailed
	}
}

func remarks(r runner.Result) string {
	if r.Remarks == nil {
		return ""
	}
	return r.Remarks.String()
}
