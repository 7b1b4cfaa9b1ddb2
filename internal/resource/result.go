// Package resource implements the Resource Executor: the five-step
// check/diff/apply algorithm spec §4.D describes in prose, generalized
// from the teacher's internal/engine apply_wrapper.go/verify_wrapper.go
// check-then-apply shape to a provider-backed, fact-gated resource model.
package resource

import (
	"time"

	"github.com/nexus-fleet/nexus/internal/provider"
)

// Status enumerates the outcome of executing one resource.
type Status string

const (
	StatusOK      Status = "ok"
	StatusChanged Status = "changed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result is the outcome of executing exactly one resource.
type Result struct {
	ResourceName string
	Status       Status
	Message      string
	Diff         provider.Diff
	Notify       string
	DurationMS   int64
	Err          error
}

func timedResult(start time.Time, status Status, message string, err error) Result {
	return Result{
		Status:     status,
		Message:    message,
		DurationMS: time.Since(start).Milliseconds(),
		Err:        err,
	}
}
