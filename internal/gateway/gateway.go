package gateway

import (
	"context"

	"github.com/applyflow/applyflow/internal/jobs"
)

// RunContext carries per-run submission details to the gateway.
type RunContext struct {
	// RunID identifies the batch run for audit and platform idempotency.
	RunID string
	// Message is the cover message attached to the application.
	Message string
}

// Gateway performs the actual "apply" action against a job platform.
// Implementations report a rejection with ok=false and a transport or
// platform failure with a non-nil error.
type Gateway interface {
	Submit(ctx context.Context, posting *jobs.JobPosting, run *RunContext) (bool, error)
}
