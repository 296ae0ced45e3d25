package ai

import (
	"context"

	"github.com/applyflow/applyflow/internal/jobs"
)

// Composer generates a per-posting cover message from the candidate profile.
type Composer interface {
	Compose(ctx context.Context, profile *jobs.CandidateProfile, posting *jobs.JobPosting) (string, error)
}
