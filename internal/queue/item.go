package queue

import (
	"context"
	"time"

	"github.com/applyflow/applyflow/internal/jobs"
)

// State of the queue processor.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Status of a single queue item.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Item tracks one posting's progress through the apply pipeline. Items are
// created when a run starts and are never deleted mid-run: failed items stay
// visible for audit.
type Item struct {
	Posting    *jobs.JobPosting `json:"posting"`
	Status     Status           `json:"status"`
	MatchScore *int             `json:"match_score,omitempty"`
	AppliedAt  *time.Time       `json:"applied_at,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ApplicationRecord is the durable, append-only projection of a completed
// item. Records are written once and never mutated afterwards.
type ApplicationRecord struct {
	JobID       string    `json:"job_id"`
	JobTitle    string    `json:"job_title"`
	Company     string    `json:"company"`
	MatchScore  int       `json:"match_score"`
	AppliedAt   time.Time `json:"applied_at"`
	Status      Status    `json:"status"`
	ExternalURL string    `json:"external_url,omitempty"`
}

// Progress is the status snapshot emitted after every state transition and
// every processed item.
type Progress struct {
	RunID       string
	State       State
	Paused      bool
	QueueLength int
	Processed   int
	Successful  int
	Failed      int
	// Last is the just-processed item, nil on pure state transitions.
	Last *Item
}

// Summary reports the totals of a completed run.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Store durably records the queue snapshot and the application history.
// Implementations must round-trip both collections without loss; the
// application history is append-only across runs.
type Store interface {
	SaveQueue(ctx context.Context, items []*Item) error
	LoadQueue(ctx context.Context) ([]*Item, error)
	SaveApplications(ctx context.Context, records []ApplicationRecord) error
	LoadApplications(ctx context.Context) ([]ApplicationRecord, error)
}

func (i *Item) record() ApplicationRecord {
	record := ApplicationRecord{
		JobID:    i.Posting.ID,
		JobTitle: i.Posting.Title,
		Company:  i.Posting.Company,
		Status:   i.Status,
	}
	if i.MatchScore != nil {
		record.MatchScore = *i.MatchScore
	}
	if i.AppliedAt != nil {
		record.AppliedAt = *i.AppliedAt
	} else {
		record.AppliedAt = time.Now().UTC()
	}
	if i.Posting.URL != "" {
		record.ExternalURL = i.Posting.URL
	}
	return record
}
