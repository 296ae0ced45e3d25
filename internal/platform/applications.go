package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/applyflow/applyflow/internal/gateway"
	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/mitchellh/mapstructure"

	"go.uber.org/zap"
)

const applicationsPath = "/applications"

// appliedItem is the wire shape of an application history entry.
type appliedItem struct {
	ID        string
	CreatedAt string `json:"created_at" mapstructure:"created_at"`
	Posting   struct {
		ID string
	}
}

// AppliedPostingIDs returns the IDs of postings the account already applied
// to, so they can be dropped before queueing.
func (c *Client) AppliedPostingIDs(ctx context.Context) ([]string, error) {
	applicationsURL := fmt.Sprintf("%s%s", c.APIURL, applicationsPath)

	q := url.Values{}
	q.Add("per_page", perPage)

	items, err := c.getItems(ctx, applicationsURL, q)
	if err != nil {
		return nil, err
	}

	var applied []*appliedItem
	if err := mapstructure.Decode(items, &applied); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(applied))
	for _, a := range applied {
		ids = append(ids, a.Posting.ID)
	}

	return ids, nil
}

// Submit posts an application for the posting. A conflict or validation
// status means the platform refused this particular posting; that is a
// rejection, not a transport failure.
func (c *Client) Submit(ctx context.Context, posting *jobs.JobPosting, run *gateway.RunContext) (bool, error) {
	applicationsURL := fmt.Sprintf("%s%s", c.APIURL, applicationsPath)

	data := map[string]string{
		"posting_id": posting.ID,
		"message":    run.Message,
		"run_id":     run.RunID,
	}

	status, err := c.postFormData(ctx, applicationsURL, data)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusCreated:
		return true, nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		c.logger.Warn("application rejected by the platform",
			zap.String("posting_id", posting.ID),
			zap.Int("status", status),
		)
		return false, nil
	default:
		return false, fmt.Errorf("bad status: %d", status)
	}
}

var _ gateway.Gateway = (*Client)(nil)
