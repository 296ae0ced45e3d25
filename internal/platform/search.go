package platform

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/applyflow/applyflow/internal/jobs"
	"github.com/mitchellh/mapstructure"
)

const searchPath = "/postings"

// SearchParams describe a posting search. Slice fields carry the qparam tag
// because they are repeated in the query string instead of joined.
type SearchParams struct {
	Query            string   `yaml:"query"`
	Locations        []string `qparam:"location"`
	ContractTypes    []string `qparam:"contract_type"`
	Company          string   `yaml:"company"`
	OrderBy          string   `yaml:"order_by" mapstructure:"order_by"`
	PostedWithinDays uint     `yaml:"posted_within_days" mapstructure:"posted_within_days"`
	PerPage          string   `yaml:"per_page" mapstructure:"per_page"`
}

// postingItem is the wire shape of a posting. The nested objects are
// flattened into jobs.JobPosting.
type postingItem struct {
	ID           string
	Title        string
	Description  string
	ContractType string `json:"contract_type" mapstructure:"contract_type"`
	URL          string `json:"web_url" mapstructure:"web_url"`
	Location     struct {
		Name string
	}
	Company struct {
		Name string
	}
}

// Search fetches all postings matching the params, walking every result page.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*jobs.Postings, error) {
	// Set per_page as high as possible. Fewer round trips.
	if params.PerPage == "" {
		params.PerPage = perPage
	}

	q := buildQuery(params)
	searchURL := fmt.Sprintf("%s%s", c.APIURL, searchPath)

	items, err := c.getItems(ctx, searchURL, q)
	if err != nil {
		return nil, err
	}

	var wire []*postingItem
	cfg := &mapstructure.DecoderConfig{
		Result:  &wire,
		TagName: "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding postings: %w", err)
	}

	postings := &jobs.Postings{Items: make([]*jobs.JobPosting, 0, len(wire))}
	for _, pi := range wire {
		postings.Items = append(postings.Items, &jobs.JobPosting{
			ID:           pi.ID,
			Title:        pi.Title,
			Description:  pi.Description,
			Location:     pi.Location.Name,
			ContractType: pi.ContractType,
			Company:      pi.Company.Name,
			URL:          pi.URL,
		})
	}

	return postings, nil
}

// buildQuery turns SearchParams into url.Values. The qparam tag names
// repeated parameters; the yaml tag is the failover for scalar fields.
func buildQuery(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		key := field.Tag.Get("qparam")
		if key == "" {
			key = field.Tag.Get("yaml")
		}

		value := reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface()
		switch v := value.(type) {
		case []string:
			for _, elem := range v {
				q.Add(key, elem)
			}
		case []int:
			for _, elem := range v {
				q.Add(key, strconv.Itoa(elem))
			}
		default:
			s := fmt.Sprintf("%v", v)
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
