package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultContractType is assumed when a posting does not state one.
const DefaultContractType = "full-time"

type Postings struct {
	Items []*JobPosting `json:"items"`
}

type JobPosting struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location,omitempty"`
	ContractType string `json:"contract_type,omitempty"`
	Company      string `json:"company,omitempty"`
	URL          string `json:"url,omitempty"`
}

// NormalizedContractType returns the posting contract type in lower case,
// falling back to DefaultContractType when the field is empty.
func (jp *JobPosting) NormalizedContractType() string {
	ct := strings.ToLower(strings.TrimSpace(jp.ContractType))
	if ct == "" {
		return DefaultContractType
	}
	return ct
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *JobPosting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

func (p *Postings) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, posting := range p.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

// Keep returns a new list with the postings accepted by the predicate,
// preserving the original order, together with the IDs of dropped postings.
func (p *Postings) Keep(accept func(*JobPosting) bool) (*Postings, []string) {
	kept := make([]*JobPosting, 0, len(p.Items))
	var dropped []string

	for _, posting := range p.Items {
		if accept(posting) {
			kept = append(kept, posting)
			continue
		}
		dropped = append(dropped, posting.ID)
	}

	return &Postings{Items: kept}, dropped
}

// ReportByCompany groups postings by company for human-readable reports.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		key := posting.Company
		if key == "" {
			key = "unknown company"
		}
		report[key] = append(report[key], map[string]string{
			"id":       posting.ID,
			"title":    posting.Title,
			"location": posting.Location,
			"type":     posting.NormalizedContractType(),
			"url":      posting.URL,
		})
	}
	return report
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// LoadPostings reads a postings batch from a JSON file. Both the wrapped
// {"items": [...]} form and a bare array are accepted.
func LoadPostings(path string) (*Postings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings file: %w", err)
	}

	var postings Postings
	if err := json.Unmarshal(data, &postings); err == nil && postings.Items != nil {
		return &postings, nil
	}

	var items []*JobPosting
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing postings file %q: %w", path, err)
	}

	return &Postings{Items: items}, nil
}
