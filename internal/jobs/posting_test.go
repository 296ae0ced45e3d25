package jobs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func samplePostings() *Postings {
	return &Postings{Items: []*JobPosting{
		{ID: "p1", Title: "Data Analyst", Company: "Acme"},
		{ID: "p2", Title: "Backend Engineer", Company: "Globex"},
		{ID: "p3", Title: "QA Engineer", Company: "Acme"},
	}}
}

func TestNormalizedContractType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "missing type falls back to full-time",
			input:  "",
			expect: "full-time",
		},
		{
			name:   "lowercases the stated type",
			input:  "Part-Time",
			expect: "part-time",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  contract  ",
			expect: "contract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jp := &JobPosting{ContractType: tt.input}
			if got := jp.NormalizedContractType(); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestKeepPreservesOrder(t *testing.T) {
	t.Parallel()

	postings := samplePostings()
	kept, dropped := postings.Keep(func(jp *JobPosting) bool {
		return jp.ID != "p2"
	})

	if got := kept.IDs(); !reflect.DeepEqual(got, []string{"p1", "p3"}) {
		t.Fatalf("kept IDs = %v", got)
	}
	if !reflect.DeepEqual(dropped, []string{"p2"}) {
		t.Fatalf("dropped IDs = %v", dropped)
	}
	// The original collection must stay untouched.
	if postings.Len() != 3 {
		t.Fatalf("original postings mutated, len = %d", postings.Len())
	}
}

func TestFindByID(t *testing.T) {
	t.Parallel()

	postings := samplePostings()

	if got := postings.FindByID("p2"); got == nil || got.Title != "Backend Engineer" {
		t.Fatalf("FindByID(p2) = %+v", got)
	}
	if got := postings.FindByID("nope"); got != nil {
		t.Fatalf("expected nil for unknown ID, got %+v", got)
	}
}

func TestReportByCompany(t *testing.T) {
	t.Parallel()

	postings := samplePostings()
	postings.Items = append(postings.Items, &JobPosting{ID: "p4", Title: "Intern"})

	report := postings.ReportByCompany()

	if len(report["Acme"]) != 2 {
		t.Fatalf("expected 2 Acme postings, got %d", len(report["Acme"]))
	}
	if len(report["unknown company"]) != 1 {
		t.Fatalf("expected the company-less posting under 'unknown company', got %v", report)
	}
}

func TestLoadPostings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		expect  int
	}{
		{
			name:    "wrapped form",
			content: `{"items": [{"id": "p1", "title": "Data Analyst"}]}`,
			expect:  1,
		},
		{
			name:    "bare array",
			content: `[{"id": "p1"}, {"id": "p2"}]`,
			expect:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "postings.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			postings, err := LoadPostings(path)
			if err != nil {
				t.Fatalf("LoadPostings: %v", err)
			}
			if postings.Len() != tt.expect {
				t.Fatalf("expected %d postings, got %d", tt.expect, postings.Len())
			}
		})
	}

	t.Run("garbage is rejected", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "postings.json")
		if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadPostings(path); err == nil {
			t.Fatal("expected an error")
		}
	})
}
