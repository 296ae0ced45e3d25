package platform

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/applyflow/applyflow/internal/gateway"
	"github.com/applyflow/applyflow/internal/jobs"

	"go.uber.org/zap"
)

func newTestClient(serverURL string) *Client {
	c := New(zap.NewNop(), "test-token")
	c.APIURL = serverURL
	return c
}

func searchPage(page, pages int, ids ...string) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]interface{}{
			"id":            id,
			"title":         "Data Analyst",
			"description":   "Skills: Python, SQL.",
			"contract_type": "full-time",
			"web_url":       "https://workboard.io/postings/" + id,
			"location":      map[string]interface{}{"name": "Berlin"},
			"company":       map[string]interface{}{"name": "Acme"},
		})
	}
	return map[string]interface{}{
		"items":    items,
		"found":    len(ids),
		"pages":    pages,
		"page":     page,
		"per_page": 100,
	}
}

func TestSearchWalksAllPages(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)

		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q", got)
		}

		page := searchPage(0, 2, "p1", "p2")
		if r.URL.Query().Get("page") == "1" {
			page = searchPage(1, 2, "p3")
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	postings, err := c.Search(context.Background(), &SearchParams{
		Query:     "analyst",
		Locations: []string{"Berlin", "Remote"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if postings.Len() != 3 {
		t.Fatalf("expected 3 postings, got %d", postings.Len())
	}

	want := &jobs.JobPosting{
		ID:           "p1",
		Title:        "Data Analyst",
		Description:  "Skills: Python, SQL.",
		Location:     "Berlin",
		ContractType: "full-time",
		Company:      "Acme",
		URL:          "https://workboard.io/postings/p1",
	}
	if got := postings.Items[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("posting mapping mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSearchDecodesGzipResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		json.NewEncoder(gz).Encode(searchPage(0, 1, "p1"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	postings, err := c.Search(context.Background(), &SearchParams{Query: "analyst"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if postings.Len() != 1 {
		t.Fatalf("expected 1 posting, got %d", postings.Len())
	}
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	params := &SearchParams{
		Query:            "data analyst",
		Locations:        []string{"Berlin", "Remote"},
		ContractTypes:    []string{"full-time"},
		PostedWithinDays: 7,
		PerPage:          "100",
	}

	q := buildQuery(params)

	if got := q.Get("query"); got != "data analyst" {
		t.Errorf("query = %q", got)
	}
	if got := q["location"]; !reflect.DeepEqual(got, []string{"Berlin", "Remote"}) {
		t.Errorf("location = %v", got)
	}
	if got := q.Get("contract_type"); got != "full-time" {
		t.Errorf("contract_type = %q", got)
	}
	if got := q.Get("posted_within_days"); got != "7" {
		t.Errorf("posted_within_days = %q", got)
	}
	// Zero and empty scalars stay out of the query string.
	if q.Has("company") || q.Has("order_by") {
		t.Errorf("unexpected empty params in %v", q)
	}
}

func TestSubmitOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		accepted bool
		wantErr  bool
	}{
		{name: "created", status: http.StatusCreated, accepted: true},
		{name: "conflict is a rejection", status: http.StatusConflict, accepted: false},
		{name: "validation failure is a rejection", status: http.StatusUnprocessableEntity, accepted: false},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parsing form: %v", err)
				}
				if got := r.FormValue("posting_id"); got != "p1" {
					t.Errorf("posting_id = %q", got)
				}
				if got := r.FormValue("message"); got != "Hello!" {
					t.Errorf("message = %q", got)
				}
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			c := newTestClient(server.URL)
			accepted, err := c.Submit(context.Background(),
				&jobs.JobPosting{ID: "p1"},
				&gateway.RunContext{RunID: "run-1", Message: "Hello!"},
			)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if accepted != tc.accepted {
				t.Errorf("accepted = %v, want %v", accepted, tc.accepted)
			}
		})
	}
}

func TestAppliedPostingIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"items": [
				{"id": "a1", "created_at": "2026-08-20T10:00:00Z", "posting": {"id": "p1"}},
				{"id": "a2", "created_at": "2026-08-21T10:00:00Z", "posting": {"id": "p2"}}
			],
			"found": 2, "pages": 1, "page": 0, "per_page": 100
		}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ids, err := c.AppliedPostingIDs(context.Background())
	if err != nil {
		t.Fatalf("AppliedPostingIDs: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"p1", "p2"}) {
		t.Errorf("ids = %v", ids)
	}
}
