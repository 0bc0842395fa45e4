package scraper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smart-apply/internal/database"

	"github.com/google/uuid"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan dest mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			val, ok := r.vals[i].(uuid.UUID)
			if !ok {
				return fmt.Errorf("scan type mismatch uuid")
			}
			*d = val
		case *bool:
			val, ok := r.vals[i].(bool)
			if !ok {
				return fmt.Errorf("scan type mismatch bool")
			}
			*d = val
		default:
			return fmt.Errorf("unsupported scan type")
		}
	}
	return nil
}

type fakeDB struct {
	mu sync.Mutex

	sourcesByName map[string]uuid.UUID
	jobsByURL     map[string]rawJobInput
	scrapeRuns    map[uuid.UUID]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		sourcesByName: map[string]uuid.UUID{},
		jobsByURL:     map[string]rawJobInput{},
		scrapeRuns:    map[uuid.UUID]string{},
	}
}

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }
func (db *fakeDB) SQLDB() *sql.DB                 { return nil }

func (db *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	return nil, fmt.Errorf("not implemented")
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))

	switch {
	case strings.HasPrefix(q, "insert into job_sources"):
		name := args[0].(string)
		if _, ok := db.sourcesByName[name]; !ok {
			db.sourcesByName[name] = uuid.New()
			return 1, nil
		}
		return 0, nil

	case strings.HasPrefix(q, "insert into scrape_runs"):
		runID := args[0].(uuid.UUID)
		db.scrapeRuns[runID] = "running"
		return 1, nil

	case strings.HasPrefix(q, "update scrape_runs"):
		runID := args[0].(uuid.UUID)
		status := args[2].(string)
		db.scrapeRuns[runID] = status
		return 1, nil

	case strings.HasPrefix(q, "insert into jobs"):
		// args: id, source_id, external_job_id, title, company, location,
		// description, url, posted_at, first_seen_at
		url := args[7].(string)
		if _, ok := db.jobsByURL[url]; ok {
			return 0, nil
		}
		var in rawJobInput
		if v := args[2]; v != nil {
			in.ExternalJobID = v.(string)
		}
		if v := args[3]; v != nil {
			in.Title = v.(string)
		}
		if v := args[4]; v != nil {
			in.Company = v.(string)
		}
		if v := args[5]; v != nil {
			in.Location = v.(string)
		}
		if v := args[6]; v != nil {
			in.Description = v.(string)
		}
		in.URL = url
		db.jobsByURL[url] = in
		return 1, nil

	default:
		return 0, nil
	}
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return nil, fmt.Errorf("not implemented")
}

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))

	switch {
	case strings.HasPrefix(q, "select id from job_sources"):
		name := args[0].(string)
		id, ok := db.sourcesByName[name]
		if !ok {
			return fakeRow{err: fmt.Errorf("no rows")}
		}
		return fakeRow{vals: []any{id}}

	default:
		return fakeRow{err: fmt.Errorf("unsupported queryrow")}
	}
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestGoZambiaScraper_SuccessAndIdempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<div class="job-listing">
				<h2>Backend Engineer</h2>
				<span class="company">Acme Ltd</span>
				<span class="location">Lusaka</span>
				<a href="/job/backend-engineer">View</a>
			</div>
		</body></html>`))
	})
	mux.HandleFunc("/job/backend-engineer", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<h1>Backend Engineer</h1>
			<div class="company">Acme Ltd</div>
			<div class="job-description">Build and run Go services in Lusaka.</div>
		</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	db := newFakeDB()
	s := NewGoZambiaScraperWithBaseURL(db, testLogger(t), server.URL, 4000)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.Scrape(ctx, 1, 3)
	if err != nil {
		t.Fatalf("scrape error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}

	n, err = s.Scrape(ctx, 1, 3)
	if err != nil {
		t.Fatalf("scrape error (2nd): %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 inserted on rerun, got %d", n)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if got := len(db.jobsByURL); got != 1 {
		t.Fatalf("expected 1 job stored, got %d", got)
	}
	for _, j := range db.jobsByURL {
		if j.Title != "Backend Engineer" {
			t.Fatalf("unexpected title %q", j.Title)
		}
		if !strings.Contains(j.Description, "Go services") {
			t.Fatalf("unexpected description %q", j.Description)
		}
		if j.ExternalJobID == "" {
			t.Fatalf("expected derived external id")
		}
	}
}

func TestGreatZambiaScraper_FollowsNextAndCaps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/jobs/accountant-lusaka">Accountant needed in Lusaka</a>
			<a href="/jobs/driver-kitwe">Delivery driver wanted in Kitwe</a>
			<a href="/jobs-page-2">Next</a>
		</body></html>`))
	})
	mux.HandleFunc("/jobs-page-2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/jobs/teacher-ndola">Secondary school teacher in Ndola</a>
			<a href="/jobs-page-3">Next</a>
		</body></html>`))
	})
	mux.HandleFunc("/jobs-page-3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/jobs/never-reached">Should never be fetched at this cap</a>
		</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	db := newFakeDB()
	s := NewGreatZambiaScraperWithBaseURL(db, testLogger(t), server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.Scrape(ctx, 2)
	if err != nil {
		t.Fatalf("scrape error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 inserted across 2 pages, got %d", n)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for url, j := range db.jobsByURL {
		if strings.Contains(url, "never-reached") {
			t.Fatalf("page cap not honored, fetched %s", url)
		}
		if j.Description != j.Title {
			t.Fatalf("listing-only source should reuse title as description, got %q / %q", j.Title, j.Description)
		}
		if j.Location != "Zambia" {
			t.Fatalf("unexpected location %q", j.Location)
		}
	}
}

func TestStableExternalIDFromURL(t *testing.T) {
	a := stableExternalIDFromURL("https://example.com/job/1")
	b := stableExternalIDFromURL("https://example.com/job/1")
	c := stableExternalIDFromURL("https://example.com/job/2")
	if a == "" || a != b {
		t.Fatalf("expected stable id, got %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("expected distinct ids for distinct urls")
	}
	if !strings.HasPrefix(a, "urlsha1-") {
		t.Fatalf("unexpected id format %q", a)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/job/1/":        "https://example.com/job/1",
		"https://example.com/job/1#apply":   "https://example.com/job/1",
		"  https://example.com/job/1  ":     "https://example.com/job/1",
		"https://example.com/jobs?page=2":   "https://example.com/jobs?page=2",
		"not a url":                         "",
		"/relative/only":                    "",
	}
	for in, want := range cases {
		if got := normalizeURL(in); got != want {
			t.Fatalf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
