package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"smart-apply/internal/database"

	"github.com/google/uuid"
)

type rawJobInput struct {
	ExternalJobID string
	Title         string
	Company       string
	Location      string
	Description   string
	PostedAt      *time.Time
	URL           string
}

func ensureJobSource(ctx context.Context, db database.DB, name string, baseURL string) (uuid.UUID, error) {
	if db == nil {
		return uuid.Nil, fmt.Errorf("nil db")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("empty source name")
	}

	_, _ = db.Exec(ctx,
		`INSERT INTO job_sources (id, name, base_url) VALUES (gen_random_uuid(), $1, $2) ON CONFLICT (name) DO NOTHING`,
		name,
		nullableText(baseURL),
	)

	row := db.QueryRow(ctx, `SELECT id FROM job_sources WHERE name = $1 LIMIT 1`, name)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func createScrapeRun(ctx context.Context, db database.DB, sourceID uuid.UUID) (uuid.UUID, error) {
	if db == nil {
		return uuid.Nil, fmt.Errorf("nil db")
	}
	id := uuid.New()
	_, err := db.Exec(ctx,
		`INSERT INTO scrape_runs (id, source_id, started_at, status) VALUES ($1,$2,$3,$4)`,
		id, sourceID, time.Now().UTC(), "running",
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func finishScrapeRun(ctx context.Context, db database.DB, runID uuid.UUID, status string) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	if runID == uuid.Nil {
		return nil
	}
	_, err := db.Exec(ctx,
		`UPDATE scrape_runs SET finished_at = $2, status = $3 WHERE id = $1`,
		runID, time.Now().UTC(), strings.TrimSpace(status),
	)
	return err
}

// insertRawJob appends one posting. Postings are immutable: a URL already
// seen on an earlier run is left untouched and reports inserted=false.
func insertRawJob(ctx context.Context, db database.DB, sourceID uuid.UUID, in rawJobInput) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("nil db")
	}
	if sourceID == uuid.Nil {
		return false, fmt.Errorf("nil source_id")
	}

	url := strings.TrimSpace(in.URL)
	if url == "" {
		return false, fmt.Errorf("empty job url")
	}

	externalID := strings.TrimSpace(in.ExternalJobID)
	if externalID == "" {
		externalID = stableExternalIDFromURL(url)
	}

	n, err := db.Exec(ctx,
		`INSERT INTO jobs (
			id, source_id, external_job_id, title, company, location,
			description, url, posted_at, first_seen_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (url) DO NOTHING`,
		uuid.New(),
		sourceID,
		nullableText(externalID),
		nullableText(in.Title),
		nullableText(in.Company),
		nullableText(in.Location),
		nullableText(in.Description),
		url,
		in.PostedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// stableExternalIDFromURL keeps posting identity stable across scrape runs
// when the source exposes no listing ID.
func stableExternalIDFromURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	h := sha1.Sum([]byte(u))
	return "urlsha1-" + hex.EncodeToString(h[:])
}

func nullableText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

var spaceRe = regexp.MustCompile(`\s+`)

func cleanText(s string, maxLen int) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func pickNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	out := u.String()
	return strings.TrimRight(out, "/")
}

func hostFromBaseURL(base, fallback string) string {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Host == "" {
		return fallback
	}
	if h, _, err := net.SplitHostPort(u.Host); err == nil {
		return h
	}
	return u.Host
}

func httpHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}
