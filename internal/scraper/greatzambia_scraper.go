package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"smart-apply/internal/database"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

const defaultGreatZambiaBase = "https://www.greatzambiajobs.com"

// GreatZambiaScraper is listing-only: the site exposes no usable detail
// markup, so the posting title doubles as the description. Pagination is
// followed through "next" links up to the page cap.
type GreatZambiaScraper struct {
	db          database.DB
	logger      *log.Logger
	baseURL     string
	allowedHost string
}

func NewGreatZambiaScraper(db database.DB, logger *log.Logger) *GreatZambiaScraper {
	return NewGreatZambiaScraperWithBaseURL(db, logger, defaultGreatZambiaBase)
}

func NewGreatZambiaScraperWithBaseURL(db database.DB, logger *log.Logger, baseURL string) *GreatZambiaScraper {
	s := &GreatZambiaScraper{
		db:      db,
		logger:  logger,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	if s.baseURL == "" {
		s.baseURL = defaultGreatZambiaBase
	}
	s.allowedHost = hostFromBaseURL(s.baseURL, "www.greatzambiajobs.com")
	return s
}

func (s *GreatZambiaScraper) Name() string { return "Great Zambia Jobs" }

type greatzambiaPage struct {
	items   []gozambiaListItem
	nextURL string
}

func (s *GreatZambiaScraper) Scrape(ctx context.Context, maxPages int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil scraper/db")
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	sourceID, err := ensureJobSource(ctx, s.db, s.Name(), s.baseURL)
	if err != nil {
		return 0, err
	}

	runID, _ := createScrapeRun(ctx, s.db, sourceID)
	if runID != uuid.Nil {
		defer func() {
			_ = finishScrapeRun(context.Background(), s.db, runID, "finished")
		}()
	}

	inserted := 0
	seen := map[string]struct{}{}
	pageURL := s.baseURL + "/jobs"

	for page := 1; page <= maxPages && pageURL != ""; page++ {
		result, err := s.scrapePage(ctx, pageURL)
		if err != nil {
			s.logf("scraper=greatzambia step=list page=%d status=error err=%v", page, err)
			break
		}
		if len(result.items) == 0 {
			break
		}

		for _, it := range result.items {
			if _, ok := seen[it.Link]; ok {
				continue
			}
			seen[it.Link] = struct{}{}
			ok, err := insertRawJob(ctx, s.db, sourceID, rawJobInput{
				Title:       it.Title,
				Company:     "Unknown",
				Location:    "Zambia",
				Description: it.Title,
				URL:         it.Link,
			})
			if err != nil {
				s.logf("scraper=greatzambia step=insert status=error url=%s err=%v", it.Link, err)
				continue
			}
			if ok {
				inserted++
			}
		}

		if result.nextURL == pageURL {
			break
		}
		pageURL = result.nextURL
	}

	return inserted, nil
}

func (s *GreatZambiaScraper) scrapePage(ctx context.Context, pageURL string) (greatzambiaPage, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(s.allowedHost),
	)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: 500 * time.Millisecond, RandomDelay: 500 * time.Millisecond})

	var out greatzambiaPage
	var reqErr error

	c.OnRequest(func(r *colly.Request) {
		for k, v := range httpHeaders() {
			r.Headers.Set(k, v)
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" {
			return
		}
		text := cleanText(e.Text, 0)

		if isNextLink(text) {
			if abs := e.Request.AbsoluteURL(href); abs != "" {
				out.nextURL = normalizeURL(abs)
			}
			return
		}

		if !strings.Contains(href, "/job/") && !strings.Contains(href, "/jobs/") {
			return
		}
		if len(text) < 10 {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		out.items = append(out.items, gozambiaListItem{Title: text, Link: normalizeURL(abs)})
	})

	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return greatzambiaPage{}, ctx.Err()
	}
	if err := c.Visit(pageURL); err != nil {
		return greatzambiaPage{}, err
	}
	c.Wait()
	if reqErr != nil {
		return greatzambiaPage{}, reqErr
	}
	return out, nil
}

func isNextLink(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "next", "next »", "next page", "›", "»", "older posts":
		return true
	}
	return strings.HasPrefix(t, "next")
}

func (s *GreatZambiaScraper) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
