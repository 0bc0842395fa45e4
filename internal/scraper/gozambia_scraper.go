package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"smart-apply/internal/database"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

const defaultGoZambiaBase = "https://www.gozambiajobs.com"

// GoZambiaScraper walks the paginated listing and fetches each posting's
// detail page for the full description.
type GoZambiaScraper struct {
	db          database.DB
	logger      *log.Logger
	baseURL     string
	allowedHost string
	maxDescLen  int
}

func NewGoZambiaScraper(db database.DB, logger *log.Logger, maxDescLen int) *GoZambiaScraper {
	return NewGoZambiaScraperWithBaseURL(db, logger, defaultGoZambiaBase, maxDescLen)
}

func NewGoZambiaScraperWithBaseURL(db database.DB, logger *log.Logger, baseURL string, maxDescLen int) *GoZambiaScraper {
	s := &GoZambiaScraper{
		db:         db,
		logger:     logger,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		maxDescLen: maxDescLen,
	}
	if s.baseURL == "" {
		s.baseURL = defaultGoZambiaBase
	}
	s.allowedHost = hostFromBaseURL(s.baseURL, "www.gozambiajobs.com")
	return s
}

func (s *GoZambiaScraper) Name() string { return "GoZambia Jobs" }

type gozambiaListItem struct {
	Title    string
	Company  string
	Location string
	Link     string
}

// Scrape returns the number of postings inserted this run. Listings seen
// before are skipped by URL.
func (s *GoZambiaScraper) Scrape(ctx context.Context, pages int, workers int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("nil scraper/db")
	}
	if pages <= 0 {
		pages = 1
	}

	sourceID, err := ensureJobSource(ctx, s.db, s.Name(), s.baseURL)
	if err != nil {
		return 0, err
	}

	runID, _ := createScrapeRun(ctx, s.db, sourceID)
	status := "finished"
	if runID != uuid.Nil {
		defer func() {
			_ = finishScrapeRun(context.Background(), s.db, runID, status)
		}()
	}

	pool := NewWorkerPool(workers, workers*2)
	results := pool.Run(ctx)

	var inserted atomic.Int64
	listedAny := false

	for page := 1; page <= pages; page++ {
		listURL := fmt.Sprintf("%s/jobs?page=%d", s.baseURL, page)
		items, err := s.scrapeListingPage(ctx, listURL)
		if err != nil {
			s.logf("scraper=gozambia step=list page=%d status=error err=%v", page, err)
			continue
		}
		if len(items) == 0 && page == 1 {
			// Listing markup sometimes only renders client-side.
			items, err = s.listingViaHeadless(ctx)
			if err != nil {
				s.logf("scraper=gozambia step=headless status=error err=%v", err)
			}
		}
		if len(items) == 0 {
			break
		}
		listedAny = true

		for _, it := range items {
			it := it
			if strings.TrimSpace(it.Link) == "" {
				continue
			}
			pool.Submit(func(ctx context.Context) error {
				detail, err := s.scrapeDetailPage(ctx, it.Link)
				if err != nil {
					return fmt.Errorf("detail %s: %w", it.Link, err)
				}
				ok, err := insertRawJob(ctx, s.db, sourceID, rawJobInput{
					Title:       pickNonEmpty(detail.title, it.Title),
					Company:     pickNonEmpty(detail.company, it.Company),
					Location:    pickNonEmpty(detail.location, it.Location, "Zambia"),
					Description: detail.description,
					PostedAt:    detail.postedAt,
					URL:         normalizeURL(it.Link),
				})
				if err != nil {
					return err
				}
				if ok {
					inserted.Add(1)
				}
				return nil
			})
		}
	}

	pool.Close()

	for res := range results {
		if res.Err != nil {
			s.logf("scraper=gozambia step=item status=error err=%v", res.Err)
		}
	}

	if !listedAny {
		status = "empty"
	}
	return int(inserted.Load()), nil
}

func (s *GoZambiaScraper) scrapeListingPage(ctx context.Context, listURL string) ([]gozambiaListItem, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(s.allowedHost),
	)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, Delay: 400 * time.Millisecond, RandomDelay: 600 * time.Millisecond})

	items := make([]gozambiaListItem, 0)

	c.OnHTML("div[class*='job']", func(e *colly.HTMLElement) {
		link := strings.TrimSpace(e.ChildAttr("a[href]", "href"))
		if link == "" {
			return
		}
		abs := e.Request.AbsoluteURL(link)
		if abs == "" {
			return
		}
		items = append(items, gozambiaListItem{
			Title:    cleanText(pickNonEmpty(e.ChildText("h2"), e.ChildText("h3"), e.ChildText("a")), 0),
			Company:  cleanText(e.ChildText("[class*='company']"), 0),
			Location: cleanText(e.ChildText("[class*='location']"), 0),
			Link:     abs,
		})
	})

	var reqErr error
	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})
	c.OnRequest(func(r *colly.Request) {
		for k, v := range httpHeaders() {
			r.Headers.Set(k, v)
		}
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := c.Visit(listURL); err != nil {
		return nil, err
	}
	c.Wait()
	if reqErr != nil {
		return nil, reqErr
	}

	dedup := map[string]struct{}{}
	out := make([]gozambiaListItem, 0, len(items))
	for _, it := range items {
		u := normalizeURL(it.Link)
		if u == "" {
			continue
		}
		if _, ok := dedup[u]; ok {
			continue
		}
		dedup[u] = struct{}{}
		it.Link = u
		out = append(out, it)
	}
	return out, nil
}

type gozambiaDetail struct {
	title       string
	company     string
	location    string
	description string
	postedAt    *time.Time
}

func (s *GoZambiaScraper) scrapeDetailPage(ctx context.Context, jobURL string) (gozambiaDetail, error) {
	c := colly.NewCollector(
		colly.AllowedDomains(s.allowedHost),
	)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2, Delay: 400 * time.Millisecond, RandomDelay: 600 * time.Millisecond})

	var out gozambiaDetail
	var reqErr error

	c.OnRequest(func(r *colly.Request) {
		for k, v := range httpHeaders() {
			r.Headers.Set(k, v)
		}
	})

	c.OnHTML("h1", func(e *colly.HTMLElement) {
		if out.title == "" {
			out.title = cleanText(e.Text, 0)
		}
	})
	c.OnHTML("[class*='company']", func(e *colly.HTMLElement) {
		if out.company == "" {
			out.company = cleanText(e.Text, 0)
		}
	})
	c.OnHTML("[class*='location']", func(e *colly.HTMLElement) {
		if out.location == "" {
			out.location = cleanText(e.Text, 0)
		}
	})
	c.OnHTML("[class*='description'], [class*='job-details'], [class*='content']", func(e *colly.HTMLElement) {
		if out.description == "" {
			out.description = cleanText(e.Text, s.maxDescLen)
		}
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		if out.description == "" {
			out.description = cleanText(e.Text, s.maxDescLen)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		reqErr = err
	})

	if ctx.Err() != nil {
		return gozambiaDetail{}, ctx.Err()
	}
	if err := c.Visit(jobURL); err != nil {
		return gozambiaDetail{}, err
	}
	c.Wait()
	if reqErr != nil {
		return gozambiaDetail{}, reqErr
	}
	return out, nil
}

func (s *GoZambiaScraper) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
