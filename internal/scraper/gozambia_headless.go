package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// listingViaHeadless renders the listing in a headless browser and pulls the
// posting links out of the DOM. Used only when the static listing came back
// empty.
func (s *GoZambiaScraper) listingViaHeadless(ctx context.Context) ([]gozambiaListItem, error) {
	if s == nil {
		return nil, fmt.Errorf("nil scraper")
	}

	listURL := s.baseURL + "/jobs"

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(httpHeaders()["User-Agent"]),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, 25*time.Second)
	defer reqCancel()

	var hrefs []string
	err := chromedp.Run(reqCtx,
		chromedp.Navigate(listURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.EvaluateAsDevTools(`Array.from(document.querySelectorAll('a[href]'))
			.map(a => a.href)
			.filter(h => h && (h.includes('/job/') || h.includes('/jobs/')))`, &hrefs),
	)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	out := make([]gozambiaListItem, 0, len(hrefs))
	for _, h := range hrefs {
		u := normalizeURL(strings.TrimSpace(h))
		if u == "" || u == normalizeURL(listURL) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, gozambiaListItem{Link: u})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no job urls found (headless)")
	}
	return out, nil
}
