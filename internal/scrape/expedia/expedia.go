// Package expedia scrapes Expedia search results. Same Expedia-group markup
// family as Hotels.com, but the US site with English locale and its own
// price layout.
package expedia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/scrape"
	"stayscout/internal/workers"
)

const (
	dateLayout  = "2006-01-02"
	maxListings = 40
	userAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Searcher struct {
	baseURL string
	client  *http.Client
	retry   *workers.Retry
	log     *logger.Logger
}

func New(log *logger.Logger, maxRetries int) *Searcher {
	return &Searcher{
		baseURL: "https://www.expedia.com/Hotel-Search",
		client:  &http.Client{Timeout: 30 * time.Second},
		retry: &workers.Retry{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

func (s *Searcher) Platform() domain.Platform { return domain.PlatformExpedia }

func (s *Searcher) buildURL(req domain.SearchRequest) string {
	q := url.Values{}
	q.Set("destination", req.Location)
	q.Set("startDate", req.CheckIn.Format(dateLayout))
	q.Set("endDate", req.CheckOut.Format(dateLayout))
	q.Set("adults", fmt.Sprintf("%d", req.Guests))
	q.Set("rooms", "1")
	return s.baseURL + "?" + q.Encode()
}

func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	target := s.buildURL(req)
	s.log.Info("[expedia] searching %s", target)

	var doc *goquery.Document
	err := s.retry.Do(ctx, "expedia-search", func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		httpReq.Header.Set("User-Agent", userAgent)
		httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := s.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("status %d: %w", resp.StatusCode, scrape.ErrBlocked)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("%v: %w", err, scrape.ErrParse)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	listings := s.parseCards(doc, req.Location)
	s.log.Info("[expedia] %d listings for %q", len(listings), req.Location)
	return listings, nil
}

func (s *Searcher) parseCards(doc *goquery.Document, location string) []domain.RawListing {
	var listings []domain.RawListing
	now := time.Now()

	doc.Find(`[data-stid="lodging-card-responsive"], [data-stid="open-hotel-information"]`).Each(func(i int, card *goquery.Selection) {
		if len(listings) >= maxListings {
			return
		}
		link, _ := card.Find(`a[data-stid="open-hotel-information"], a`).First().Attr("href")
		title := strings.TrimSpace(card.Find("h3, h4").First().Text())
		if title == "" && link == "" {
			return
		}

		price := strings.TrimSpace(card.Find(`[data-test-id="price-summary"], .uitk-price`).First().Text())
		if price == "" {
			// Older layout keeps the nightly rate in a plain div.
			price = strings.TrimSpace(card.Find(`div:contains("per night")`).Last().Text())
		}

		l := domain.RawListing{
			Platform:   domain.PlatformExpedia,
			Title:      title,
			RawPrice:   price,
			Location:   location,
			RawRating:  strings.TrimSpace(card.Find(".uitk-badge-base-text").First().Text()),
			RawReviews: strings.TrimSpace(card.Find(`span:contains("reviews")`).First().Text()),
			URL:        absoluteURL("https://www.expedia.com", link),
			ScrapedAt:  now,
		}
		if img, ok := card.Find("img").First().Attr("src"); ok && img != "" {
			l.ImageURLs = []string{img}
		}
		listings = append(listings, l)
	})
	return listings
}

func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return base + href
}
