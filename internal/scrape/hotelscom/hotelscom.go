// Package hotelscom scrapes Hotels.com search results over plain HTTP.
// The Swiss locale still serves server-rendered property cards, so a plain
// GET plus goquery is enough.
package hotelscom

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
		baseURL: "https://ch.hotels.com/Hotel-Search",
		client:  &http.Client{Timeout: 30 * time.Second},
		retry: &workers.Retry{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

func (s *Searcher) Platform() domain.Platform { return domain.PlatformHotelsCom }

func (s *Searcher) buildURL(req domain.SearchRequest) string {
	q := url.Values{}
	q.Set("destination", req.Location)
	q.Set("startDate", req.CheckIn.Format(dateLayout))
	q.Set("endDate", req.CheckOut.Format(dateLayout))
	q.Set("adults", fmt.Sprintf("%d", req.Guests))
	if req.MaxPrice != nil {
		q.Set("price", fmt.Sprintf("%.0f", *req.MaxPrice))
	}
	return s.baseURL + "?" + q.Encode()
}

func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	target := s.buildURL(req)
	s.log.Info("[hotelscom] searching %s", target)

	var doc *goquery.Document
	err := s.retry.Do(ctx, "hotelscom-search", func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		httpReq.Header.Set("User-Agent", userAgent)
		httpReq.Header.Set("Accept-Language", "de-CH,de;q=0.9,en;q=0.8")

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

	listings := parseCards(doc, req.Location)
	s.log.Info("[hotelscom] %d listings for %q", len(listings), req.Location)
	return listings, nil
}

func parseCards(doc *goquery.Document, location string) []domain.RawListing {
	var listings []domain.RawListing
	now := time.Now()

	doc.Find(`[data-stid="lodging-card-responsive"], [data-stid="property-listing"]`).Each(func(i int, card *goquery.Selection) {
		if len(listings) >= maxListings {
			return
		}
		link, _ := card.Find("a").First().Attr("href")
		title := strings.TrimSpace(card.Find("h3, h4").First().Text())
		if title == "" && link == "" {
			return
		}

		l := domain.RawListing{
			Platform:   domain.PlatformHotelsCom,
			Title:      title,
			RawPrice:   strings.TrimSpace(card.Find(`[data-stid="price-summary"], .uitk-price`).First().Text()),
			Location:   location,
			RawRating:  strings.TrimSpace(card.Find(".uitk-badge-base-text").First().Text()),
			RawReviews: strings.TrimSpace(card.Find(`span:contains("reviews"), span:contains("Bewertungen")`).First().Text()),
			URL:        absoluteURL("https://ch.hotels.com", link),
			ScrapedAt:  now,
		}
		if img, ok := card.Find("img").First().Attr("src"); ok && img != "" {
			l.ImageURLs = []string{upscaleImage(img)}
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

// upscaleImage swaps Expedia-group thumbnail tokens for a full-size variant.
func upscaleImage(src string) string {
	src = strings.ReplaceAll(src, "t_70x70", "t_1000x1000")
	return strings.ReplaceAll(src, "t_200x200", "t_1000x1000")
}
