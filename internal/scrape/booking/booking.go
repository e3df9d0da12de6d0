// Package booking scrapes Booking.com search results with colly. One parent
// collector carries the politeness limits; every Search clones it so request
// handlers never leak between jobs.
package booking

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/scrape"
)

const (
	searchURL   = "https://www.booking.com/searchresults.html"
	dateLayout  = "2006-01-02"
	maxListings = 40
)

type Searcher struct {
	collector *colly.Collector
	log       *logger.Logger
}

func New(log *logger.Logger, delay time.Duration) (*Searcher, error) {
	c := colly.NewCollector(colly.AllowedDomains("www.booking.com"))
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*booking.com",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("booking: limit rule: %w", err)
	}
	extensions.RandomUserAgent(c)
	extensions.Referer(c)
	return &Searcher{collector: c, log: log}, nil
}

func (s *Searcher) Platform() domain.Platform { return domain.PlatformBooking }

func (s *Searcher) buildURL(req domain.SearchRequest) string {
	q := url.Values{}
	q.Set("ss", req.Location)
	q.Set("checkin", req.CheckIn.Format(dateLayout))
	q.Set("checkout", req.CheckOut.Format(dateLayout))
	q.Set("group_adults", fmt.Sprintf("%d", req.Guests))
	q.Set("no_rooms", "1")
	if req.MaxPrice != nil {
		q.Set("price", fmt.Sprintf("CHF-0-CHF-%.0f", *req.MaxPrice))
	}
	if req.MinRating != nil {
		// Booking filters on its own 10-point scale in buckets of 10.
		bucket := int(*req.MinRating*2) * 10
		if bucket >= 60 {
			q.Set("review_score", fmt.Sprintf("%d", bucket))
		}
	}
	return searchURL + "?" + q.Encode()
}

func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := s.buildURL(req)
	s.log.Info("[booking] searching %s", target)

	collector := s.collector.Clone()

	var listings []domain.RawListing
	var visitErr error
	now := time.Now()

	collector.OnHTML(`[data-testid="property-card"]`, func(e *colly.HTMLElement) {
		if len(listings) >= maxListings {
			return
		}
		link := e.ChildAttr(`a[data-testid="title-link"]`, "href")
		if link == "" {
			link = e.ChildAttr("a", "href")
		}
		l := domain.RawListing{
			Platform:   domain.PlatformBooking,
			Title:      e.ChildText(`[data-testid="title"]`),
			RawPrice:   e.ChildText(`[data-testid="price-and-discounted-price"]`),
			Location:   e.ChildText(`[data-testid="address"]`),
			RawRating:  firstScoreToken(e.ChildText(`[data-testid="review-score"]`)),
			RawReviews: e.ChildText(`[data-testid="review-score"] div:last-child`),
			URL:        e.Request.AbsoluteURL(link),
			ScrapedAt:  now,
		}
		if img := upscaleImage(e.ChildAttr("img", "src")); img != "" {
			l.ImageURLs = []string{img}
		}
		if l.Title == "" && l.URL == "" {
			return
		}
		listings = append(listings, l)
	})

	collector.OnError(func(r *colly.Response, err error) {
		switch r.StatusCode {
		case 403, 429:
			visitErr = fmt.Errorf("status %d: %w", r.StatusCode, scrape.ErrBlocked)
		default:
			visitErr = fmt.Errorf("booking fetch: %w", err)
		}
	})

	if err := collector.Visit(target); err != nil {
		return nil, fmt.Errorf("booking visit: %w", err)
	}
	collector.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	s.log.Info("[booking] %d listings for %q", len(listings), req.Location)
	return listings, nil
}

// firstScoreToken trims "Scored 8.6 8.6 Fabulous" down to the leading score.
func firstScoreToken(text string) string {
	for _, f := range strings.Fields(text) {
		if f[0] >= '0' && f[0] <= '9' {
			return f
		}
	}
	return ""
}

// upscaleImage swaps Booking's thumbnail size tokens for a full-size variant.
func upscaleImage(src string) string {
	src = strings.ReplaceAll(src, "square60", "max1024x768")
	return strings.ReplaceAll(src, "square240", "max1024x768")
}
