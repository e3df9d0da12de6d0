// Package airbnb scrapes Airbnb search results with a headless browser.
// Airbnb renders cards client-side, so plain HTTP fetches return an empty
// shell; chromedp drives a real Chrome instead.
package airbnb

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/scrape"
	"stayscout/internal/workers"
)

const (
	baseURL     = "https://www.airbnb.com/s/%s/homes"
	dateLayout  = "2006-01-02"
	maxListings = 40
	settleDelay = 5 * time.Second
	scrollPause = 2 * time.Second
	navTimeout  = 80 * time.Second
)

type Searcher struct {
	log   *logger.Logger
	retry *workers.Retry
}

func New(log *logger.Logger, maxRetries int) *Searcher {
	return &Searcher{
		log: log,
		retry: &workers.Retry{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      log,
		},
	}
}

func (s *Searcher) Platform() domain.Platform { return domain.PlatformAirbnb }

func (s *Searcher) searchURL(req domain.SearchRequest) string {
	q := url.Values{}
	q.Set("checkin", req.CheckIn.Format(dateLayout))
	q.Set("checkout", req.CheckOut.Format(dateLayout))
	q.Set("adults", fmt.Sprintf("%d", req.Guests))
	if req.MaxPrice != nil {
		q.Set("price_max", fmt.Sprintf("%.0f", *req.MaxPrice))
	}
	return fmt.Sprintf(baseURL, url.PathEscape(req.Location)) + "?" + q.Encode()
}

type cardData struct {
	Title   string `json:"title"`
	Price   string `json:"price"`
	Rating  string `json:"rating"`
	Reviews string `json:"reviews"`
	URL     string `json:"url"`
	Image   string `json:"image"`
}

func (s *Searcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawListing, error) {
	target := s.searchURL(req)
	s.log.Info("[airbnb] searching %s", target)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	var cards []cardData
	err := s.retry.Do(ctx, "airbnb-search", func() error {
		tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, navTimeout)
		defer cancelTimeout()

		cards = cards[:0]
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(target),
			chromedp.Sleep(settleDelay),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(scrollPause),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(scrollPause),
			chromedp.Evaluate(extractCardsJS, &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if blocked, reason := pageLooksBlocked(cards); blocked {
		return nil, fmt.Errorf("%s: %w", reason, scrape.ErrBlocked)
	}

	listings := make([]domain.RawListing, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))
	now := time.Now()
	for _, c := range cards {
		if c.URL == "" {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}

		l := domain.RawListing{
			Platform:   domain.PlatformAirbnb,
			Title:      c.Title,
			RawPrice:   c.Price,
			RawRating:  c.Rating,
			RawReviews: c.Reviews,
			URL:        c.URL,
			ScrapedAt:  now,
		}
		if c.Image != "" {
			l.ImageURLs = []string{c.Image}
		}
		listings = append(listings, l)
	}

	s.log.Info("[airbnb] %d listings for %q", len(listings), req.Location)
	return listings, nil
}

// pageLooksBlocked spots the captcha interstitial, which renders zero room
// links but a verification prompt in the first card slot.
func pageLooksBlocked(cards []cardData) (bool, string) {
	for _, c := range cards {
		if c.Title == "__BLOCKED__" {
			return true, "captcha interstitial"
		}
	}
	return false, ""
}

// extractCardsJS pulls the listing cards out of the rendered page. Airbnb
// rotates its class names, so it tries data-testid hooks first and falls
// back to room links.
var extractCardsJS = `
(function() {
	if (document.title.toLowerCase().includes('verify') ||
	    document.body.innerText.toLowerCase().includes('are you a human')) {
		return [{title: '__BLOCKED__', price: '', rating: '', reviews: '', url: '', image: ''}];
	}

	var results = [];
	var limit = ` + fmt.Sprintf("%d", maxListings) + `;

	var cards = document.querySelectorAll('[data-testid="card-container"]');
	if (cards.length === 0) {
		cards = document.querySelectorAll('[itemprop="itemListElement"]');
	}

	var seen = {};
	for (var i = 0; i < cards.length && results.length < limit; i++) {
		var card = cards[i];

		var linkEl = card.querySelector('a[href*="/rooms/"]');
		var url = linkEl ? linkEl.href : '';
		if (!url || seen[url]) continue;
		seen[url] = true;

		var titleEl = card.querySelector('[data-testid="listing-card-title"]');
		var title = titleEl ? titleEl.innerText.trim() : '';

		var price = '';
		var priceEl = card.querySelector('[data-testid="price-availability-row"]') ||
		              card.querySelector('span[class*="price"]');
		if (priceEl) {
			var m = priceEl.innerText.match(/(\$|CHF|€|£)\s*[\d,]+/);
			price = m ? m[0] : priceEl.innerText.split('\n')[0];
		}

		var rating = '', reviews = '';
		var ratingEl = card.querySelector('[aria-label*="rating"]') ||
		               card.querySelector('span[aria-hidden="true"]');
		if (ratingEl) {
			var rt = ratingEl.innerText || ratingEl.getAttribute('aria-label') || '';
			var rm = rt.match(/(\d\.\d+)/);
			rating = rm ? rm[1] : '';
			var vm = rt.match(/\((\d+)\)/);
			reviews = vm ? vm[1] : '';
		}

		var imgEl = card.querySelector('img');
		var image = imgEl ? (imgEl.src || '') : '';

		results.push({title: title, price: price, rating: rating, reviews: reviews, url: url, image: image});
	}

	// Fallback: bare room links when no recognizable card wrapper exists.
	if (results.length === 0) {
		var roomLinks = document.querySelectorAll('a[href*="/rooms/"]');
		for (var j = 0; j < roomLinks.length && results.length < limit; j++) {
			var href = roomLinks[j].href;
			if (!href || seen[href]) continue;
			seen[href] = true;
			var text = (roomLinks[j].closest('div') || roomLinks[j]).innerText || '';
			var lines = text.split('\n').map(function(l){ return l.trim(); }).filter(Boolean);
			results.push({
				title:   lines[0] || '',
				price:   lines.find(function(l){ return l.match(/\$|CHF|€|£/); }) || '',
				rating:  (lines.find(function(l){ return l.match(/^\d\.\d+/); }) || ''),
				reviews: '',
				url:     href,
				image:   ''
			});
		}
	}

	return results;
})()
`

func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
