package hotelscom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"stayscout/internal/domain"
	"stayscout/internal/logger"
	"stayscout/internal/scrape"
)

const samplePage = `<html><body>
<div data-stid="lodging-card-responsive">
  <a href="/ho123456/grand-hotel-zermatt/"></a>
  <h3>Grand Hotel Zermatt</h3>
  <div data-stid="price-summary">CHF 240</div>
  <span class="uitk-badge-base-text">8.8</span>
  <span>1,204 reviews</span>
  <img src="https://images.trvl-media.com/hotels/t_70x70/1.jpg">
</div>
<div data-stid="lodging-card-responsive">
  <a href="https://ch.hotels.com/ho654321/"></a>
  <h3>Alpenblick</h3>
  <div data-stid="price-summary">CHF 150</div>
</div>
</body></html>`

func baseRequest() domain.SearchRequest {
	return domain.SearchRequest{
		Location: "Zermatt",
		CheckIn:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC),
		Guests:   2,
	}
}

func newTestSearcher(serverURL string) *Searcher {
	s := New(logger.NewWriter(io.Discard), 2)
	s.baseURL = serverURL
	s.retry.BaseDelay = time.Millisecond
	return s
}

func TestSearchParsesCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("destination"); got != "Zermatt" {
			t.Errorf("destination = %q", got)
		}
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	got, err := newTestSearcher(srv.URL).Search(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d listings, want 2", len(got))
	}

	first := got[0]
	if first.Title != "Grand Hotel Zermatt" {
		t.Errorf("title = %q", first.Title)
	}
	if first.RawPrice != "CHF 240" {
		t.Errorf("price = %q", first.RawPrice)
	}
	if first.RawRating != "8.8" {
		t.Errorf("rating = %q", first.RawRating)
	}
	if first.URL != "https://ch.hotels.com/ho123456/grand-hotel-zermatt/" {
		t.Errorf("url = %q", first.URL)
	}
	if len(first.ImageURLs) != 1 || first.ImageURLs[0] != "https://images.trvl-media.com/hotels/t_1000x1000/1.jpg" {
		t.Errorf("images = %v", first.ImageURLs)
	}
	if got[1].URL != "https://ch.hotels.com/ho654321/" {
		t.Errorf("absolute url rewritten: %q", got[1].URL)
	}
}

func TestSearchBlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestSearcher(srv.URL).Search(context.Background(), baseRequest())
	if !errors.Is(err, scrape.ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
}

func TestSearchRetriesTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	got, err := newTestSearcher(srv.URL).Search(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(got) != 2 {
		t.Errorf("got %d listings, want 2", len(got))
	}
}

func TestBuildURL(t *testing.T) {
	s := New(logger.NewWriter(io.Discard), 1)
	u, err := url.Parse(s.buildURL(baseRequest()))
	if err != nil {
		t.Fatalf("unparsable URL: %v", err)
	}
	q := u.Query()
	if q.Get("startDate") != "2026-09-10" || q.Get("endDate") != "2026-09-13" {
		t.Errorf("dates = %q / %q", q.Get("startDate"), q.Get("endDate"))
	}
	if q.Get("adults") != "2" {
		t.Errorf("adults = %q", q.Get("adults"))
	}
}
