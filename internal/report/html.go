package report

import (
	"fmt"
	"html/template"
	"os"
	"time"

	"stayscout/internal/domain"
)

// The comparison report: summary block plus one card per listing with a
// platform badge, price, rating and link, in the style of the frontend the
// engine originally fed.
var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"float": func(v *float64) string {
		if v == nil {
			return "–"
		}
		return fmt.Sprintf("%.2f", *v)
	},
	"int": func(v *int) string {
		if v == nil {
			return "–"
		}
		return fmt.Sprintf("%d", *v)
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Accommodation Comparison - {{.Location}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background: #f5f5f5; }
h1 { color: #FF5A5F; text-align: center; }
.summary, .listing { background: white; padding: 20px; margin: 20px 0; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
.platform-badge { display: inline-block; padding: 5px 10px; border-radius: 4px; color: white; font-weight: bold; font-size: 12px; margin-right: 6px; }
.airbnb { background: #FF5A5F; }
.booking { background: #003580; }
.hotelscom { background: #D32F2F; }
.expedia { background: #0057B8; }
.price { font-size: 24px; font-weight: bold; color: #008009; }
.rating { background: #FF8C00; color: white; padding: 5px 10px; border-radius: 4px; display: inline-block; }
a { color: #FF5A5F; text-decoration: none; }
a:hover { text-decoration: underline; }
</style>
</head>
<body>
<h1>Accommodation Comparison</h1>
<div class="summary">
  <h2>Summary</h2>
  <p><strong>Location:</strong> {{.Location}}</p>
  <p><strong>Dates:</strong> {{.CheckIn}} – {{.CheckOut}} ({{.Nights}} nights, {{.Guests}} guests)</p>
  <p><strong>Found:</strong> {{len .Listings}} listings</p>
  <p>{{range .Counts}}<strong>{{.Platform}}:</strong> {{.Line}} {{end}}</p>
  <p><em>Generated {{.GeneratedAt}}</em></p>
</div>
{{range $i, $l := .Listings}}
<div class="listing">
  {{range $l.Sources}}<span class="platform-badge {{.}}">{{.}}</span>{{end}}
  <h2>{{inc $i}}. {{$l.Title}}</h2>
  {{if $l.Address}}<p>{{$l.Address}}</p>{{end}}
  {{if $l.ImageURLs}}<p><img src="{{index $l.ImageURLs 0}}" alt="{{$l.Title}}" style="max-width: 480px; border-radius: 8px;"></p>{{end}}
  <p><span class="price">{{$l.Currency}} {{float $l.PricePerNight}}</span> per night</p>
  <p><span class="rating">★ {{float $l.Rating}}</span> ({{int $l.Reviews}} reviews)</p>
  <p>Distance: {{float $l.DistanceKm}} km</p>
  {{if $l.URL}}<p><a href="{{$l.URL}}" target="_blank">View on {{$l.Platform}}</a></p>{{end}}
</div>
{{end}}
</body>
</html>
`))

type countLine struct {
	Platform domain.Platform
	Line     string
}

type htmlData struct {
	Location    string
	CheckIn     string
	CheckOut    string
	Nights      int
	Guests      int
	Listings    []domain.ListingRecord
	Counts      []countLine
	GeneratedAt string
}

func (s *FileSink) writeHTML(path string, req domain.SearchRequest, result domain.AggregatedResult) error {
	var counts []countLine
	for _, p := range req.Platforms {
		c := result.Counts[p]
		if c == nil {
			continue
		}
		state := "failed"
		if c.Succeeded {
			state = fmt.Sprintf("%d found, %d after filters", c.Returned, c.AfterFilter)
		}
		counts = append(counts, countLine{Platform: p, Line: state})
	}

	data := htmlData{
		Location:    req.Location,
		CheckIn:     req.CheckIn.Format("2006-01-02"),
		CheckOut:    req.CheckOut.Format("2006-01-02"),
		Nights:      req.Nights(),
		Guests:      req.Guests,
		Listings:    result.Listings,
		Counts:      counts,
		GeneratedAt: time.Now().Format(time.RFC1123),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create html %q: %w", path, err)
	}
	defer f.Close()

	if err := reportTmpl.Execute(f, data); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
