package shelf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// DefaultShelfURL is the public review list of a Goodreads user
const DefaultShelfURL = "https://www.goodreads.com/review/list"

var isbn13 = regexp.MustCompile(`\b\d{13}\b`)

// Scraper reads the table view of a public Goodreads shelf
type Scraper struct {
	probe   *probe.Client
	baseURL string
	timeout time.Duration
}

// NewScraper creates a shelf scraper. baseURL defaults to DefaultShelfURL.
func NewScraper(p *probe.Client, baseURL string, timeout time.Duration) *Scraper {
	if baseURL == "" {
		baseURL = DefaultShelfURL
	}
	return &Scraper{probe: p, baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Load walks the to-read shelf of user page by page until a page has no
// rows or limit records were read
func (s *Scraper) Load(ctx context.Context, user string, limit int) ([]models.InputRecord, error) {
	slog.Info("Scraping Goodreads shelf", "user", user)

	var out []models.InputRecord
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("shelf", ToRead)
		params.Set("per_page", "200")
		params.Set("page", strconv.Itoa(page))
		params.Set("sort", "date_added")
		params.Set("view", "table")

		resp, err := s.probe.Fetch(ctx, probe.Request{
			URL:     s.baseURL + "/" + url.PathEscape(user),
			Params:  params,
			Timeout: s.timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch shelf page %d: %w", page, err)
		}

		recs, err := ParseShelfPage(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shelf page %d: %w", page, err)
		}
		slog.Debug("Shelf page", "page", page, "rows", len(recs), "bytes", len(resp.Body))
		if len(recs) == 0 {
			return out, nil
		}
		for _, r := range recs {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
}

// ParseShelfPage reads the review rows of one table-view page. The ISBN13
// cell carries a "13" label before the number, so the last 13-digit run wins.
func ParseShelfPage(body []byte) ([]models.InputRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var out []models.InputRecord
	doc.Find("tr[id^='review_']").Each(func(_ int, tr *goquery.Selection) {
		author := strings.Join(strings.Fields(tr.Find("td.field.author a").First().Text()), " ")
		title := strings.Join(strings.Fields(tr.Find("td.field.title a").First().Text()), " ")
		if author == "" || title == "" {
			return
		}
		cell := tr.Find("td.field.isbn13")
		cell.Find("span").AppendHtml(" ")
		var isbn string
		if digits := isbn13.FindAllString(cell.Text(), -1); len(digits) > 0 {
			isbn = digits[len(digits)-1]
		}
		out = append(out, models.InputRecord{Title: title, Author: author, ISBN: isbn})
	})
	return out, nil
}
