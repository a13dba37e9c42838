package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// badLeads are OPAC links that never lead to more hits
var badLeads = []string{
	"/clientredirect", "/patroninfo~", "/validate/patroninfo",
	"/requestmulti~", "/mylistsmulti", "/logout",
	"?save=", "&save=", "?saved=", "&saved=",
	"?clear_saves=", "&clear_saves=", "/frameset&save", "?save_func=",
}

// framesetScrub strips slice counters and save noise from hit-list URLs
var framesetScrub = regexp.MustCompile(`(?i)(&\d+(?:,\d+)*,?$)|([&?](?:save|saved|clear_saves)=[^&]*)`)

// SearchURL builds the OPAC search URL for one probe query
func (c *Client) SearchURL(q models.ProbeQuery) string {
	var searchType, arg string
	switch q.Strategy {
	case models.StrategyISBN:
		searchType, arg = "X", CleanISBN(q.Term)
	case models.StrategyTitleIndex:
		searchType, arg = "t", textnorm.CatalogueEscape(textnorm.NormDash(q.Term))
	default:
		searchType = "X"
		arg = textnorm.CatalogueEscape(textnorm.NormDash(strings.TrimSpace(textnorm.Squeeze(q.Term))))
	}
	return fmt.Sprintf("%s/X?searchtype=%s&searcharg=%s&searchscope=8&SORT=DZ&extended=0&SUBMIT=OTSI",
		c.searchURL, searchType, escapeArg(arg))
}

// escapeArg is query escaping that keeps the {uXXXX} braces readable
func escapeArg(s string) string {
	e := url.QueryEscape(s)
	return strings.NewReplacer("%7B", "{", "%7D", "}").Replace(e)
}

// CleanISBN removes hyphens and whitespace
func CleanISBN(isbn string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn)))
}

// canonical normalises hit-list URLs so that cosmetic junk cannot turn one
// page into an endless stream of new ones. Non-frameset pages drop their
// query altogether.
func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	path, _ := url.PathUnescape(u.Path)
	query, _ := url.QueryUnescape(u.RawQuery)

	if strings.Contains(path, "/frameset") || strings.Contains(query, "/frameset") {
		tail := path
		if query != "" {
			tail += "?" + query
		}
		return u.Scheme + "://" + u.Host + framesetScrub.ReplaceAllString(tail, "")
	}
	return u.Scheme + "://" + u.Host + path
}

func isBadLead(u string) bool {
	for _, bad := range badLeads {
		if strings.Contains(u, bad) {
			return true
		}
	}
	return false
}

// Search crawls the hit list of one probe and returns the physical book
// records on it. Only a failure of the first page is returned as an error;
// later pages that fail are skipped.
func (c *Client) Search(ctx context.Context, q models.ProbeQuery) ([]models.CatalogueHit, error) {
	start := c.SearchURL(q)

	first := c.Page(ctx, start)
	if first.Err != nil {
		return nil, first.Err
	}

	// a single hit lands straight on the record page
	if isRecordPage(first.Body) {
		bib := BibID(first.Final)
		if bib == "" {
			bib = BibID(string(first.Body))
		}
		if bib == "" {
			return nil, nil
		}
		hit, ok := c.accept(ctx, c.RecordURL(bib), "", q.Strategy)
		if !ok {
			return nil, nil
		}
		return []models.CatalogueHit{hit}, nil
	}

	queue := []string{start}
	seen := make(map[string]bool)
	seenBibs := make(map[string]bool)
	var hits []models.CatalogueHit

	for len(queue) > 0 {
		pageURL := queue[0]
		queue = queue[1:]
		key := canonical(pageURL)
		if seen[key] {
			continue
		}
		seen[key] = true

		page := c.Page(ctx, pageURL)
		if page.Err != nil {
			slog.Debug("collect skip", "url", pageURL, "error", probe.Describe(page.Err))
			continue
		}
		base := page.Final
		if base == "" {
			base = pageURL
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			continue
		}

		done := false
		doc.Find(`a[href*="/record=b"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			rec := resolve(base, href)
			bib := BibID(rec)
			if bib == "" || seenBibs[bib] {
				return true
			}
			seenBibs[bib] = true

			hit, ok := c.accept(ctx, rec, textnorm.Clean(a.Text()), q.Strategy)
			if !ok {
				return true
			}
			hits = append(hits, hit)
			if len(hits) >= c.maxHits {
				done = true
				return false
			}
			return true
		})
		if done {
			return hits, nil
		}

		var leads []string
		doc.Find(`a[href*="/frameset"]`).Each(func(_ int, s *goquery.Selection) {
			leads = append(leads, s.AttrOr("href", ""))
		})
		doc.Find("frame[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
			leads = append(leads, s.AttrOr("src", ""))
		})
		for _, l := range leads {
			if l == "" {
				continue
			}
			next := resolve(base, l)
			if isBadLead(next) || seen[canonical(next)] {
				continue
			}
			if len(seen) >= c.maxPages {
				slog.Debug("collect abort", "visited", len(seen), "term", q.Term)
				return hits, nil
			}
			queue = append(queue, next)
		}
	}

	return hits, nil
}

// accept loads a harvested record and turns it into a hit unless it is a
// noise record
func (c *Client) accept(ctx context.Context, recordURL, snippet string, strategy models.Strategy) (models.CatalogueHit, bool) {
	rec, err := c.Record(ctx, recordURL)
	if err != nil {
		slog.Debug("collect skip", "record", recordURL, "error", probe.Describe(err))
		return models.CatalogueHit{}, false
	}
	if rec.EResource {
		slog.Debug("collect - e-resource", "record", recordURL)
		return models.CatalogueHit{}, false
	}
	if rec.NonBook {
		slog.Debug("collect - non-book", "record", recordURL)
		return models.CatalogueHit{}, false
	}
	slog.Debug("collect + physical", "record", recordURL)

	if snippet == "" {
		snippet = rec.Title
	}
	return models.CatalogueHit{
		RecordURL:      recordURL,
		Snippet:        snippet,
		Strategy:       strategy,
		BibID:          rec.BibID,
		Title:          rec.Title,
		Author:         rec.Author,
		ISBNs:          rec.ISBNs,
		HoldingsListed: rec.HoldingsRows,
	}, true
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
