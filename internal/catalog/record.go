package catalog

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// Record is the parsed content of one catalogue record page
type Record struct {
	URL          string
	BibID        string
	ImageCode    string
	Title        string
	Author       string
	ISBNs        []string
	HoldingsRows int
	Images       []string
	EResource    bool
	NonBook      bool
	HTML         []byte
}

var (
	isbnPattern  = regexp.MustCompile(`\b(\d{13}|\d{9}[\dXx])\b`)
	codePatterns = []*regexp.Regexp{
		regexp.MustCompile(`record=(b\d+)`),
		regexp.MustCompile(`catalog/(b\d+)`),
		regexp.MustCompile(`"code"\s*:\s*"(b\d+)"`),
	}

	// BadImage matches placeholder and logo images that are never covers
	BadImage = regexp.MustCompile(`(?i)/screens/|spinner|transparent\.gif|\.svg$|fonts\.gstatic\.com`)

	imageAttrs = []string{"data-src", "data-original", "data-large", "data-iiif-high", "src"}
)

// eResourceTags mark virtual-only records
var eResourceTags = []string{
	"1 võrguressurss", "tekstifail", "audiofile", "videosalvestis",
	"võrguteavik", "1 online resource", "online resource",
	"electronic bk", "electronic resource",
	"e-raamat", "ebook", "e-audiobook",
	"digitaalkogu", "internetiväljaanne", "pdf (online)", "pdf-fail",
	"www-link",
}

// nonBookTags mark physical carriers that are not books
var nonBookTags = []string{
	"videosalvestis", "dvd", "blu-ray",
	"cd-plaat", "audiofile", "helisalvestis",
}

// IsEResourceText reports whether s carries a virtual-only marker
func IsEResourceText(s string) bool {
	return containsAny(strings.ToLower(s), eResourceTags)
}

// IsNonBookText reports whether s carries a non-book carrier marker
func IsNonBookText(s string) bool {
	return containsAny(strings.ToLower(s), nonBookTags)
}

func containsAny(s string, tags []string) bool {
	for _, tag := range tags {
		if strings.Contains(s, tag) {
			return true
		}
	}
	return false
}

// Record fetches and parses one record page
func (c *Client) Record(ctx context.Context, recordURL string) (*Record, error) {
	page := c.Page(ctx, recordURL)
	if page.Err != nil {
		return nil, page.Err
	}
	rec, err := ParseRecord(page.Body, c.Absolute)
	if err != nil {
		return nil, err
	}
	rec.URL = recordURL
	if bib := BibID(recordURL); bib != "" {
		rec.BibID = bib
	} else if bib := BibID(page.Final); bib != "" {
		rec.BibID = bib
	}
	if rec.ImageCode == "" {
		rec.ImageCode = rec.BibID
	}
	return rec, nil
}

// ParseRecord reads a record page. absolute resolves relative image links;
// it may be nil.
func ParseRecord(body []byte, absolute func(string) string) (*Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse record page: %w", err)
	}
	if absolute == nil {
		absolute = func(s string) string { return s }
	}

	rec := &Record{HTML: body}

	if s := doc.Find("h1.title, h2.title").First(); s.Length() > 0 {
		rec.Title = spacedText(s)
	} else if s := doc.Find("td#bibTitle").First(); s.Length() > 0 {
		rec.Title = spacedText(s)
	} else {
		rec.Title = labelled(doc, "Pealkiri")
	}
	rec.Author = labelled(doc, "Autor")
	rec.ISBNs = scrapeISBNs(doc)
	rec.HoldingsRows = doc.Find("tr[class*='bibItemsEntry']").Length()
	rec.Images = inlineImages(doc, absolute)

	raw := string(body)
	rec.BibID = BibID(raw)
	for _, p := range codePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			rec.ImageCode = m[1]
			break
		}
	}

	// noise classification looks at the bibliographic part of the page
	// when there is one, so navigation menus do not count
	desc := bibliographicText(doc)
	rec.EResource = rec.HoldingsRows == 0 && IsEResourceText(desc)
	rec.NonBook = IsNonBookText(desc)

	return rec, nil
}

func isRecordPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find("td.bibInfoLabel, td#bibTitle, #bibDisplayContent").Length() > 0
}

func bibliographicText(doc *goquery.Document) string {
	info := doc.Find("td.bibInfoData, td#bibTitle, h1.title, h2.title")
	if info.Length() > 0 {
		return spacedText(info)
	}
	return spacedText(doc.Find("body"))
}

// labelled returns the data cell next to the first label containing label
func labelled(doc *goquery.Document, label string) string {
	var out string
	doc.Find("td.bibInfoLabel").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), label) {
			out = spacedText(s.NextFiltered("td.bibInfoData"))
			return false
		}
		return true
	})
	return out
}

func scrapeISBNs(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(text string) {
		for _, m := range isbnPattern.FindAllString(text, -1) {
			m = strings.ToUpper(m)
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	doc.Find(`a[href*="isbn"]`).Each(func(_ int, a *goquery.Selection) {
		add(a.Text())
	})
	if len(out) == 0 {
		add(labelled(doc, "ISBN"))
	}
	return out
}

func inlineImages(doc *goquery.Document, absolute func(string) string) []string {
	var out []string
	collect := func(sel *goquery.Selection) {
		sel.Each(func(_ int, img *goquery.Selection) {
			for _, attr := range imageAttrs {
				src := strings.TrimSpace(img.AttrOr(attr, ""))
				if LooksLikeJacket(src) {
					out = append(out, absolute(src))
				}
			}
		})
	}
	collect(doc.Find("img"))

	// the HTML parser keeps <noscript> content as raw text
	doc.Find("noscript").Each(func(_ int, ns *goquery.Selection) {
		inner, err := goquery.NewDocumentFromReader(strings.NewReader(ns.Text()))
		if err == nil {
			collect(inner.Find("img"))
		}
	})

	og := doc.Find(`meta[property="og:image"], meta[name="og:image"]`).First()
	if src := strings.TrimSpace(og.AttrOr("content", "")); LooksLikeJacket(src) {
		out = append(out, absolute(src))
	}
	return out
}

// LooksLikeJacket filters out placeholder and icon images
func LooksLikeJacket(src string) bool {
	if src == "" || BadImage.MatchString(src) {
		return false
	}
	for _, p := range []string{"http://", "https://", "/iiif/", "data:image/"} {
		if strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}

// spacedText joins the text nodes under s with single spaces
func spacedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return textnorm.Clean(b.String())
}
