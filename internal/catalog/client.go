// Package catalog knows the ESTER (Sierra OPAC) page layout: how to build
// search and holdings URLs, how to crawl a hit list and how to read a
// record page.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/probe"
	"github.com/codeyoulateralligator/goodreader/internal/storage"
)

var bibPattern = regexp.MustCompile(`\b(b\d{7})`)

// Client represents a catalogue client
type Client struct {
	probe     *probe.Client
	pages     *storage.PageStore
	baseURL   string
	searchURL string
	epikURL   string
	maxHits   int
	maxPages  int
	timeout   time.Duration
}

// Options configures a Client
type Options struct {
	BaseURL    string
	SearchPath string
	EpikURL    string
	MaxHits    int
	MaxPages   int
	Timeout    time.Duration
}

// NewClient creates a new catalogue client. Pages are cached in pages for the
// lifetime of the run.
func NewClient(p *probe.Client, pages *storage.PageStore, opts Options) *Client {
	if pages == nil {
		pages = storage.New()
	}
	if opts.SearchPath == "" {
		opts.SearchPath = "/search~S8*est"
	}
	if opts.MaxHits <= 0 {
		opts.MaxHits = 4
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 13
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		probe:     p,
		pages:     pages,
		baseURL:   base,
		searchURL: base + opts.SearchPath,
		epikURL:   strings.TrimRight(opts.EpikURL, "/"),
		maxHits:   opts.MaxHits,
		maxPages:  opts.MaxPages,
		timeout:   opts.Timeout,
	}
}

// BaseURL is the catalogue origin, used to absolutise relative links
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Probe exposes the underlying probe client
func (c *Client) Probe() *probe.Client {
	return c.probe
}

// Timeout is the per-request timeout for catalogue pages
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Page returns the cached page for rawURL, fetching it once per run
func (c *Client) Page(ctx context.Context, rawURL string) *storage.Page {
	return c.pages.Load(ctx, rawURL, func(ctx context.Context, u string) (string, []byte, error) {
		resp, err := c.probe.Get(ctx, u, c.timeout)
		if err != nil {
			return "", nil, err
		}
		return resp.FinalURL, resp.Body, nil
	})
}

// BibID extracts the "bNNNNNNN" record id from a URL or page fragment
func BibID(s string) string {
	m := bibPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// RecordURL is the permanent link of a bib record
func (c *Client) RecordURL(bib string) string {
	return fmt.Sprintf("%s/record=%s~S8*est", c.baseURL, bib)
}

// HoldingsURL is the classic holdings page of a bib record. The alt variant
// lists the "available copies" view.
func (c *Client) HoldingsURL(bib string, alt bool) string {
	page := "holdings~"
	if alt {
		page = "holdingsa~"
	}
	return fmt.Sprintf("%s?/.%s/.%s/1,1,1,B/%s%s&FF=&1,0,/indexsort=-", c.searchURL, bib, bib, page, bib)
}

// EpikURL is a method endpoint of the EPiK JSON API
func (c *Client) EpikURL(method string) string {
	return c.epikURL + "/" + method
}

// IIIFURL is the image-service URL for a record's digitised cover
func (c *Client) IIIFURL(code string) string {
	return fmt.Sprintf("%s/iiif/2/%s/full/500,/0/default.jpg", c.baseURL, code)
}

// Absolute resolves a catalogue-relative link
func (c *Client) Absolute(src string) string {
	if strings.HasPrefix(src, "http") || strings.HasPrefix(src, "data:") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	if !strings.HasPrefix(src, "/") {
		src = "/" + src
	}
	return c.baseURL + src
}
