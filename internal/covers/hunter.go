// Package covers finds one representative cover image for a resolved title
// by walking an ordered cascade of image sources and gating each candidate
// on its probed size.
package covers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// maxCountBytes bounds the body read when a host sends no Content-Length
const maxCountBytes = 4 << 20

var errNotImage = errors.New("not an image")

// Options configures a Hunter
type Options struct {
	MinBytes            int64
	GoogleBooksMinBytes int64

	Timeout       time.Duration // size probes and lookups
	ImagesTimeout time.Duration // the image search page
	EpikTimeout   time.Duration

	GoogleBooksURL       string
	GoogleBooksAPI       string
	OpenLibraryCoversURL string
	OpenLibrarySearchURL string
	GoogleImagesURL      string

	// Stages replaces the default cascade when set
	Stages []Stage
}

// Hunter runs the cover cascade. It holds no per-title state.
type Hunter struct {
	catalog  *catalog.Client
	probe    *probe.Client
	stages   []Stage
	minBytes int64
	gbBytes  int64
	timeout  time.Duration
	imgTime  time.Duration
}

// Result is the outcome of one hunt
type Result struct {
	Cover *models.CoverCandidate
	Trace []models.TraceEntry
}

// NewHunter creates a hunter using c for record pages and requests
func NewHunter(c *catalog.Client, opts Options) *Hunter {
	if opts.MinBytes <= 0 {
		opts.MinBytes = 1337
	}
	if opts.GoogleBooksMinBytes <= 0 {
		opts.GoogleBooksMinBytes = 11264
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ImagesTimeout <= 0 {
		opts.ImagesTimeout = 6 * time.Second
	}
	if opts.EpikTimeout <= 0 {
		opts.EpikTimeout = 10 * time.Second
	}

	h := &Hunter{
		catalog:  c,
		probe:    c.Probe(),
		stages:   opts.Stages,
		minBytes: opts.MinBytes,
		gbBytes:  opts.GoogleBooksMinBytes,
		timeout:  opts.Timeout,
		imgTime:  opts.ImagesTimeout,
	}
	if len(h.stages) == 0 {
		h.stages = []Stage{
			inlineStage{},
			avalancheStage{catalog: c, timeout: opts.EpikTimeout},
			googleBooksStage{
				httpClient: c.Probe().HTTPClient(),
				contentURL: opts.GoogleBooksURL,
				apiURL:     opts.GoogleBooksAPI,
				timeout:    opts.Timeout,
			},
			openLibraryStage{
				probe:     c.Probe(),
				coversURL: strings.TrimRight(opts.OpenLibraryCoversURL, "/"),
				searchURL: opts.OpenLibrarySearchURL,
				timeout:   opts.Timeout,
			},
			googleImagesStage{probe: c.Probe(), searchURL: opts.GoogleImagesURL, timeout: opts.ImagesTimeout},
		}
	}
	return h
}

// Hunt walks the cascade for s and returns the first candidate that passes
// its gates. A coverless result is not an error.
func (h *Hunter) Hunt(ctx context.Context, s Subject) Result {
	var res Result
	note := func(step, outcome, detail string) {
		res.Trace = append(res.Trace, models.TraceEntry{Stage: "cover", Step: step, Outcome: outcome, Detail: detail})
	}

	if s.Page == nil && s.Hit.RecordURL != "" {
		page, err := h.catalog.Record(ctx, s.Hit.RecordURL)
		if err != nil {
			note("record", "error", probe.Describe(err))
		} else {
			s.Page = page
		}
	}

	rejected := make(map[int64]bool)
	for _, st := range h.stages {
		src := st.Source()
		if ctx.Err() != nil {
			note(string(src), "error", probe.Describe(ctx.Err()))
			break
		}

		u, err := st.Select(ctx, &s)
		if err != nil {
			note(string(src), "error", probe.Describe(err))
			continue
		}
		if u == "" {
			note(string(src), "none", "")
			continue
		}

		timeout := h.timeout
		if src == models.CoverGoogleImages {
			timeout = h.imgTime
		}
		size, err := h.Size(ctx, u, timeout)
		if err != nil {
			note(string(src), "error", describe(err))
			continue
		}

		if verdict := h.gate(src, size, rejected); verdict != "" {
			rejected[size] = true
			note(string(src), verdict, fmt.Sprintf("%d bytes", size))
			slog.Debug("cover rejected", "source", src, "bytes", size, "reason", verdict)
			continue
		}

		note(string(src), "accepted", fmt.Sprintf("%d bytes", size))
		res.Cover = &models.CoverCandidate{Source: src, URL: u, ByteSize: size}
		return res
	}
	return res
}

// gate returns "" when size is acceptable for src, otherwise the reason
func (h *Hunter) gate(src models.CoverSource, size int64, rejected map[int64]bool) string {
	switch {
	case size < h.minBytes:
		return "too-small"
	case src == models.CoverGoogleBooks && size <= h.gbBytes:
		return "placeholder"
	case src == models.CoverGoogleImages && rejected[size]:
		return "repeat"
	}
	return ""
}

// Size measures the image behind rawURL. Data URIs are decoded locally;
// anything else is fetched once and must carry an image content type.
func (h *Hunter) Size(ctx context.Context, rawURL string, timeout time.Duration) (int64, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return dataURISize(rawURL)
	}

	var n int64
	notImage := false
	err := h.probe.Stream(ctx, rawURL, timeout, func(resp *http.Response) error {
		if !strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "image/") {
			notImage = true
			return nil
		}
		if resp.ContentLength > 0 {
			n = resp.ContentLength
			return nil
		}
		counted, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxCountBytes))
		n = counted
		return err
	})
	if err != nil {
		return 0, err
	}
	if notImage {
		return 0, errNotImage
	}
	return n, nil
}

func dataURISize(uri string) (int64, error) {
	i := strings.Index(uri, ",")
	if i < 0 || !strings.HasPrefix(uri, "data:image/") {
		return 0, errNotImage
	}
	meta, payload := uri[:i], uri[i+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return int64(len(payload)), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to decode data uri: %w", err)
	}
	return int64(len(data)), nil
}

func describe(err error) string {
	if errors.Is(err, errNotImage) {
		return "not an image"
	}
	return probe.Describe(err)
}
