package covers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/books/v1"
	"google.golang.org/api/option"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// Stage is one source in the cover cascade. Select returns the single URL
// the source offers for s, or "" when it has nothing to offer.
type Stage interface {
	Source() models.CoverSource
	Select(ctx context.Context, s *Subject) (string, error)
}

// Subject is what the cascade knows about one title
type Subject struct {
	Record models.InputRecord
	Hit    models.CatalogueHit
	Page   *catalog.Record // parsed record page, nil when unavailable
}

// ISBNs lists the cleaned ISBNs of the record, falling back to the input ISBN
func (s *Subject) ISBNs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(list ...string) {
		for _, isbn := range list {
			isbn = catalog.CleanISBN(isbn)
			if isbn != "" && !seen[isbn] {
				seen[isbn] = true
				out = append(out, isbn)
			}
		}
	}
	add(s.Hit.ISBNs...)
	if s.Page != nil {
		add(s.Page.ISBNs...)
	}
	if len(out) == 0 {
		add(s.Record.ISBN)
	}
	return out
}

// inline takes the first jacket image printed on the record page
type inlineStage struct{}

func (inlineStage) Source() models.CoverSource { return models.CoverInline }

func (inlineStage) Select(_ context.Context, s *Subject) (string, error) {
	if s.Page == nil || len(s.Page.Images) == 0 {
		return "", nil
	}
	return s.Page.Images[0], nil
}

type epikImage struct {
	ImageData string `json:"imageData"`
	URLLarge  string `json:"urlLarge"`
	URLSmall  string `json:"urlSmall"`
}

// inlineDataLimit is the largest base64 payload used as a data URI; bigger
// payloads prefer the hosted image URLs
const inlineDataLimit = 300000

// avalancheStage asks the EPiK image service for the record's scan and
// falls back to the IIIF image URL derived from the record code
type avalancheStage struct {
	catalog *catalog.Client
	timeout time.Duration
}

func (avalancheStage) Source() models.CoverSource { return models.CoverAvalanche }

func (a avalancheStage) Select(ctx context.Context, s *Subject) (string, error) {
	code := s.Hit.BibID
	if s.Page != nil && s.Page.ImageCode != "" {
		code = s.Page.ImageCode
	}
	if code == "" {
		return "", nil
	}

	resp, err := a.catalog.Probe().Fetch(ctx, probe.Request{
		Method:  http.MethodPost,
		URL:     a.catalog.EpikURL("getImagesByCodeList"),
		JSON:    []string{code},
		Timeout: a.timeout,
	})
	if err == nil {
		var imgs []epikImage
		if err := probe.DecodeJSON(resp, &imgs); err == nil && len(imgs) > 0 {
			if u := pickEpik(imgs[0]); u != "" {
				return u, nil
			}
		}
	}
	return a.catalog.IIIFURL(code), nil
}

func pickEpik(img epikImage) string {
	data := strings.TrimSpace(img.ImageData)
	if data != "" && len(data) <= inlineDataLimit {
		if strings.HasPrefix(data, "data:") {
			return data
		}
		return "data:image/jpeg;base64," + data
	}
	if img.URLLarge != "" {
		return img.URLLarge
	}
	if img.URLSmall != "" {
		return img.URLSmall
	}
	if data != "" {
		return "data:image/jpeg;base64," + data
	}
	return ""
}

// googleBooksStage uses the front-cover content URL when an ISBN is known
// and a volume search otherwise
type googleBooksStage struct {
	httpClient *http.Client
	contentURL string
	apiURL     string
	timeout    time.Duration
}

func (googleBooksStage) Source() models.CoverSource { return models.CoverGoogleBooks }

func (g googleBooksStage) Select(ctx context.Context, s *Subject) (string, error) {
	if isbns := s.ISBNs(); len(isbns) > 0 {
		return fmt.Sprintf("%s?vid=ISBN%s&printsec=frontcover&img=1&zoom=1", g.contentURL, isbns[0]), nil
	}
	if s.Record.Title == "" {
		return "", nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	svc, err := books.NewService(ctx,
		option.WithHTTPClient(g.httpClient),
		option.WithEndpoint(g.apiURL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create books service: %w", err)
	}

	q := "intitle:" + textnorm.StripAnyParens(s.Record.Title)
	if sur := textnorm.Surname(s.Record.Author); sur != "" {
		q += " inauthor:" + sur
	}
	vols, err := svc.Volumes.List(q).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("volume search failed: %w", err)
	}
	for _, v := range vols.Items {
		if v.VolumeInfo == nil || v.VolumeInfo.ImageLinks == nil {
			continue
		}
		links := v.VolumeInfo.ImageLinks
		for _, u := range []string{links.Thumbnail, links.SmallThumbnail} {
			if u != "" {
				return strings.Replace(u, "http://", "https://", 1), nil
			}
		}
	}
	return "", nil
}

// openLibraryStage uses the ISBN cover endpoint, or the search API's cover
// id when there is no ISBN
type openLibraryStage struct {
	probe     *probe.Client
	coversURL string
	searchURL string
	timeout   time.Duration
}

func (openLibraryStage) Source() models.CoverSource { return models.CoverOpenLibrary }

func (o openLibraryStage) Select(ctx context.Context, s *Subject) (string, error) {
	if isbns := s.ISBNs(); len(isbns) > 0 {
		return fmt.Sprintf("%s/b/isbn/%s-M.jpg?default=false", o.coversURL, isbns[0]), nil
	}
	if s.Record.Title == "" {
		return "", nil
	}

	params := url.Values{}
	params.Set("title", textnorm.StripAnyParens(s.Record.Title))
	if s.Record.Author != "" {
		params.Set("author", textnorm.StripAnyParens(s.Record.Author))
	}
	params.Set("limit", "1")
	resp, err := o.probe.Fetch(ctx, probe.Request{URL: o.searchURL, Params: params, Timeout: o.timeout})
	if err != nil {
		return "", err
	}
	var result struct {
		Docs []struct {
			CoverID int `json:"cover_i"`
		} `json:"docs"`
	}
	if err := probe.DecodeJSON(resp, &result); err != nil {
		return "", err
	}
	if len(result.Docs) == 0 || result.Docs[0].CoverID == 0 {
		return "", nil
	}
	return fmt.Sprintf("%s/b/id/%d-M.jpg?default=false", o.coversURL, result.Docs[0].CoverID), nil
}

// googleImagesStage scrapes the first plausible result of an image search
type googleImagesStage struct {
	probe     *probe.Client
	searchURL string
	timeout   time.Duration
}

func (googleImagesStage) Source() models.CoverSource { return models.CoverGoogleImages }

func (g googleImagesStage) Select(ctx context.Context, s *Subject) (string, error) {
	q := strings.TrimSpace(textnorm.StripAnyParens(s.Record.Author) + " " + textnorm.StripAnyParens(s.Record.Title))
	if q == "" {
		return "", nil
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("tbm", "isch")
	params.Set("ijn", "0")
	resp, err := g.probe.Fetch(ctx, probe.Request{URL: g.searchURL, Params: params, Timeout: g.timeout})
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", &probe.TransportError{Kind: probe.KindMalformedBody, URL: resp.FinalURL, Err: err}
	}
	var found string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if strings.HasPrefix(src, "http") && catalog.LooksLikeJacket(src) {
			found = src
			return false
		}
		return true
	})
	return found, nil
}
