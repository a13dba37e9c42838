package pipeline

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/catalog/estertest"
	"github.com/codeyoulateralligator/goodreader/internal/covers"
	"github.com/codeyoulateralligator/goodreader/internal/holdings"
	"github.com/codeyoulateralligator/goodreader/internal/match"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
	"github.com/codeyoulateralligator/goodreader/internal/storage"
)

// slowMatcher resolves every record, sleeping longer for earlier records so
// that completion order is the reverse of input order
type slowMatcher struct {
	total int
	onHit func(models.InputRecord)
}

func (m slowMatcher) Resolve(ctx context.Context, rec models.InputRecord) models.MatchOutcome {
	if m.onHit != nil {
		m.onHit(rec)
	}
	i, _ := strconv.Atoi(rec.ISBN)
	select {
	case <-time.After(time.Duration(m.total-i) * 5 * time.Millisecond):
	case <-ctx.Done():
	}
	if rec.Author == "" {
		return models.MatchOutcome{Kind: models.MatchNone}
	}
	return models.MatchOutcome{Kind: models.MatchResolved, Hit: &models.CatalogueHit{BibID: "b" + rec.ISBN}}
}

type fixedHoldings struct{}

func (fixedHoldings) Extract(_ context.Context, hit models.CatalogueHit) holdings.Result {
	return holdings.Result{Copies: []models.HoldingCopy{{Branch: hit.BibID, Status: models.HoldingStatus{Kind: models.StatusAvailable}}}}
}

type evenCovers struct{}

func (evenCovers) Hunt(_ context.Context, s covers.Subject) covers.Result {
	i, _ := strconv.Atoi(s.Record.ISBN)
	if i%2 == 0 {
		return covers.Result{Cover: &models.CoverCandidate{Source: models.CoverOpenLibrary, URL: "x", ByteSize: 2000}}
	}
	return covers.Result{}
}

func numbered(n int) []models.InputRecord {
	recs := make([]models.InputRecord, n)
	for i := range recs {
		recs[i] = models.InputRecord{Title: "Title " + strconv.Itoa(i), Author: "Author", ISBN: strconv.Itoa(i)}
	}
	return recs
}

func TestRunPreservesOrder(t *testing.T) {
	recs := numbered(8)
	r := NewRunner(Deps{Matcher: slowMatcher{total: 8}, Holdings: fixedHoldings{}, Covers: evenCovers{}})

	res, err := r.Run(context.Background(), recs, Options{Workers: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Titles) != len(recs) {
		t.Fatalf("Expected %d titles, got %d", len(recs), len(res.Titles))
	}
	for i, title := range res.Titles {
		if title.Index != i || title.Record != recs[i] {
			t.Errorf("Expected title %d in place, got %+v", i, title.Record)
		}
	}
	if res.Stats.Covers[models.CoverOpenLibrary] != 4 || res.Stats.NotFound != 4 {
		t.Errorf("Expected 4 covers and 4 not found, got %+v", res.Stats)
	}
	if p := res.Stats.Percent(models.CoverOpenLibrary); p != 100 {
		t.Errorf("Expected 100%%, got %.1f", p)
	}
	if p := res.Stats.Percent(models.CoverInline); p != 0 {
		t.Errorf("Expected 0%%, got %.1f", p)
	}
}

func TestRunTruncates(t *testing.T) {
	recs := numbered(5)
	recs[1].Author = ""
	r := NewRunner(Deps{Matcher: slowMatcher{total: 5}, Holdings: fixedHoldings{}, Covers: evenCovers{}})

	res, err := r.Run(context.Background(), recs, Options{MaxTitles: 3, Workers: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Titles) != 3 || res.Titles[2].Record.Title != "Title 2" {
		t.Fatalf("Expected the first 3 titles, got %d", len(res.Titles))
	}
	if res.Stats.Total != 3 {
		t.Errorf("Expected total 3, got %d", res.Stats.Total)
	}
	if res.Stats.Resolutions[ResolutionNoMatch] != 1 || res.Stats.Resolutions[ResolutionResolved] != 2 {
		t.Errorf("Unexpected resolutions %+v", res.Stats.Resolutions)
	}
	if res.Titles[1].Hit != nil || res.Titles[1].HasCover() {
		t.Error("Expected the unmatched title to skip holdings and covers")
	}
}

func TestRunCancelReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recs := numbered(6)
	m := slowMatcher{total: 0, onHit: func(rec models.InputRecord) {
		if rec.ISBN == "3" {
			cancel()
		}
	}}
	r := NewRunner(Deps{Matcher: m, Holdings: fixedHoldings{}, Covers: evenCovers{}})

	res, err := r.Run(ctx, recs, Options{Workers: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(res.Titles) >= len(recs) {
		t.Errorf("Expected a partial result, got %d titles", len(res.Titles))
	}
	for i := 1; i < len(res.Titles); i++ {
		if res.Titles[i].Index <= res.Titles[i-1].Index {
			t.Errorf("Expected ascending indexes, got %d after %d", res.Titles[i].Index, res.Titles[i-1].Index)
		}
	}
}

func TestRunConnectivity(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	r := NewRunner(Deps{
		Matcher:     slowMatcher{},
		Holdings:    fixedHoldings{},
		Covers:      evenCovers{},
		Probe:       probe.NewClient(probe.Options{}),
		PingURL:     url,
		PingTimeout: time.Second,
	})
	_, err := r.Run(context.Background(), numbered(2), Options{Workers: 1})
	if !errors.Is(err, ErrConnectivity) {
		t.Fatalf("Expected ErrConnectivity, got %v", err)
	}
}

// newStack wires the real stages against the fake catalogue
func newStack(srv *estertest.Server) *Runner {
	p := probe.NewClient(probe.Options{})
	c := catalog.NewClient(p, storage.New(), catalog.Options{
		BaseURL: srv.URL,
		EpikURL: srv.EpikURL(),
		Timeout: 5 * time.Second,
	})
	return NewRunner(Deps{
		Matcher:  match.NewResolver(c, match.Options{AcceptThreshold: 0.7, Margin: 0.1}),
		Holdings: holdings.NewExtractor(c, holdings.Options{}),
		Covers: covers.NewHunter(c, covers.Options{
			GoogleBooksURL:       srv.URL + "/img/gbcontent",
			GoogleBooksAPI:       srv.URL + "/books/v1/",
			OpenLibraryCoversURL: srv.URL + "/ol",
			OpenLibrarySearchURL: srv.URL + "/ol/search.json",
			GoogleImagesURL:      srv.URL + "/gimages",
		}),
		Probe:   p,
		PingURL: srv.URL,
	})
}

func TestRunUbikScenario(t *testing.T) {
	srv := estertest.NewServer()
	defer srv.Close()
	srv.AddBook(&estertest.Book{
		Bib: "b1784914", Title: "Ubik / Philip K. Dick", Author: "Dick, Philip K.",
		Copies: []estertest.Copy{{Location: "TlnRK Kadrioru", CallNumber: "821.111", Status: "KOHAL"}},
	})
	srv.AddSearch("t", "Ubik", "b1784914")

	res, err := newStack(srv).Run(context.Background(), []models.InputRecord{{Title: "Ubik", Author: "Dick, Philip K."}}, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	title := res.Titles[0]
	if title.Match != models.MatchResolved || title.Hit.BibID != "b1784914" {
		t.Fatalf("Expected b1784914 resolved, got %s (%+v)", title.Match, title.Trace)
	}
	if len(title.Holdings) != 1 || title.Holdings[0].Status.Kind != models.StatusAvailable {
		t.Errorf("Expected 1 available copy, got %+v", title.Holdings)
	}
	if res.Stats.NotFound != 1 {
		t.Errorf("Expected not-found 1, got %d", res.Stats.NotFound)
	}
}

func TestRunEighteenCopiesAndPlaceholderCover(t *testing.T) {
	srv := estertest.NewServer()
	defer srv.Close()
	var copies []estertest.Copy
	for i := 0; i < 18; i++ {
		copies = append(copies, estertest.Copy{Location: "TlnRK Haru " + strconv.Itoa(i), CallNumber: "894.545", Status: "KOHAL"})
	}
	srv.AddBook(&estertest.Book{
		Bib: "b3000001", Title: "Kevade / Oskar Luts", Author: "Luts, Oskar",
		ISBNs: []string{"9789985312345"}, Copies: copies,
	})
	srv.AddSearch("X", "9789985312345", "b3000001")
	srv.AddImage("gbcontent", 10549, "image/jpeg")

	res, err := newStack(srv).Run(context.Background(), []models.InputRecord{{Title: "Kevade", Author: "Oskar Luts", ISBN: "9789985312345"}}, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	title := res.Titles[0]
	if n := len(title.Available()); n != 18 {
		t.Errorf("Expected 18 available copies, got %d", n)
	}
	if title.Cover != nil {
		t.Errorf("Expected the placeholder to be rejected, got %+v", title.Cover)
	}
	if res.Stats.NotFound != 1 || res.Stats.CoversFound() != 0 {
		t.Errorf("Expected not-found 1 and no covers, got %+v", res.Stats)
	}
}

func TestRunIdempotent(t *testing.T) {
	srv := estertest.NewServer()
	defer srv.Close()
	srv.AddBook(&estertest.Book{
		Bib: "b1784914", Title: "Ubik / Philip K. Dick", Author: "Dick, Philip K.",
		Copies: []estertest.Copy{{Location: "RaRa", CallNumber: "821.111", Status: "TÄHTAEG 01-12-25"}},
	})
	srv.AddSearch("t", "Ubik", "b1784914")
	recs := []models.InputRecord{
		{Title: "Ubik", Author: "Dick, Philip K."},
		{Title: "Olematu raamat", Author: "Keegi"},
	}

	run := func() []models.ResolvedTitle {
		res, err := newStack(srv).Run(context.Background(), recs, Options{Workers: 2})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		for i := range res.Titles {
			res.Titles[i].Duration = 0
		}
		return res.Titles
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical runs:\n%+v\n%+v", first, second)
	}
}
