// Package estertest provides an in-process fake of the ESTER catalogue,
// EPiK API and image hosts for tests.
package estertest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Copy is one holdings row
type Copy struct {
	Location   string
	CallNumber string
	Status     string
}

// Book is one bib record served by the fake
type Book struct {
	Bib     string
	Title   string
	Author  string
	ISBNs   []string
	Extra   string // extra physical-description text, e.g. "1 DVD"
	Copies  []Copy // rows on the classic holdings~ page
	Avail   []Copy // rows on the holdingsa~ page
	Epik    []Copy // items returned by getItemsByCodeList
	Images  []string
	EpikImg *EpikImage
}

// EpikImage is the getImagesByCodeList payload of one record
type EpikImage struct {
	ImageData string `json:"imageData,omitempty"`
	URLLarge  string `json:"urlLarge,omitempty"`
	URLSmall  string `json:"urlSmall,omitempty"`
}

// Image is a binary served under /img/
type Image struct {
	Size        int
	ContentType string
}

// Server is a fake catalogue. All fields are guarded by mu; use the
// setters while the server is running.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	books    map[string]*Book
	searches map[string][]string
	images   map[string]Image
	raw      map[string]string
	calls    map[string]int
	epikBody string
}

// NewServer starts a fake catalogue
func NewServer() *Server {
	s := &Server{
		books:    make(map[string]*Book),
		searches: make(map[string][]string),
		images:   make(map[string]Image),
		raw:      make(map[string]string),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddBook registers a record
func (s *Server) AddBook(b *Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.Bib] = b
}

// AddSearch registers the bibs returned for a search. searchType is "X" or
// "t"; arg is matched case-insensitively against the decoded searcharg.
// A single bib makes the catalogue redirect straight to the record.
func (s *Server) AddSearch(searchType, arg string, bibs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[searchType+"|"+strings.ToLower(arg)] = bibs
}

// AddImage registers an image of size bytes at /img/name
func (s *Server) AddImage(name string, size int, contentType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contentType == "" {
		contentType = "image/jpeg"
	}
	s.images["/img/"+name] = Image{Size: size, ContentType: contentType}
	return s.URL + "/img/" + name
}

// AddPage serves body verbatim at path (query included)
func (s *Server) AddPage(pathAndQuery, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[pathAndQuery] = body
}

// SetEpikBody overrides the getItemsByCodeList response body
func (s *Server) SetEpikBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epikBody = body
}

// Calls returns how many requests hit the named endpoint: "search:X",
// "search:t", "holdings", "holdingsa", "epik-items", "epik-images",
// "record", "iiif" or "img".
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// EpikURL is the base of the fake EPiK API
func (s *Server) EpikURL() string {
	return s.URL + "/api/data"
}

func (s *Server) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	raw, hasRaw := s.raw[r.URL.RequestURI()]
	img, hasImg := s.images[path]
	s.mu.Unlock()

	switch {
	case hasRaw:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, raw)
	case hasImg:
		s.count("img")
		w.Header().Set("Content-Type", img.ContentType)
		w.Header().Set("Content-Length", fmt.Sprint(img.Size))
		w.Write(make([]byte, img.Size))
	case strings.HasPrefix(path, "/search~S8*est/X"):
		s.search(w, r)
	case path == "/search~S8*est" && strings.Contains(r.URL.RawQuery, "holdingsa~"):
		s.count("holdingsa")
		s.holdings(w, r.URL.RawQuery, true)
	case path == "/search~S8*est" && strings.Contains(r.URL.RawQuery, "holdings~"):
		s.count("holdings")
		s.holdings(w, r.URL.RawQuery, false)
	case strings.HasPrefix(path, "/record="):
		s.count("record")
		s.record(w, path)
	case path == "/api/data/getItemsByCodeList":
		s.count("epik-items")
		s.epikItems(w, r)
	case path == "/api/data/getImagesByCodeList":
		s.count("epik-images")
		s.epikImages(w, r)
	case strings.HasPrefix(path, "/iiif/"):
		s.count("iiif")
		http.NotFound(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	searchType := q.Get("searchtype")
	s.count("search:" + searchType)

	s.mu.Lock()
	bibs := s.searches[searchType+"|"+strings.ToLower(q.Get("searcharg"))]
	s.mu.Unlock()

	if len(bibs) == 1 {
		http.Redirect(w, r, "/record="+bibs[0]+"~S8*est", http.StatusFound)
		return
	}

	var b strings.Builder
	b.WriteString("<html><body><table class=\"browseScreen\">")
	for _, bib := range bibs {
		s.mu.Lock()
		book := s.books[bib]
		s.mu.Unlock()
		title := bib
		if book != nil {
			title = book.Title
		}
		fmt.Fprintf(&b, `<tr class="briefCitRow"><td><a href="/record=%s~S8*est">%s</a></td></tr>`, bib, html.EscapeString(title))
	}
	if len(bibs) == 0 {
		b.WriteString(`<tr><td class="msg">EI LEITUD</td></tr>`)
	}
	b.WriteString("</table></body></html>")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, b.String())
}

func (s *Server) book(bib string) *Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bib]
}

func (s *Server) record(w http.ResponseWriter, path string) {
	bib := strings.TrimSuffix(strings.TrimPrefix(path, "/record="), "~S8*est")
	b := s.book(bib)
	if b == nil {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, RecordPage(b))
}

// RecordPage renders the record page of b the way the OPAC lays it out
func RecordPage(b *Book) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>ESTER</title>")
	sb.WriteString("</head><body><div id=\"bibDisplayContent\"><table class=\"bibDetail\">")
	if b.Author != "" {
		fmt.Fprintf(&sb, `<tr><td class="bibInfoLabel">Autor</td><td class="bibInfoData"><a href="/search~S8*est/a">%s</a></td></tr>`, html.EscapeString(b.Author))
	}
	fmt.Fprintf(&sb, `<tr><td class="bibInfoLabel">Pealkiri</td><td class="bibInfoData"><strong>%s</strong></td></tr>`, html.EscapeString(b.Title))
	for _, isbn := range b.ISBNs {
		fmt.Fprintf(&sb, `<tr><td class="bibInfoLabel">ISBN</td><td class="bibInfoData"><a href="/search~S8*est/i?isbn=%s">%s (köites)</a></td></tr>`, isbn, isbn)
	}
	if b.Extra != "" {
		fmt.Fprintf(&sb, `<tr><td class="bibInfoLabel">Füüsiline kirjeldus</td><td class="bibInfoData">%s</td></tr>`, html.EscapeString(b.Extra))
	}
	sb.WriteString("</table></div>")
	sb.WriteString(copiesTable(b.Copies))
	for _, src := range b.Images {
		fmt.Fprintf(&sb, `<img class="jacket" src="%s">`, src)
	}
	fmt.Fprintf(&sb, `<a href="/record=%s~S8*est">Püsilink</a>`, b.Bib)
	sb.WriteString("</body></html>")
	return sb.String()
}

func copiesTable(copies []Copy) string {
	if len(copies) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<table id="tab-copies"><tr class="bibItemsHeader"><th>Asukoht</th><th>Kohaviit</th><th>Staatus</th></tr>`)
	for _, c := range copies {
		fmt.Fprintf(&sb, `<tr class="bibItemsEntry"><td>%s</td><td>%s</td><td>%s</td></tr>`,
			html.EscapeString(c.Location), html.EscapeString(c.CallNumber), html.EscapeString(c.Status))
	}
	sb.WriteString("</table>")
	return sb.String()
}

func (s *Server) holdings(w http.ResponseWriter, rawQuery string, alt bool) {
	bib := ""
	if i := strings.Index(rawQuery, "/."); i >= 0 {
		rest := rawQuery[i+2:]
		if j := strings.Index(rest, "/"); j >= 0 {
			bib = rest[:j]
		}
	}
	b := s.book(bib)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if b == nil {
		fmt.Fprint(w, "<html><body>Kirjet ei leitud</body></html>")
		return
	}
	rows := b.Copies
	if alt {
		rows = b.Avail
	}
	fmt.Fprintf(w, "<html><body><h2 class=\"title\">%s</h2>%s</body></html>", html.EscapeString(b.Title), copiesTable(rows))
}

type epikItem struct {
	LibraryNameEst string `json:"libraryNameEst,omitempty"`
	StatusEst      string `json:"statusEst,omitempty"`
	CallNumber     string `json:"callNumber,omitempty"`
}

func (s *Server) epikItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	override := s.epikBody
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if override != "" {
		fmt.Fprint(w, override)
		return
	}

	var codes []string
	if err := json.NewDecoder(r.Body).Decode(&codes); err != nil || len(codes) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	items := []epikItem{}
	if b := s.book(codes[0]); b != nil {
		for _, c := range b.Epik {
			items = append(items, epikItem{LibraryNameEst: c.Location, StatusEst: c.Status, CallNumber: c.CallNumber})
		}
	}
	json.NewEncoder(w).Encode([]map[string]any{{"code": codes[0], "items": items}})
}

func (s *Server) epikImages(w http.ResponseWriter, r *http.Request) {
	var codes []string
	if err := json.NewDecoder(r.Body).Decode(&codes); err != nil || len(codes) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	payload := EpikImage{}
	if b := s.book(codes[0]); b != nil && b.EpikImg != nil {
		payload = *b.EpikImg
	}
	json.NewEncoder(w).Encode([]EpikImage{payload})
}
