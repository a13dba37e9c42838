package shelf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

const exportCSV = `Book Id,Title,Author,ISBN,ISBN13,Exclusive Shelf
1,Ubik,Philip K. Dick,"=""0547572298""","=""9780547572291""",to-read
2,Dune,Frank Herbert,,,read
3,"Kevade",Oskar Luts,"=""""","=""""",to-read
4,Tõde ja õigus,A. H. Tammsaare,"=""9985100123""","=""""",to-read
`

func TestReadCSV(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(exportCSV), 0)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	want := []models.InputRecord{
		{Title: "Ubik", Author: "Philip K. Dick", ISBN: "9780547572291"},
		{Title: "Kevade", Author: "Oskar Luts"},
		{Title: "Tõde ja õigus", Author: "A. H. Tammsaare", ISBN: "9985100123"},
	}
	if len(recs) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(recs), recs)
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("Expected %+v, got %+v", want[i], recs[i])
		}
	}
}

func TestReadCSVLimit(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader(exportCSV), 2)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(recs) != 2 || recs[1].Title != "Kevade" {
		t.Errorf("Expected the first 2 to-read records, got %+v", recs)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("Name,ISBN\nx,y\n"), 0); err == nil {
		t.Error("Expected an error for a csv without Title/Author")
	}
}

func shelfRow(id int, title, author, isbn string) string {
	return fmt.Sprintf(`<tr id="review_%d"><td class="field title"><a href="/book/%d">
  %s
</a></td><td class="field author"><a href="/author/%d">%s</a></td>
<td class="field isbn13"><div class="value"><span class="greyText">13</span>%s</div></td></tr>`, id, id, title, id, author, isbn)
}

func TestParseShelfPage(t *testing.T) {
	page := "<html><body><table>" +
		shelfRow(1, "Ubik", "Dick, Philip K.", "9780547572291") +
		shelfRow(2, "Solaris", "Lem, Stanisław", "") +
		"</table></body></html>"
	recs, err := ParseShelfPage([]byte(page))
	if err != nil {
		t.Fatalf("ParseShelfPage failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].ISBN != "9780547572291" || recs[0].Title != "Ubik" {
		t.Errorf("Unexpected first record %+v", recs[0])
	}
	if recs[1].ISBN != "" {
		t.Errorf("Expected no ISBN, got %q", recs[1].ISBN)
	}
}

func TestScraperWalksPages(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.UserAgent())
		if r.URL.Path != "/review/list/42-reader" || r.URL.Query().Get("shelf") != "to-read" {
			http.NotFound(w, r)
			return
		}
		body := "<table>"
		switch r.URL.Query().Get("page") {
		case "1":
			body += shelfRow(1, "Ubik", "Dick, Philip K.", "9780547572291") + shelfRow(2, "Solaris", "Lem, Stanisław", "")
		case "2":
			body += shelfRow(3, "Kevade", "Luts, Oskar", "")
		}
		fmt.Fprint(w, body+"</table>")
	}))
	defer srv.Close()

	s := NewScraper(probe.NewClient(probe.Options{}), srv.URL+"/review/list", time.Second)
	recs, err := s.Load(context.Background(), "42-reader", 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 3 || recs[2].Title != "Kevade" {
		t.Errorf("Expected 3 records across 2 pages, got %+v", recs)
	}
	if len(agents) != 3 || agents[0] != probe.DefaultUserAgent {
		t.Errorf("Expected 3 requests with the tool user agent, got %v", agents)
	}

	recs, err = s.Load(context.Background(), "42-reader", 1)
	if err != nil || len(recs) != 1 {
		t.Errorf("Expected 1 record with limit, got %d (%v)", len(recs), err)
	}
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	want := []models.InputRecord{
		{Title: "Ubik", Author: "Dick, Philip K.", ISBN: "9780547572291"},
		{Title: "Kevade", Author: "Luts, Oskar"},
	}

	jsonl := filepath.Join(dir, "shelf.jsonl")
	content := `{"title":"Ubik","author":"Dick, Philip K.","isbn":"9780547572291"}` + "\n\n" + `{"title":"Kevade","author":"Luts, Oskar"}` + "\n"
	if err := os.WriteFile(jsonl, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	pq := filepath.Join(dir, "shelf.parquet")
	if err := parquet.WriteFile(pq, want); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{jsonl, pq} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			recs, err := LoadFile(path, 0)
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if len(recs) != 2 || recs[0] != want[0] || recs[1] != want[1] {
				t.Errorf("Expected %+v, got %+v", want, recs)
			}
			recs, _ = LoadFile(path, 1)
			if len(recs) != 1 {
				t.Errorf("Expected limit 1, got %d", len(recs))
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "shelf.xlsx"), 0); err == nil {
		t.Error("Expected an error for an unsupported extension")
	}
}
