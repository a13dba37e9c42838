package holdings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// ParseError reports a holdings payload that did not have the expected
// shape. Fragment is the start of the offending input.
type ParseError struct {
	Source   string
	Fragment string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed holdings payload: %v (near %q)", e.Source, e.Err, e.Fragment)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Row is one holdings line before classification
type Row struct {
	Location   string
	CallNumber string
	Status     string
}

var (
	rowSelector = "#tab-copies tr[class*='bibItemsEntry'], .additionalCopies tr[class*='bibItemsEntry']"
	duePattern  = regexp.MustCompile(`(?:TÄHTAEG|DUE)\s*:?\s*(\d{1,2}[-.]\d{1,2}[-.]\d{2,4})`)
	dueLayouts  = []string{"02-01-06", "2-1-06", "02.01.2006", "2.1.2006", "02-01-2006", "02.01.06"}
	avPattern   = regexp.MustCompile(`(?i)\b(dvd|cd|blu-ray|vinüül|helisalvestis|videosalvestis|audio|heliraamat)\b`)
	eresPattern = regexp.MustCompile(`(?i)(võrguressurss|e-raamat|ebook|online|internet|www\.|digikogu)`)
	lostPattern = regexp.MustCompile(`KAOTATUD|MAHA ?KANTUD|PUUDUB`)
)

// ParseClassic reads the rows of a classic holdings page. A page without a
// holdings table yields no rows and no error.
func ParseClassic(body []byte) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: "classic", Fragment: fragment(body), Err: err}
	}
	var rows []Row
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 3 {
			return
		}
		rows = append(rows, Row{
			Location:   textnorm.Clean(tds.Eq(0).Text()),
			CallNumber: textnorm.Clean(tds.Eq(1).Text()),
			Status:     strings.ToUpper(textnorm.Clean(tds.Eq(2).Text())),
		})
	})
	return rows, nil
}

type epikRecord struct {
	Items []epikItem `json:"items"`
}

type epikItem struct {
	LibraryNameEst string `json:"libraryNameEst"`
	LibraryName    string `json:"libraryName"`
	StatusEst      string `json:"statusEst"`
	Status         string `json:"status"`
	CallNumber     string `json:"callNumber"`
}

// ParseEpik reads a getItemsByCodeList response: a list holding one object
// per requested code, each with an items array
func ParseEpik(body []byte) ([]Row, error) {
	var records []epikRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &ParseError{Source: "epik", Fragment: fragment(body), Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Source: "epik", Fragment: fragment(body), Err: fmt.Errorf("empty record list")}
	}
	var rows []Row
	for _, it := range records[0].Items {
		loc := it.LibraryNameEst
		if loc == "" {
			loc = it.LibraryName
		}
		status := it.StatusEst
		if status == "" {
			status = it.Status
		}
		rows = append(rows, Row{
			Location:   textnorm.Clean(loc),
			CallNumber: textnorm.Clean(it.CallNumber),
			Status:     strings.ToUpper(textnorm.Clean(status)),
		})
	}
	return rows, nil
}

// ParseStatus maps a status column to a HoldingStatus
func ParseStatus(raw string) models.HoldingStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	st := models.HoldingStatus{Kind: models.StatusUnknown, Raw: raw}
	switch {
	case strings.Contains(s, "KOHAL"):
		st.Kind = models.StatusAvailable
	case strings.Contains(s, "TÄHTAEG") || strings.HasPrefix(s, "DUE"):
		st.Kind = models.StatusDue
		if m := duePattern.FindStringSubmatch(s); m != nil {
			for _, layout := range dueLayouts {
				if t, err := time.Parse(layout, m[1]); err == nil {
					st.Due = t
					break
				}
			}
		}
	}
	return st
}

// Classify decides the carrier of a holdings row from its text
func Classify(r Row) models.MediaKind {
	text := r.Location + " " + r.CallNumber + " " + r.Status
	switch {
	case strings.TrimSpace(r.Location) == "":
		return models.MediaOtherNoise
	case lostPattern.MatchString(strings.ToUpper(r.Status)):
		return models.MediaOtherNoise
	case catalog.IsEResourceText(text) || eresPattern.MatchString(text):
		return models.MediaEResource
	case catalog.IsNonBookText(text) || avPattern.MatchString(text):
		return models.MediaAV
	default:
		return models.MediaPhysicalBook
	}
}

func toCopies(rows []Row, source string) (kept []models.HoldingCopy, dropped int) {
	for _, r := range rows {
		kind := Classify(r)
		if kind != models.MediaPhysicalBook {
			dropped++
			continue
		}
		kept = append(kept, models.HoldingCopy{
			Branch:     r.Location,
			CallNumber: r.CallNumber,
			Status:     ParseStatus(r.Status),
			MediaKind:  kind,
			Source:     source,
		})
	}
	return kept, dropped
}

func fragment(b []byte) string {
	const n = 120
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
