package models

import (
	"strings"
	"time"
)

// InputRecord is one row of the reading list
type InputRecord struct {
	Title  string `json:"title" yaml:"title" parquet:"title"`
	Author string `json:"author" yaml:"author" parquet:"author"`
	ISBN   string `json:"isbn,omitempty" yaml:"isbn,omitempty" parquet:"isbn,optional"`
}

// HasISBN reports whether the record carries an ISBN
func (r InputRecord) HasISBN() bool {
	return strings.TrimSpace(r.ISBN) != ""
}

// Label is the "Author – Title" line used in logs and summaries
func (r InputRecord) Label() string {
	line := r.Author + " – " + r.Title
	if r.HasISBN() {
		line += " (ISBN " + r.ISBN + ")"
	}
	return line
}

// Strategy names a catalogue probe strategy. Order of the constants is priority order.
type Strategy string

const (
	StrategyISBN       Strategy = "isbn-exact"
	StrategyTitleIndex Strategy = "title-index"
	StrategyKeyword    Strategy = "keyword"
)

// Priority returns the cascade position of the strategy (lower is tried first)
func (s Strategy) Priority() int {
	switch s {
	case StrategyISBN:
		return 0
	case StrategyTitleIndex:
		return 1
	case StrategyKeyword:
		return 2
	default:
		return 99
	}
}

// ProbeQuery is one search issued against the catalogue
type ProbeQuery struct {
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Term     string   `json:"term" yaml:"term"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// CatalogueHit is one candidate record returned by a probe
type CatalogueHit struct {
	RecordURL      string   `json:"record_url" yaml:"record_url"`
	Snippet        string   `json:"snippet" yaml:"snippet"`
	Strategy       Strategy `json:"strategy" yaml:"strategy"`
	BibID          string   `json:"bib_id" yaml:"bib_id"`
	Title          string   `json:"title" yaml:"title"`
	Author         string   `json:"author" yaml:"author"`
	ISBNs          []string `json:"isbns,omitempty" yaml:"isbns,omitempty"`
	HoldingsListed int      `json:"holdings_listed" yaml:"holdings_listed"`
}

// StatusKind is the availability of one copy
type StatusKind string

const (
	StatusAvailable StatusKind = "AVAILABLE"
	StatusDue       StatusKind = "DUE"
	StatusUnknown   StatusKind = "UNKNOWN"
)

// HoldingStatus is the parsed status column of a holdings row
type HoldingStatus struct {
	Kind StatusKind `json:"kind" yaml:"kind"`
	Due  time.Time  `json:"due,omitempty" yaml:"due,omitempty"`
	Raw  string     `json:"raw" yaml:"raw"`
}

// MediaKind classifies the carrier of a holdings row
type MediaKind string

const (
	MediaPhysicalBook MediaKind = "PHYSICAL_BOOK"
	MediaEResource    MediaKind = "E_RESOURCE"
	MediaAV           MediaKind = "AV_MEDIA"
	MediaOtherNoise   MediaKind = "OTHER_NOISE"
)

// HoldingCopy is one physical copy at one branch
type HoldingCopy struct {
	Branch     string        `json:"branch" yaml:"branch"`
	CallNumber string        `json:"call_number,omitempty" yaml:"call_number,omitempty"`
	Status     HoldingStatus `json:"status" yaml:"status"`
	MediaKind  MediaKind     `json:"media_kind" yaml:"media_kind"`
	Source     string        `json:"source" yaml:"source"` // "classic" or "epik"
}

// CoverSource tags where a cover image came from
type CoverSource string

const (
	CoverInline       CoverSource = "inline"
	CoverAvalanche    CoverSource = "avalanche-iiif"
	CoverGoogleBooks  CoverSource = "google-books"
	CoverOpenLibrary  CoverSource = "openlibrary"
	CoverGoogleImages CoverSource = "google-images"
)

// CoverSources lists the sources in cascade order
var CoverSources = []CoverSource{CoverInline, CoverAvalanche, CoverGoogleBooks, CoverOpenLibrary, CoverGoogleImages}

// CoverCandidate is an image URL with its probed size
type CoverCandidate struct {
	Source   CoverSource `json:"source" yaml:"source"`
	URL      string      `json:"url" yaml:"url"`
	ByteSize int64       `json:"byte_size" yaml:"byte_size"`
}

// MatchKind is the terminal state of the match resolver
type MatchKind string

const (
	MatchResolved  MatchKind = "resolved"
	MatchNone      MatchKind = "no-match"
	MatchAmbiguous MatchKind = "ambiguous"
	MatchRejected  MatchKind = "rejected"
)

// MatchOutcome is the result of resolving one record
type MatchOutcome struct {
	Kind   MatchKind     `json:"kind" yaml:"kind"`
	Hit    *CatalogueHit `json:"hit,omitempty" yaml:"hit,omitempty"`
	Reason string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Trace  []TraceEntry  `json:"trace,omitempty" yaml:"trace,omitempty"`
}

// TraceEntry records one attempt of one pipeline stage
type TraceEntry struct {
	Stage   string `json:"stage" yaml:"stage"` // match, holdings, cover
	Step    string `json:"step" yaml:"step"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// ResolvedTitle is everything the pipeline learned about one input record
type ResolvedTitle struct {
	Index    int             `json:"index" yaml:"index"`
	Record   InputRecord     `json:"record" yaml:"record"`
	Match    MatchKind       `json:"match" yaml:"match"`
	Hit      *CatalogueHit   `json:"hit,omitempty" yaml:"hit,omitempty"`
	Holdings []HoldingCopy   `json:"holdings,omitempty" yaml:"holdings,omitempty"`
	Cover    *CoverCandidate `json:"cover,omitempty" yaml:"cover,omitempty"`
	Trace    []TraceEntry    `json:"trace,omitempty" yaml:"trace,omitempty"`
	Snapshot []byte          `json:"-" yaml:"-"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
}

// HasHoldings reports whether at least one physical copy survived filtering
func (t ResolvedTitle) HasHoldings() bool {
	return len(t.Holdings) > 0
}

// HasCover reports whether a cover candidate was accepted
func (t ResolvedTitle) HasCover() bool {
	return t.Cover != nil
}

// Available returns the copies currently on the shelf
func (t ResolvedTitle) Available() []HoldingCopy {
	var out []HoldingCopy
	for _, h := range t.Holdings {
		if h.Status.Kind == StatusAvailable {
			out = append(out, h)
		}
	}
	return out
}
