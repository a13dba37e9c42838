package match

import (
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

const (
	titleWeight  = 0.6
	authorWeight = 0.4
)

// Score compares a catalogue hit with the wanted record. 1 is a perfect
// match.
func Score(rec models.InputRecord, hit models.CatalogueHit) float64 {
	return titleWeight*TitleScore(rec.Title, hit) + authorWeight*AuthorScore(rec.Author, hit)
}

// TitleScore is mostly coverage of the wanted title tokens by the record's
// title and author tokens, with a small precision term against the main
// title so that "Dune" prefers "Dune" over "Dune messias".
func TitleScore(wantedTitle string, hit models.CatalogueHit) float64 {
	wanted := textnorm.Tokens(textnorm.StripParens(wantedTitle))
	if len(wanted) == 0 {
		return 1
	}
	record := union(textnorm.Tokens(hit.Title), textnorm.Tokens(hit.Author))
	main := textnorm.Tokens(mainTitle(hit.Title))

	var coverage float64
	if len(wanted) == 1 {
		// single-word titles must open the record title
		var word string
		for w := range wanted {
			word = w
		}
		if opensWith(strings.TrimLeft(textnorm.Fold(hit.Title), " "), word) {
			coverage = 1
		}
	} else {
		coverage = float64(overlap(wanted, record)) / float64(len(wanted))
	}

	precision := 0.0
	if len(main) > 0 {
		precision = float64(overlap(wanted, main)) / float64(len(main))
	}
	return 0.8*coverage + 0.2*precision
}

// AuthorScore is 1 when every canonical surname code of the wanted author
// appears among the record's tokens, else the best string similarity of the
// surname to any record author token
func AuthorScore(wantedAuthor string, hit models.CatalogueHit) float64 {
	parts := textnorm.SurnameParts(wantedAuthor)
	if len(parts) == 0 {
		return 1
	}
	record := union(textnorm.Tokens(hit.Title), textnorm.Tokens(hit.Author))

	codes := make(map[string]struct{}, len(record))
	for tok := range record {
		codes[textnorm.CanonName(tok)] = struct{}{}
	}
	all := true
	for _, p := range parts {
		if _, ok := codes[textnorm.CanonName(p)]; !ok {
			all = false
			break
		}
	}
	if all {
		return 1
	}

	surname := strings.Join(parts, "")
	best := 0.0
	for tok := range textnorm.Tokens(hit.Author) {
		if s := textnorm.Similarity(surname, tok); s > best {
			best = s
		}
	}
	return best
}

// opensWith reports whether the folded title starts with word as a whole word
func opensWith(folded, word string) bool {
	rest, ok := strings.CutPrefix(folded, word)
	if !ok {
		return false
	}
	if rest == "" {
		return true
	}
	c := rest[0]
	return !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
}

// mainTitle drops the statement of responsibility ("Ubik / Philip K. Dick")
func mainTitle(title string) string {
	if i := strings.Index(title, " / "); i >= 0 {
		return title[:i]
	}
	return title
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
