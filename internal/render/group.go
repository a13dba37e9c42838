// Package render writes the HTML artefacts of a run: the branch map, the
// cover gallery and the debug snapshots of empty holdings pages.
package render

import (
	"fmt"
	"sort"

	"github.com/codeyoulateralligator/goodreader/internal/branches"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// Entry is one wanted title on the shelf of one branch
type Entry struct {
	Author    string
	Title     string
	RecordURL string
	CoverURL  string
	Copies    int
}

// Display is the "Author – Title" line, with a copy counter when there is
// more than one copy
func (e Entry) Display() string {
	s := e.Author + " – " + e.Title
	if e.Copies > 1 {
		s += fmt.Sprintf(" (%d×)", e.Copies)
	}
	return s
}

// Branch is a place with the titles currently available there
type Branch struct {
	Place   branches.Place
	Entries []Entry
}

// Colour is the marker colour for the branch
func (b Branch) Colour() string {
	return branches.MarkerColour(len(b.Entries))
}

// GroupAvailable collects the AVAILABLE copies of every title by branch.
// Entries are sorted by author surname and branches by name.
func GroupAvailable(titles []models.ResolvedTitle) []Branch {
	index := make(map[string]*Branch)
	var order []string
	for _, t := range titles {
		counts := make(map[string]int)
		var keys []string
		for _, c := range t.Available() {
			p := branches.Resolve(c.Branch)
			k := p.Key()
			if _, ok := index[k]; !ok {
				index[k] = &Branch{Place: p}
				order = append(order, k)
			}
			if counts[k] == 0 {
				keys = append(keys, k)
			}
			counts[k]++
		}
		for _, k := range keys {
			e := Entry{Author: t.Record.Author, Title: t.Record.Title, Copies: counts[k]}
			if t.Hit != nil {
				e.RecordURL = t.Hit.RecordURL
			}
			if t.Cover != nil {
				e.CoverURL = t.Cover.URL
			}
			index[k].Entries = append(index[k].Entries, e)
		}
	}

	out := make([]Branch, 0, len(order))
	for _, k := range order {
		b := index[k]
		sort.SliceStable(b.Entries, func(i, j int) bool {
			return textnorm.Surname(b.Entries[i].Author) < textnorm.Surname(b.Entries[j].Author)
		})
		out = append(out, *b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Place.Name < out[j].Place.Name })
	return out
}

// Places lists the distinct places of groups
func Places(groups []Branch) []branches.Place {
	out := make([]branches.Place, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Place)
	}
	return out
}
