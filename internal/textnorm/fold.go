// Package textnorm holds the string normalisation shared by the matcher,
// the catalogue client and the renderers: ASCII folding, tokenising,
// surname extraction and the catalogue's own query escaping.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespacePattern = regexp.MustCompile(`\s{2,}`)
	dashPattern       = regexp.MustCompile("[‐-―−]")
	trailingParens    = regexp.MustCompile(`\s*\(.*?\)\s*$`)
	anyParens         = regexp.MustCompile(`\s*\([^)]*\)`)
	nonAlnum          = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern       = regexp.MustCompile(`[^A-Z0-9]`)
)

// Fold strips diacritics and returns lowercase ASCII. Characters with no
// ASCII decomposition are dropped.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Squeeze collapses whitespace runs to one space
func Squeeze(s string) string {
	return whitespacePattern.ReplaceAllString(s, " ")
}

// NormDash replaces typographic dashes with '-'
func NormDash(s string) string {
	return dashPattern.ReplaceAllString(s, "-")
}

// StripParens removes a trailing "(…)" segment, typically a series name
func StripParens(s string) string {
	return strings.TrimSpace(trailingParens.ReplaceAllString(s, ""))
}

// StripAnyParens removes every "(…)" segment
func StripAnyParens(s string) string {
	return strings.TrimSpace(Squeeze(anyParens.ReplaceAllString(s, " ")))
}

// StripControl drops control and format characters
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// Clean is StripControl plus whitespace trimming and squeezing
func Clean(s string) string {
	return strings.TrimSpace(Squeeze(strings.Join(strings.Fields(StripControl(s)), " ")))
}

// Slug is the uppercase ASCII key used for branch lookups
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return slugPattern.ReplaceAllString(strings.ToUpper(folded), "")
}

// CatalogueEscape encodes non-ASCII runes the way the Sierra OPAC expects
// them in search arguments: "õ" becomes "{u00F5}".
func CatalogueEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "{u%04X}", r)
	}
	return b.String()
}

// Tokens returns the set of folded alphanumeric tokens in s
func Tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range nonAlnum.Split(Fold(s), -1) {
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

// Surname extracts a sort key from "Last, First" or "First Last"
func Surname(author string) string {
	a := Fold(author)
	var last string
	if i := strings.Index(a, ","); i >= 0 {
		last = a[:i]
	} else {
		parts := nonAlnum.Split(strings.TrimSpace(a), -1)
		for i := len(parts) - 1; i >= 0; i-- {
			if parts[i] != "" {
				last = parts[i]
				break
			}
		}
	}
	return nonAlnum.ReplaceAllString(last, "")
}

// SurnameParts returns the folded tokens of the surname portion of author
func SurnameParts(author string) []string {
	a := Fold(author)
	if i := strings.Index(a, ","); i >= 0 {
		a = a[:i]
	} else {
		fields := strings.Fields(a)
		if len(fields) == 0 {
			return nil
		}
		a = fields[len(fields)-1]
	}
	var out []string
	for _, tok := range nonAlnum.Split(a, -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
