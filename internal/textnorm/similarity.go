package textnorm

import (
	"regexp"
	"strings"
)

var (
	glidePattern     = regexp.MustCompile(`[jy][eo]v`)
	skFamily         = regexp.MustCompile(`(sky|ski|skij|skyi)$`)
	lettersOnly      = regexp.MustCompile(`[^a-z]`)
	multiGraphs      = strings.NewReplacer("oe", "o", "yo", "o", "jo", "o", "io", "o", "ya", "a", "ja", "a", "ё", "o", "œ", "o")
	consonantClasses = strings.NewReplacer(
		"tsch", "c", "tch", "c", "ch", "c", "sch", "s", "sh", "s", "zh", "s",
		"kh", "h", "ph", "f", "ck", "k", "w", "v", "z", "s", "q", "k", "x", "ks",
	)
)

// CanonName reduces a surname to a short phonetic skeleton so that common
// transliteration variants collide: Dostoevsky, Dostojevski and Dostoyevsky
// all give the same key.
func CanonName(token string) string {
	s := strings.ToLower(token)
	s = glidePattern.ReplaceAllString(s, "ev")
	s = multiGraphs.Replace(s)
	s = Fold(s)
	s = skFamily.ReplaceAllString(s, "sk")
	s = lettersOnly.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}
	s = consonantClasses.Replace(s)

	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && strings.ContainsRune("aeiouyjh", r) {
			continue
		}
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Similarity returns 1 - normalised Levenshtein distance of the folded strings
func Similarity(a, b string) float64 {
	a = strings.Join(strings.Fields(Fold(a)), " ")
	b = strings.Join(strings.Fields(Fold(b)), " ")
	if a == b {
		return 1
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// levenshteinDistance calculates the Levenshtein distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
