package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and drops whitespace and punctuation, the portal is
// inconsistent with both ("Tis Hazari", "TIS HAZARI ", "Tis-Hazari").
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

// CollapseSpace trims the string, removes non printable characters and
// collapses runs of whitespace into a single space.
func CollapseSpace(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)
	text = strings.TrimSpace(text)
	return whitespaceRegex.ReplaceAllString(text, " ")
}

type Match struct {
	Index      int
	Similarity float64
}

// BestMatch finds the candidate closest to want. An exact normalized match
// always wins, otherwise the candidate with the highest Jaro-Winkler
// similarity at or above threshold is returned. Index is -1 if nothing
// qualifies.
func BestMatch(want string, candidates []string, threshold float64) Match {
	normalizedWant := NormalizeName(want)
	if normalizedWant == "" {
		return Match{Index: -1}
	}

	for i, c := range candidates {
		if NormalizeName(c) == normalizedWant {
			return Match{Index: i, Similarity: 1}
		}
	}

	best := Match{Index: -1}
	for i, c := range candidates {
		normalized := NormalizeName(c)
		if normalized == "" {
			continue
		}
		sim := matchr.JaroWinkler(normalizedWant, normalized, false)
		if sim > best.Similarity {
			best = Match{Index: i, Similarity: sim}
		}
	}
	if best.Similarity < threshold {
		return Match{Index: -1, Similarity: best.Similarity}
	}
	return best
}
