package pdfarchive

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"causelist-backend/lib/timezone"
)

const (
	maxComplexRunes = 60
	maxJudgeRunes   = 80
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// sanitize keeps letters, digits, '.', '-' and '_', turns whitespace runs into
// a single '_' and drops everything else, including path separators and the
// characters Windows refuses (<>:"/\|?*).
func sanitize(s string, maxRunes int) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	s = strings.TrimSpace(s)
	s = spaceRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._-")

	runes := []rune(s)
	if len(runes) > maxRunes {
		s = strings.TrimRight(string(runes[:maxRunes]), "._-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

func textHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// FileName is the archive name of one judge's cause list. The hash is taken
// over the raw judge text so labels that sanitize identically, such as
// "Hon'ble" and "Honble", still get different files.
func FileName(date timezone.Date, complex, judge string) string {
	return fmt.Sprintf(
		"%s_%s_%s_%s.pdf",
		date.String(),
		sanitize(complex, maxComplexRunes),
		sanitize(judge, maxJudgeRunes),
		textHash(judge),
	)
}

// FileNames names a whole batch. Identical judge texts in one batch get
// numbered suffixes in order of appearance.
func FileNames(date timezone.Date, complex string, judges []string) []string {
	names := make([]string, len(judges))
	seen := map[string]int{}
	for i, judge := range judges {
		name := FileName(date, complex, judge)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d.pdf", strings.TrimSuffix(name, ".pdf"), n)
		}
		names[i] = name
	}
	return names
}
