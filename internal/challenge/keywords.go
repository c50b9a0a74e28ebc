package challenge

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"has": {}, "have": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "with": {}, "for": {}, "to": {}, "of": {}, "and": {}, "or": {},
}

// IsStopWord reports whether w is ignored when extracting keywords.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// normalize lower-cases s after NFKC folding so full-width and composed forms compare equal.
// A Caser is not safe for concurrent use, so one is built per call.
func normalize(s string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Keywords extracts the keyword set of a reference answer: lower-cased,
// "." and "," removed, split on whitespace, stop words dropped. Order of first
// appearance is kept and duplicates are removed.
func Keywords(text string) []string {
	text = normalize(text)
	text = strings.NewReplacer(".", "", ",", "").Replace(text)

	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range strings.Fields(text) {
		if IsStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// tokens splits a learner answer into a set of lower-cased words with all punctuation removed.
func tokens(text string) map[string]struct{} {
	text = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, normalize(text))

	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		set[w] = struct{}{}
	}
	return set
}
