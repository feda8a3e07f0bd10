package knowledge

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinWordLength query words shorter than this are ignored
const MinWordLength = 3

// Match one chunk that shares at least one keyword with the query
type Match struct {
	// Index position of the chunk in the slice given to Search
	Index   int
	Score   int
	Content string
}

// QueryWords lower-cased words of at least MinWordLength runes, surrounding
// punctuation removed. Repeats are kept and count once each.
func QueryWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(w) >= MinWordLength {
			words = append(words, w)
		}
	}
	return words
}

// Score number of query words found as a substring of the lower-cased chunk
func Score(words []string, chunk string) int {
	lc := strings.ToLower(chunk)
	score := 0
	for _, w := range words {
		if strings.Contains(lc, w) {
			score++
		}
	}
	return score
}

// Search scores every chunk, drops zero scores and returns the topN best,
// highest first. Equal scores keep input order. topN <= 0 keeps all.
func Search(query string, chunks []string, topN int) []Match {
	words := QueryWords(query)
	if len(words) == 0 {
		return nil
	}

	var matches []Match
	for i, c := range chunks {
		if s := Score(words, c); s > 0 {
			matches = append(matches, Match{Index: i, Score: s, Content: c})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}
