package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenMatchThreshold is the Levenshtein similarity at which two words are
// treated as the same word by the overlap helpers.
const TokenMatchThreshold = 0.8

// WordOverlap is the larger of the two directional fractions of words that
// find a close match on the other side. It is symmetric.
func WordOverlap(a, b string) float64 {
	wa, wb := uniqueWords(a), uniqueWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	fa := float64(matchedWords(wa, wb)) / float64(len(wa))
	fb := float64(matchedWords(wb, wa)) / float64(len(wb))
	return max(fa, fb)
}

// Coverage is the fraction of query words that find a close match in the
// candidate.
func Coverage(query, candidate string) float64 {
	wq, wc := uniqueWords(query), uniqueWords(candidate)
	if len(wq) == 0 {
		return 0
	}
	return float64(matchedWords(wq, wc)) / float64(len(wq))
}

// CharacterOverlap is the size of the rune multiset intersection divided by
// the longer rune count. Whitespace is ignored.
func CharacterOverlap(a, b string) float64 {
	ca, na := runeCounts(a)
	cb, nb := runeCounts(b)
	longest := max(na, nb)
	if longest == 0 {
		return 0
	}
	shared := 0
	for r, n := range ca {
		shared += min(n, cb[r])
	}
	return float64(shared) / float64(longest)
}

// LengthRatio is shorter/longer, measured in runes. Two empty strings give 1.
func LengthRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	return ratio(la, lb)
}

// WordCountRatio is the smaller word count over the larger.
func WordCountRatio(a, b string) float64 {
	return ratio(len(strings.Fields(a)), len(strings.Fields(b)))
}

func ratio(x, y int) float64 {
	if x == 0 && y == 0 {
		return 1
	}
	lo, hi := min(x, y), max(x, y)
	return float64(lo) / float64(hi)
}

func matchedWords(from, to []string) int {
	n := 0
	for _, w := range from {
		for _, o := range to {
			if w == o || LevenshteinSimilarity(w, o) >= TokenMatchThreshold {
				n++
				break
			}
		}
	}
	return n
}

func uniqueWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func runeCounts(s string) (map[rune]int, int) {
	counts := make(map[rune]int)
	total := 0
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		counts[r]++
		total++
	}
	return counts, total
}
