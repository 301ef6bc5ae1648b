// Package similarity holds the string similarity algorithms used by the
// matching engine. Every function is pure: no shared state, no mutation of
// its inputs, safe to call from any number of goroutines.
package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
	"github.com/xrash/smetrics"
)

// Algorithm names as they appear in the algorithm weights document.
const (
	Exact       = "exact"
	Levenshtein = "levenshtein"
	JaroWinkler = "jaro_winkler"
	Jaccard     = "jaccard"
	NGram       = "ngram"
	Soundex     = "soundex"
	Metaphone   = "metaphone"
)

// DefaultNGramSize is used when the weights document does not set ngram_size.
const DefaultNGramSize = 3

// Func scores two strings in [0,1].
type Func func(a, b string) float64

var jaroWinkler = func() *metrics.JaroWinkler {
	m := metrics.NewJaroWinkler()
	m.CaseSensitive = false
	return m
}()

// Registry returns every known algorithm keyed by its configuration name.
func Registry(ngramSize int) map[string]Func {
	return map[string]Func{
		Exact:       ExactMatch,
		Levenshtein: LevenshteinSimilarity,
		JaroWinkler: JaroWinklerSimilarity,
		Jaccard:     WordJaccard,
		NGram:       NGramJaccard(ngramSize),
		Soundex:     SoundexSimilarity,
		Metaphone:   MetaphoneSimilarity,
	}
}

// Names returns the sorted list of known algorithm names.
func Names() []string {
	names := make([]string, 0, 7)
	for name := range Registry(DefaultNGramSize) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a registered algorithm.
func Known(name string) bool {
	_, ok := Registry(DefaultNGramSize)[name]
	return ok
}

// ExactMatch is 1 for case-insensitive equality, 0 otherwise.
func ExactMatch(a, b string) float64 {
	if strings.EqualFold(a, b) {
		return 1
	}
	return 0
}

// LevenshteinSimilarity is 1 - distance/max(len(a), len(b)), measured in runes.
func LevenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// JaroWinklerSimilarity is the case-insensitive Jaro-Winkler similarity.
func JaroWinklerSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	// fixed argument order keeps the greedy match window symmetric
	if a > b {
		a, b = b, a
	}
	return strutil.Similarity(a, b, jaroWinkler)
}

// WordJaccard is |A∩B| / |A∪B| over the whitespace-separated word sets.
func WordJaccard(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NGramJaccard returns a Jaccard similarity over character n-grams of size n.
func NGramJaccard(n int) Func {
	if n <= 0 {
		n = DefaultNGramSize
	}
	m := metrics.NewJaccard()
	m.CaseSensitive = false
	m.NgramSize = n
	return func(a, b string) float64 {
		if a == b {
			return 1
		}
		if a == "" || b == "" {
			return 0
		}
		return strutil.Similarity(a, b, m)
	}
}

// SoundexSimilarity compares the sets of Soundex codes of both word lists.
func SoundexSimilarity(a, b string) float64 {
	return codeJaccard(soundexCodes(a), soundexCodes(b))
}

// MetaphoneSimilarity compares the sets of Double Metaphone codes (primary
// and secondary) of both word lists.
func MetaphoneSimilarity(a, b string) float64 {
	return codeJaccard(metaphoneCodes(a), metaphoneCodes(b))
}

func soundexCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		// smetrics.Soundex indexes the first byte unconditionally
		if w[0] < 'a' || w[0] > 'z' {
			continue
		}
		codes[smetrics.Soundex(w)] = struct{}{}
	}
	return codes
}

func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToUpper(s)) {
		p, sec := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

func codeJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == len(b) {
			return 1
		}
		return 0
	}
	inter := 0
	for c := range a {
		if _, ok := b[c]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
