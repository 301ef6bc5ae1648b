// Package entity normalizes organization names: boilerplate stripping,
// bracket and abbreviation extraction, search variations, specificity and
// structural equivalence.
package entity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketSpan = regexp.MustCompile(`\(([^)]*)\)|\[([^\]]*)\]`)
	nonWord     = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizedEntity is the full normalization result for one name.
type NormalizedEntity struct {
	Original      string   `json:"original"`
	Normalized    string   `json:"normalized"`
	Variations    []string `json:"variations"`
	Specificity   float64  `json:"specificity"`
	Abbreviations []string `json:"abbreviations"`
}

// Normalizer applies the normalization rules of one configuration snapshot.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	stopwordPhrases [][]string
	generic         map[string]struct{}
	stopwords       map[string]struct{}
	orgSuffixes     map[string]struct{}
	legalSuffixes   map[string]struct{}
	skipWords       map[string]struct{}
}

// NewNormalizer builds a normalizer from the normalization section of the
// matching document.
func NewNormalizer(rules matchconfig.NormalizationRules) *Normalizer {
	n := &Normalizer{
		generic:       wordSet(rules.GenericTerms),
		orgSuffixes:   wordSet(rules.OrganizationalSuffixes),
		legalSuffixes: wordSet(rules.LegalSuffixes),
		skipWords:     wordSet(rules.AbbreviationSkipWords),
		stopwords:     wordSet(rules.AbbreviationSkipWords),
	}

	for _, phrase := range rules.StopwordPhrases {
		tokens := strings.Fields(clean(phrase))
		if len(tokens) == 0 {
			continue
		}
		n.stopwordPhrases = append(n.stopwordPhrases, tokens)
		if len(tokens) == 1 {
			n.stopwords[tokens[0]] = struct{}{}
		}
	}
	// longest phrase first so "university of" wins over a bare "of"
	sort.SliceStable(n.stopwordPhrases, func(i, j int) bool {
		return len(n.stopwordPhrases[i]) > len(n.stopwordPhrases[j])
	})
	return n
}

// Normalize lowercases, folds accents, drops bracketed spans, strips the
// configured stopword phrases and collapses everything that is not a letter
// or digit into single spaces.
func (n *Normalizer) Normalize(text string) string {
	withoutBrackets := bracketSpan.ReplaceAllString(fold(text), " ")
	tokens := strings.Fields(clean(withoutBrackets))
	return strings.Join(n.stripPhrases(tokens), " ")
}

// ComparisonForm is the text the lexical algorithms see: the normalized form,
// or the cleaned text when normalization strips everything.
func (n *Normalizer) ComparisonForm(text string) string {
	if normalized := n.Normalize(text); normalized != "" {
		return normalized
	}
	return clean(text)
}

// NormalizeEntity runs every normalization step for text.
func (n *Normalizer) NormalizeEntity(text string) NormalizedEntity {
	b := n.ExtractBracketed(text)
	abbrs := b.Abbreviations
	if abbrs == nil {
		abbrs = []string{}
	}
	return NormalizedEntity{
		Original:      text,
		Normalized:    n.Normalize(text),
		Variations:    n.GenerateVariations(text),
		Specificity:   n.Specificity(text),
		Abbreviations: abbrs,
	}
}

func (n *Normalizer) stripPhrases(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		matched := 0
		for _, phrase := range n.stopwordPhrases {
			if hasPrefix(tokens[i:], phrase) {
				matched = len(phrase)
				break
			}
		}
		if matched > 0 {
			i += matched
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

func (n *Normalizer) isStopword(w string) bool {
	_, ok := n.stopwords[w]
	return ok
}

func (n *Normalizer) isGeneric(w string) bool {
	if _, ok := n.generic[w]; ok {
		return true
	}
	return n.isStopword(w)
}

func hasPrefix(tokens, phrase []string) bool {
	if len(tokens) < len(phrase) {
		return false
	}
	for i, p := range phrase {
		if tokens[i] != p {
			return false
		}
	}
	return true
}

// fold maps compatibility forms and transliterates to ASCII.
func fold(s string) string {
	return unidecode.Unidecode(norm.NFKC.String(s))
}

// clean folds, lowercases and reduces s to space-separated alphanumeric words.
func clean(s string) string {
	lowered := strings.ToLower(fold(s))
	return strings.TrimSpace(nonWord.ReplaceAllString(lowered, " "))
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if c := clean(w); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Clean folds, lowercases and reduces s to space-separated alphanumeric
// words without stripping any stopwords.
func Clean(s string) string {
	return clean(s)
}
