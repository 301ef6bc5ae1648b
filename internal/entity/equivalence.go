package entity

import (
	"strings"
	"unicode/utf8"
)

// Equivalence match types, in precedence order.
const (
	MatchExact         = "exact"
	MatchMain          = "main_match"
	MatchAbbreviation  = "abbreviation_match"
	MatchAbbrToAbbr    = "abbr_to_abbr"
	MatchGeneratedAbbr = "generated_abbr_match"
	MatchCore          = "core_match"
	MatchWordOverlap   = "word_overlap"
	MatchNone          = "none"
)

const (
	wordOverlapThreshold    = 0.8
	wordOverlapConfidence   = 0.7
	minEquivalenceWordRunes = 3
)

// Equivalence is the outcome of a structural comparison of two names.
type Equivalence struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type"`
}

var noEquivalence = Equivalence{MatchType: MatchNone}

// AreEquivalent applies the structural checks in precedence order and
// returns the first that matches. The result does not depend on argument
// order.
func (n *Normalizer) AreEquivalent(a, b string) Equivalence {
	ta, tb := strings.TrimSpace(a), strings.TrimSpace(b)
	if ta == "" || tb == "" {
		return noEquivalence
	}
	if strings.EqualFold(ta, tb) {
		return Equivalence{IsMatch: true, Confidence: 1.0, MatchType: MatchExact}
	}

	ba, bb := n.ExtractBracketed(ta), n.ExtractBracketed(tb)
	mainA, mainB := n.Normalize(ba.Main), n.Normalize(bb.Main)
	if mainA == mainB && utf8.RuneCountInString(mainA) > 2 {
		return Equivalence{IsMatch: true, Confidence: 0.95, MatchType: MatchMain}
	}

	genA, okA := n.GeneratedAbbreviation(ta)
	genB, okB := n.GeneratedAbbreviation(tb)
	if (okA && containsFold(bb.Abbreviations, genA)) || (okB && containsFold(ba.Abbreviations, genB)) {
		return Equivalence{IsMatch: true, Confidence: 0.9, MatchType: MatchAbbreviation}
	}

	for _, abbr := range ba.Abbreviations {
		if containsFold(bb.Abbreviations, abbr) {
			return Equivalence{IsMatch: true, Confidence: 0.85, MatchType: MatchAbbrToAbbr}
		}
	}

	if okA && okB && genA == genB && len(genA) > 2 {
		return Equivalence{IsMatch: true, Confidence: 0.8, MatchType: MatchGeneratedAbbr}
	}

	coreA, coreB := n.Core(ta), n.Core(tb)
	if coreA == coreB && utf8.RuneCountInString(coreA) > 3 {
		return Equivalence{IsMatch: true, Confidence: 0.75, MatchType: MatchCore}
	}

	if overlap := n.wordJaccard(ta, tb); overlap > wordOverlapThreshold {
		return Equivalence{IsMatch: true, Confidence: overlap * wordOverlapConfidence, MatchType: MatchWordOverlap}
	}
	return noEquivalence
}

// ShouldSkipMatching reports whether text is too short or too generic to be
// matched at all.
func (n *Normalizer) ShouldSkipMatching(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 2 {
		return true
	}
	words := strings.Fields(clean(trimmed))
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if !n.isGeneric(w) {
			return false
		}
	}
	return true
}

// wordJaccard compares the sets of significant words: longer than two
// characters and not stopwords.
func (n *Normalizer) wordJaccard(a, b string) float64 {
	sa, sb := n.significantWords(a), n.significantWords(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

func (n *Normalizer) significantWords(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(clean(s)) {
		if utf8.RuneCountInString(w) < minEquivalenceWordRunes || n.isStopword(w) {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
