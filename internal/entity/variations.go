package entity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// GenerateVariations returns the deduplicated, sorted set of search forms of
// text: the original, the main text, bracketed spans and abbreviations (as-is
// and lowercased), the generated abbreviation, the normalized text, the core
// text and the legal-suffix-stripped text.
func (n *Normalizer) GenerateVariations(text string) []string {
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			seen[s] = struct{}{}
		}
	}

	b := n.ExtractBracketed(text)
	add(text)
	add(b.Main)
	for _, span := range b.Bracketed {
		add(span)
		add(strings.ToLower(span))
	}
	for _, abbr := range b.Abbreviations {
		add(abbr)
		add(strings.ToLower(abbr))
	}
	if abbr, ok := n.GeneratedAbbreviation(text); ok {
		add(abbr)
	}
	add(n.Normalize(text))
	add(n.Core(text))
	add(n.StripLegalSuffixes(b.Main))

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Core is the normalized text with trailing organizational and legal
// suffixes removed. It falls back to the normalized text when nothing would
// remain.
func (n *Normalizer) Core(text string) string {
	normalized := n.Normalize(text)
	tokens := strings.Fields(normalized)
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		_, org := n.orgSuffixes[last]
		_, legal := n.legalSuffixes[last]
		if !org && !legal {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return normalized
	}
	return strings.Join(tokens, " ")
}

// StripLegalSuffixes removes trailing legal-form words such as "Inc." or
// "Ltd" and keeps the remaining text as written.
func (n *Normalizer) StripLegalSuffixes(text string) string {
	tokens := strings.Fields(text)
	for len(tokens) > 1 {
		last := clean(tokens[len(tokens)-1])
		if _, legal := n.legalSuffixes[last]; !legal {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.TrimRight(strings.Join(tokens, " "), " ,;")
}

// Specificity scores how distinctive a name is, in [0,1]. Longer names with
// fewer generic words score higher.
func (n *Normalizer) Specificity(text string) float64 {
	words := strings.Fields(clean(text))
	if len(words) == 0 {
		return 0
	}

	score := min(float64(len(words))*0.2, 1.0)

	generic := 0
	for _, w := range words {
		if n.isGeneric(w) {
			generic++
		}
	}
	score -= 0.7 * float64(generic) / float64(len(words))

	trimmed := strings.TrimSpace(text)
	score += min(float64(utf8.RuneCountInString(trimmed))/50, 0.3)

	if strings.ContainsFunc(trimmed, func(r rune) bool {
		return unicode.IsDigit(r) || r == '.' || r == '-'
	}) {
		score += 0.1
	}

	if utf8.RuneCountInString(n.Normalize(text)) < 5 {
		score /= 2
	}
	return clamp01(score)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
