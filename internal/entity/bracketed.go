package entity

import (
	"regexp"
	"strings"
	"unicode"
)

var abbreviationPattern = regexp.MustCompile(`^[A-Z]{2,8}$`)

// Generated abbreviations are only produced for names of this many
// significant words.
const (
	minAbbreviationWords = 2
	maxAbbreviationWords = 6
)

// Bracketed splits a name into its main text and bracketed spans.
type Bracketed struct {
	Main          string   `json:"main"`
	Bracketed     []string `json:"bracketed"`
	Abbreviations []string `json:"abbreviations"`
}

// ExtractBracketed pulls every (...) and [...] span out of text. A span is an
// abbreviation when it is 2 to 8 uppercase letters; so is a main text that
// consists of one such token, e.g. "MIT".
func (n *Normalizer) ExtractBracketed(text string) Bracketed {
	var out Bracketed
	for _, m := range bracketSpan.FindAllStringSubmatch(text, -1) {
		span := strings.TrimSpace(m[1] + m[2])
		if span == "" {
			continue
		}
		out.Bracketed = append(out.Bracketed, span)
		if abbreviationPattern.MatchString(span) {
			out.Abbreviations = appendUnique(out.Abbreviations, span)
		}
	}
	out.Main = strings.Join(strings.Fields(bracketSpan.ReplaceAllString(text, " ")), " ")
	if abbreviationPattern.MatchString(out.Main) {
		out.Abbreviations = appendUnique(out.Abbreviations, out.Main)
	}
	return out
}

// GeneratedAbbreviation builds an uppercase acronym from the first letter of
// each significant word of the main text. ok is false when the name has fewer
// than 2 or more than 6 significant words.
func (n *Normalizer) GeneratedAbbreviation(text string) (abbr string, ok bool) {
	main := n.ExtractBracketed(text).Main
	var sb strings.Builder
	count := 0
	for _, w := range strings.Fields(clean(main)) {
		if _, skip := n.skipWords[w]; skip {
			continue
		}
		if _, legal := n.legalSuffixes[w]; legal {
			continue
		}
		r := []rune(w)[0]
		if !unicode.IsLetter(r) {
			continue
		}
		sb.WriteRune(unicode.ToUpper(r))
		count++
	}
	if count < minAbbreviationWords || count > maxAbbreviationWords {
		return "", false
	}
	return sb.String(), true
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
