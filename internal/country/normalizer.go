// Package country resolves free-text country strings to canonical countries
// and derives the geographic relationship between two countries.
package country

import (
	"regexp"
	"strings"
	"sync"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/similarity"

	"github.com/mozillazg/go-unidecode"
)

// Match kinds.
const (
	KindExact   = "exact"
	KindISOCode = "iso_code"
	KindAlias   = "alias"
	KindFuzzy   = "fuzzy"
)

const (
	confidenceExact = 1.0
	confidenceISO   = 0.95
	confidenceAlias = 0.9

	// FuzzyFloor is the minimum raw similarity for a fuzzy match; the
	// reported confidence is the similarity scaled by FuzzyScale.
	FuzzyFloor = 0.8
	FuzzyScale = 0.8
)

var (
	dropped     = regexp.MustCompile(`['’.]`)
	punctuation = regexp.MustCompile(`[^a-z0-9\s]+`)
)

// Match is a resolved country. A Match is never produced below the fuzzy
// floor; absence is reported by the ok result instead.
type Match struct {
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
	Kind       string  `json:"kind"`
	Original   string  `json:"original"`
}

type entry struct {
	name     string
	key      string
	iso      []string
	aliases  []string
	region   string
	priority bool
}

type memoResult struct {
	match Match
	ok    bool
}

// Normalizer resolves country strings against one snapshot's country table.
// Results, including misses, are memoized by normalized input; the country
// space is small so the memo is unbounded.
type Normalizer struct {
	entries []entry
	byName  map[string]*entry
	factors matchconfig.GeographicFactors
	memo    sync.Map // normalized input -> memoResult
}

// NewNormalizer indexes the snapshot's country table.
func NewNormalizer(snap *matchconfig.Snapshot) *Normalizer {
	n := &Normalizer{
		byName:  make(map[string]*entry, len(snap.Countries.Countries)),
		factors: snap.Geographic(),
	}
	n.entries = make([]entry, 0, len(snap.Countries.Countries))
	for _, c := range snap.Countries.Countries {
		e := entry{
			name:     c.Name,
			key:      Clean(c.Name),
			region:   c.Region,
			priority: c.Priority,
		}
		for _, code := range c.ISOCodes {
			if k := Clean(code); k != "" {
				e.iso = append(e.iso, k)
			}
		}
		for _, alias := range c.Aliases {
			if k := Clean(alias); k != "" {
				e.aliases = append(e.aliases, k)
			}
		}
		n.entries = append(n.entries, e)
	}
	for i := range n.entries {
		if _, dup := n.byName[n.entries[i].key]; !dup {
			n.byName[n.entries[i].key] = &n.entries[i]
		}
	}
	return n
}

// Clean lowercases, folds accents, trims, strips punctuation and collapses
// whitespace. Apostrophes and periods are removed outright so "U.S.A." reads
// as "usa".
func Clean(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))
	s = dropped.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize resolves input to a canonical country.
func (n *Normalizer) Normalize(input string) (Match, bool) {
	key := Clean(input)
	if key == "" {
		return Match{}, false
	}
	if cached, ok := n.memo.Load(key); ok {
		r := cached.(memoResult)
		r.match.Original = input
		return r.match, r.ok
	}

	m, ok := n.resolve(key)
	n.memo.Store(key, memoResult{match: m, ok: ok})
	m.Original = input
	return m, ok
}

func (n *Normalizer) resolve(key string) (Match, bool) {
	var (
		best     Match
		bestPrio bool
		found    bool
	)
	for i := range n.entries {
		e := &n.entries[i]
		conf, kind := e.score(key)
		if kind == "" {
			continue
		}
		// higher confidence wins; on a tie a priority country beats a
		// non-priority one, otherwise the first declared stays
		if !found || conf > best.Confidence || (conf == best.Confidence && e.priority && !bestPrio) {
			best = Match{Canonical: e.name, Confidence: conf, Kind: kind}
			bestPrio = e.priority
			found = true
		}
	}
	return best, found
}

// score returns the best match kind of key against one country.
func (e *entry) score(key string) (float64, string) {
	if key == e.key {
		return confidenceExact, KindExact
	}
	for _, code := range e.iso {
		if key == code {
			return confidenceISO, KindISOCode
		}
	}
	for _, alias := range e.aliases {
		if key == alias {
			return confidenceAlias, KindAlias
		}
	}

	bestSim := similarity.LevenshteinSimilarity(key, e.key)
	for _, alias := range e.aliases {
		bestSim = max(bestSim, similarity.LevenshteinSimilarity(key, alias))
	}
	if bestSim > FuzzyFloor {
		return bestSim * FuzzyScale, KindFuzzy
	}
	return 0, ""
}

// Size returns the number of memoized inputs.
func (n *Normalizer) Size() int {
	count := 0
	n.memo.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
