package matchconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by the typed accessors when a value is omitted.
const (
	DefaultSameCountryBoost       = 1.10
	DefaultSameRegionBoost        = 1.05
	DefaultDifferentRegionPenalty = 0.90

	DefaultExactThreshold    = 0.95
	DefaultAliasThreshold    = 0.85
	DefaultFuzzyThreshold    = 0.70
	DefaultSemanticThreshold = 0.55

	DefaultMaxCandidates  = 50
	DefaultMaxConcurrency = 8
	DefaultCacheTTL       = time.Hour
	DefaultMaxEntries     = 10000
)

// Snapshot is an immutable view of the three documents after overrides.
// Nothing holding a *Snapshot may modify it; reloads build a new one.
type Snapshot struct {
	Matching   MatchingDocument
	Countries  CountriesDocument
	Algorithms AlgorithmsDocument

	// Version is a stable stamp over the parsed documents, used in cache keys.
	Version  string
	LoadedAt time.Time
	Origins  map[Domain]string

	raw       map[Domain]map[string]any
	overrides []string
}

// Build loads and decodes the documents. It fails only on unreadable or
// malformed input; semantic problems are reported by Validate.
func Build(src Sources, lookup LookupEnvFunc) (*Snapshot, error) {
	s := &Snapshot{
		LoadedAt: time.Now(),
		Origins:  make(map[Domain]string, len(Domains)),
		raw:      make(map[Domain]map[string]any, len(Domains)),
	}

	h := sha256.New()
	for _, d := range Domains {
		data, origin, err := readDocument(src, d)
		if err != nil {
			return nil, err
		}
		raw, applied, err := parseRaw(d, data, lookup)
		if err != nil {
			return nil, err
		}

		var target any
		switch d {
		case DomainMatching:
			target = &s.Matching
		case DomainCountries:
			target = &s.Countries
		case DomainAlgorithms:
			target = &s.Algorithms
		}
		if err := decodeStrict(d, raw, target); err != nil {
			return nil, err
		}

		canonical, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode %s document: %w", d, err)
		}
		fmt.Fprintf(h, "%s\n", d)
		h.Write(canonical)

		s.raw[d] = raw
		s.Origins[d] = origin
		s.overrides = append(s.overrides, applied...)
	}
	sort.Strings(s.overrides)
	s.Version = hex.EncodeToString(h.Sum(nil))[:16]
	s.indexCountries()
	return s, nil
}

// indexCountries fills the derived Region and Priority fields.
func (s *Snapshot) indexCountries() {
	groups := make([]string, 0, len(s.Countries.RegionalGroups))
	for g := range s.Countries.RegionalGroups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	region := make(map[string]string)
	for _, g := range groups {
		for _, member := range s.Countries.RegionalGroups[g] {
			key := strings.ToLower(strings.TrimSpace(member))
			if _, seen := region[key]; !seen {
				region[key] = g
			}
		}
	}
	priority := make(map[string]bool, len(s.Countries.Priority))
	for _, p := range s.Countries.Priority {
		priority[strings.ToLower(strings.TrimSpace(p))] = true
	}

	for i := range s.Countries.Countries {
		key := strings.ToLower(strings.TrimSpace(s.Countries.Countries[i].Name))
		s.Countries.Countries[i].Region = region[key]
		s.Countries.Countries[i].Priority = priority[key]
	}
}

// Overrides lists the environment variables that replaced document values.
func (s *Snapshot) Overrides() []string {
	return append([]string(nil), s.overrides...)
}

// GetConfigValue walks a dotted path through the named document. Map
// segments are keys, list segments are zero-based indexes. def is returned
// when any segment is missing.
func (s *Snapshot) GetConfigValue(domain Domain, path string, def any) any {
	doc, ok := s.raw[domain]
	if !ok {
		return def
	}
	var current any = doc
	if path == "" {
		return current
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return def
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return def
			}
			current = node[idx]
		default:
			return def
		}
	}
	if current == nil {
		return def
	}
	return current
}

// Thresholds returns the tier thresholds, falling back to defaults when the
// section is missing.
func (s *Snapshot) Thresholds() SimilarityThresholds {
	if s.Matching.Similarity == nil {
		return SimilarityThresholds{
			Exact:    DefaultExactThreshold,
			Alias:    DefaultAliasThreshold,
			Fuzzy:    DefaultFuzzyThreshold,
			Semantic: DefaultSemanticThreshold,
		}
	}
	return *s.Matching.Similarity
}

// Geographic returns the geographic factors with defaults for omitted values.
func (s *Snapshot) Geographic() GeographicFactors {
	g := GeographicFactors{}
	if s.Matching.Geographic != nil {
		g = *s.Matching.Geographic
	}
	if g.SameCountry == 0 {
		g.SameCountry = DefaultSameCountryBoost
	}
	if g.SameRegion == 0 {
		g.SameRegion = DefaultSameRegionBoost
	}
	if g.DifferentRegion == 0 {
		g.DifferentRegion = DefaultDifferentRegionPenalty
	}
	return g
}

// Query returns query settings with defaults for omitted values.
func (s *Snapshot) Query() QuerySettings {
	q := QuerySettings{}
	if s.Matching.Query != nil {
		q = *s.Matching.Query
	}
	if q.MaxCandidates <= 0 {
		q.MaxCandidates = DefaultMaxCandidates
	}
	if q.MaxConcurrency <= 0 {
		q.MaxConcurrency = DefaultMaxConcurrency
	}
	return q
}

// Cache returns cache settings with defaults for omitted values.
func (s *Snapshot) Cache() CacheSettings {
	c := s.Matching.Cache
	if c.TTL <= 0 {
		c.TTL = DefaultCacheTTL
	}
	if c.PopularTTL <= 0 {
		c.PopularTTL = c.TTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	return c
}

// NGramSize returns the configured n-gram size, defaulting to 3.
func (s *Snapshot) NGramSize() int {
	if s.Algorithms.NGramSize <= 0 {
		return 3
	}
	return s.Algorithms.NGramSize
}
