package matchconfig

import (
	"sort"
	"time"
)

// Domain names one of the three configuration documents.
type Domain string

const (
	DomainMatching   Domain = "matching"
	DomainCountries  Domain = "countries"
	DomainAlgorithms Domain = "algorithms"
)

// Domains lists the documents in load order.
var Domains = []Domain{DomainMatching, DomainCountries, DomainAlgorithms}

// MatchingDocument holds thresholds, geographic factors, query, cache,
// quality filter and normalization settings. The similarity, geographic and
// query sections are required; pointers distinguish a missing section from
// one left at zero values.
type MatchingDocument struct {
	Version       string                `yaml:"version"`
	Similarity    *SimilarityThresholds `yaml:"similarity"`
	Geographic    *GeographicFactors    `yaml:"geographic"`
	Query         *QuerySettings        `yaml:"query"`
	Cache         CacheSettings         `yaml:"cache"`
	Quality       QualityFilters        `yaml:"quality"`
	Normalization NormalizationRules    `yaml:"normalization"`
}

// SimilarityThresholds are the lower bounds of each match tier.
type SimilarityThresholds struct {
	Exact    float64 `yaml:"exact_threshold" validate:"gte=0,lte=1"`
	Alias    float64 `yaml:"alias_threshold" validate:"gte=0,lte=1"`
	Fuzzy    float64 `yaml:"fuzzy_threshold" validate:"gte=0,lte=1"`
	Semantic float64 `yaml:"semantic_threshold" validate:"gte=0,lte=1"`
}

// GeographicFactors are multiplicative adjustments by country relationship.
// Zero means "use the default".
type GeographicFactors struct {
	SameCountry     float64 `yaml:"same_country_boost" validate:"gte=0"`
	SameRegion      float64 `yaml:"same_region_boost" validate:"gte=0"`
	DifferentRegion float64 `yaml:"different_region_penalty" validate:"gte=0"`
}

type QuerySettings struct {
	MaxCandidates       int     `yaml:"max_candidates" validate:"gte=0"`
	MaxConcurrency      int     `yaml:"max_concurrency" validate:"gte=0"`
	EarlyTermination    bool    `yaml:"early_termination"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
}

type CacheSettings struct {
	Enabled         bool          `yaml:"enabled"`
	NegativeCaching bool          `yaml:"negative_caching"`
	TTL             time.Duration `yaml:"ttl"`
	PopularTTL      time.Duration `yaml:"popular_ttl"`
	MaxEntries      int           `yaml:"max_entries" validate:"gte=0"`
	PopularQueries  []string      `yaml:"popular_queries"`
}

// QualityFilters gate lexical scores. MaxLengthRatio is longer/shorter, so
// 3.0 rejects pairs where one side is more than three times the other.
type QualityFilters struct {
	MinWordOverlap float64 `yaml:"min_word_overlap" validate:"gte=0,lte=1"`
	MaxLengthRatio float64 `yaml:"max_length_ratio" validate:"gte=0"`
	MinCharOverlap float64 `yaml:"min_char_overlap" validate:"gte=0,lte=1"`
}

type NormalizationRules struct {
	StopwordPhrases        []string `yaml:"stopword_phrases"`
	GenericTerms           []string `yaml:"generic_terms"`
	OrganizationalSuffixes []string `yaml:"organizational_suffixes"`
	LegalSuffixes          []string `yaml:"legal_suffixes"`
	AbbreviationSkipWords  []string `yaml:"abbreviation_skip_words"`
}

// CountriesDocument is the country canonicalization table.
type CountriesDocument struct {
	Version           string              `yaml:"version"`
	Countries         []CountryEntry      `yaml:"countries" validate:"dive"`
	RegionalGroups    map[string][]string `yaml:"regional_groups"`
	Priority          []string            `yaml:"priority"`
	SearchPreferences SearchPreferences   `yaml:"search_preferences"`
}

// CountryEntry is one canonical country. Region and Priority are derived
// from the regional_groups and priority sections when the snapshot is built.
type CountryEntry struct {
	Name     string   `yaml:"name" validate:"required"`
	ISOCodes []string `yaml:"iso_codes"`
	Aliases  []string `yaml:"aliases"`
	Region   string   `yaml:"-"`
	Priority bool     `yaml:"-"`
}

type SearchPreferences struct {
	DefaultCountry       string `yaml:"default_country"`
	IncludeRegional      bool   `yaml:"include_regional"`
	MaxResultsPerCountry int    `yaml:"max_results_per_country" validate:"gte=0"`
}

// AlgorithmWeights maps an algorithm name to its weight in [0,1].
type AlgorithmWeights map[string]float64

// Sum returns the total weight.
func (w AlgorithmWeights) Sum() float64 {
	var total float64
	for _, name := range w.Names() {
		total += w[name]
	}
	return total
}

// Names returns the configured algorithm names in lexical order.
func (w AlgorithmWeights) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByWeight returns the algorithm names by descending weight, ties broken by
// name, so evaluation order never depends on map iteration.
func (w AlgorithmWeights) ByWeight() []string {
	names := w.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return w[names[i]] > w[names[j]]
	})
	return names
}

// AlgorithmsDocument holds algorithm weights and context adjustment rules.
type AlgorithmsDocument struct {
	Version            string             `yaml:"version"`
	NGramSize          int                `yaml:"ngram_size" validate:"gte=0"`
	Weights            AlgorithmWeights   `yaml:"weights" validate:"dive,gte=0,lte=1"`
	ContextAdjustments ContextAdjustments `yaml:"context_adjustments"`
}

type ContextAdjustments struct {
	OrganizationType OrganizationTypeBoost `yaml:"organization_type"`
	LengthPenalty    LengthPenalty         `yaml:"length_penalty"`
}

// OrganizationTypeBoost multiplies the score when either text contains one of
// the sector keywords.
type OrganizationTypeBoost struct {
	Keywords []string `yaml:"keywords"`
	Boost    float64  `yaml:"boost" validate:"gte=0"`
}

// LengthPenalty multiplies the lexical score by Factor when the
// shorter/longer length ratio is below Threshold.
type LengthPenalty struct {
	Threshold float64 `yaml:"threshold" validate:"gte=0,lte=1"`
	Factor    float64 `yaml:"factor" validate:"gte=0,lte=1"`
}
