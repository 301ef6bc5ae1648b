package matching

import "github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"

// Match tiers, from strongest to weakest.
const (
	TierExact    = "exact"
	TierAlias    = "alias"
	TierFuzzy    = "fuzzy"
	TierSemantic = "semantic"
	TierNone     = "none"
)

// ScoreRequest is one pair of entity texts with optional countries.
type ScoreRequest struct {
	EntityA  string `json:"entity_a" binding:"required"`
	EntityB  string `json:"entity_b" binding:"required"`
	CountryA string `json:"country_a,omitempty"`
	CountryB string `json:"country_b,omitempty"`
}

// Query is the entity a batch of candidates is compared against.
type Query struct {
	Entity  string `json:"entity" binding:"required"`
	Country string `json:"country,omitempty"`
}

// Candidate is a reference record supplied by the caller.
type Candidate struct {
	ID      string   `json:"id"`
	Name    string   `json:"name" binding:"required"`
	Country string   `json:"country,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// QualityMetrics describe how the two texts relate beyond the score.
type QualityMetrics struct {
	SpecificityScore float64  `json:"specificity_score"`
	LengthRatio      float64  `json:"length_ratio"`
	WordCountRatio   float64  `json:"word_count_ratio"`
	MatchCoverage    float64  `json:"match_coverage"`
	ContextRelevance *float64 `json:"context_relevance,omitempty"`
}

// DatasetMatch is the result of scoring one pair. It is never modified after
// it is returned.
type DatasetMatch struct {
	QueryEntity     string         `json:"query_entity"`
	CandidateEntity string         `json:"candidate_entity"`
	CandidateID     string         `json:"candidate_id,omitempty"`
	MatchedText     string         `json:"matched_text,omitempty"`
	Confidence      float64        `json:"confidence"`
	MatchType       string         `json:"match_type"`
	Equivalence     string         `json:"equivalence,omitempty"`
	Quality         QualityMetrics `json:"quality"`
}

// IsMatch reports whether the result landed in any tier above none.
func (m DatasetMatch) IsMatch() bool {
	return m.MatchType != TierNone
}

// Classify maps a score to its tier. A score exactly on a threshold belongs
// to the higher tier.
func Classify(score float64, t matchconfig.SimilarityThresholds) string {
	switch {
	case score >= t.Exact:
		return TierExact
	case score >= t.Alias:
		return TierAlias
	case score >= t.Fuzzy:
		return TierFuzzy
	case score >= t.Semantic:
		return TierSemantic
	default:
		return TierNone
	}
}
