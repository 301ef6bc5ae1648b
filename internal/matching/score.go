package matching

import (
	"strings"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/entity"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/similarity"
)

// compute scores one oriented pair without touching the cache.
func (e *Engine) compute(req ScoreRequest) DatasetMatch {
	a, b := req.EntityA, req.EntityB
	result := DatasetMatch{
		QueryEntity:     a,
		CandidateEntity: b,
		MatchType:       TierNone,
	}
	if e.entities.ShouldSkipMatching(a) || e.entities.ShouldSkipMatching(b) {
		return result
	}

	eq := e.entities.AreEquivalent(a, b)
	formA, formB := e.entities.ComparisonForm(a), e.entities.ComparisonForm(b)
	factor, adjusted := e.contextFactor(a, b, req.CountryA, req.CountryB)

	result.Quality = QualityMetrics{
		SpecificityScore: round3(e.entities.Specificity(a)),
		LengthRatio:      round3(similarity.LengthRatio(formA, formB)),
		WordCountRatio:   round3(similarity.WordCountRatio(formA, formB)),
		MatchCoverage:    round3(similarity.Coverage(formA, formB)),
	}
	if adjusted {
		relevance := round3(factor)
		result.Quality.ContextRelevance = &relevance
	}
	if eq.IsMatch {
		result.Equivalence = eq.MatchType
	}

	var base float64
	switch {
	case eq.MatchType == entity.MatchExact:
		base = eq.Confidence
	case e.passesQuality(formA, formB):
		penalty := 1.0
		if similarity.LengthRatio(formA, formB) < e.lengthPenalty.Threshold {
			penalty = e.lengthPenalty.Factor
		}
		finalize := func(lexical float64) float64 {
			return round3(clamp01(max(lexical*penalty, eq.Confidence) * factor))
		}
		base = max(e.lexical(formA, formB, finalize)*penalty, eq.Confidence)
	case eq.IsMatch:
		base = eq.Confidence
	default:
		// a failed quality filter without structural equivalence is final
		return result
	}

	result.Confidence = round3(clamp01(base * factor))
	result.MatchType = Classify(result.Confidence, e.thresholds)
	return result
}

// lexical computes the weighted sum of the configured algorithms in
// descending weight order. With early termination enabled it stops as soon
// as the lowest and highest reachable final scores land in the same tier and
// the lowest already meets the confidence threshold; the partial sum is then
// a lower bound of the full one with the same tier.
func (e *Engine) lexical(a, b string, finalize func(float64) float64) float64 {
	var sum float64
	for i, alg := range e.algorithms {
		sum += alg.weight * alg.fn(a, b)
		if !e.earlyTermination || i == len(e.algorithms)-1 {
			continue
		}
		lo, hi := finalize(sum), finalize(sum+alg.rest)
		if lo >= e.confidenceFloor && Classify(lo, e.thresholds) == Classify(hi, e.thresholds) {
			e.log.Trace().Str("stopped_after", alg.name).Float64("partial", sum).Msg("early termination")
			return sum
		}
	}
	return sum
}

// passesQuality applies the hard gates. Every check is symmetric in a and b.
func (e *Engine) passesQuality(a, b string) bool {
	q := e.quality
	if q.MinWordOverlap > 0 && similarity.WordOverlap(a, b) < q.MinWordOverlap {
		return false
	}
	if q.MaxLengthRatio > 0 {
		lr := similarity.LengthRatio(a, b)
		if lr == 0 || 1/lr > q.MaxLengthRatio {
			return false
		}
	}
	if q.MinCharOverlap > 0 && similarity.CharacterOverlap(a, b) < q.MinCharOverlap {
		return false
	}
	return true
}

// contextFactor multiplies the organization-type boost (either text mentions
// a sector keyword) and the geographic factor (both countries given).
func (e *Engine) contextFactor(a, b, countryA, countryB string) (float64, bool) {
	factor, adjusted := 1.0, false
	if e.orgBoost > 0 && (e.hasSectorKeyword(a) || e.hasSectorKeyword(b)) {
		factor *= e.orgBoost
		adjusted = true
	}
	if strings.TrimSpace(countryA) != "" && strings.TrimSpace(countryB) != "" {
		factor *= e.countries.GeographicRelationship(countryA, countryB).BoostFactor
		adjusted = true
	}
	return factor, adjusted
}

func (e *Engine) hasSectorKeyword(text string) bool {
	if len(e.orgKeywords) == 0 {
		return false
	}
	padded := " " + entity.Clean(text) + " "
	for _, kw := range e.orgKeywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}
