// Package matching scores pairs of organization names with a weighted blend
// of lexical algorithms, structural equivalence, quality filters and
// geographic context, and classifies the result into match tiers.
package matching

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/cache"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/country"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/entity"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/similarity"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Observer receives scoring telemetry.
type Observer interface {
	ObserveScore(matchType string, elapsed time.Duration)
	ObserveCacheLookup(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveScore(string, time.Duration) {}
func (nopObserver) ObserveCacheLookup(string)          {}

type weightedAlgorithm struct {
	name   string
	weight float64
	fn     similarity.Func
	// rest is the total weight of the algorithms after this one
	rest float64
}

// pairResult holds both orientations of a scored pair under one
// order-independent cache key. Forward is the orientation whose first side
// sorts first.
type pairResult struct {
	Forward *DatasetMatch `json:"forward,omitempty"`
	Reverse *DatasetMatch `json:"reverse,omitempty"`
}

func (p pairResult) get(swapped bool) (DatasetMatch, bool) {
	m := p.Forward
	if swapped {
		m = p.Reverse
	}
	if m == nil {
		return DatasetMatch{}, false
	}
	return *m, true
}

func (p pairResult) with(swapped bool, m DatasetMatch) pairResult {
	if swapped {
		p.Reverse = &m
	} else {
		p.Forward = &m
	}
	return p
}

// Engine scores entity pairs under one configuration snapshot. It never
// re-validates the snapshot: callers gate on matchconfig.ValidateConfigurations
// before constructing it.
type Engine struct {
	snap      *matchconfig.Snapshot
	entities  *entity.Normalizer
	countries *country.Normalizer

	algorithms       []weightedAlgorithm
	thresholds       matchconfig.SimilarityThresholds
	quality          matchconfig.QualityFilters
	lengthPenalty    matchconfig.LengthPenalty
	orgBoost         float64
	orgKeywords      []string
	earlyTermination bool
	confidenceFloor  float64
	maxConcurrency   int
	popular          map[string]struct{}

	cache    *cache.ResultCache[pairResult]
	observer Observer
	log      zerolog.Logger
}

type engineOptions struct {
	cacheDisabled    bool
	remote           cache.RemoteStore
	observer         Observer
	earlyTermination *bool
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithoutCache disables result caching regardless of configuration.
func WithoutCache() Option {
	return func(o *engineOptions) { o.cacheDisabled = true }
}

// WithRemoteCache adds a shared second cache tier.
func WithRemoteCache(r cache.RemoteStore) Option {
	return func(o *engineOptions) { o.remote = r }
}

// WithObserver installs a telemetry observer.
func WithObserver(obs Observer) Option {
	return func(o *engineOptions) { o.observer = obs }
}

// WithEarlyTermination overrides query.early_termination.
func WithEarlyTermination(enabled bool) Option {
	return func(o *engineOptions) { o.earlyTermination = &enabled }
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// NewEngine builds an engine, its normalizers and its private result cache
// from snap.
func NewEngine(snap *matchconfig.Snapshot, opts ...Option) (*Engine, error) {
	o := engineOptions{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}

	query := snap.Query()
	adj := snap.Algorithms.ContextAdjustments
	e := &Engine{
		snap:             snap,
		entities:         entity.NewNormalizer(snap.Matching.Normalization),
		countries:        country.NewNormalizer(snap),
		thresholds:       snap.Thresholds(),
		quality:          snap.Matching.Quality,
		lengthPenalty:    adj.LengthPenalty,
		orgBoost:         adj.OrganizationType.Boost,
		earlyTermination: query.EarlyTermination,
		confidenceFloor:  query.ConfidenceThreshold,
		maxConcurrency:   query.MaxConcurrency,
		popular:          make(map[string]struct{}),
		observer:         o.observer,
		log:              logger.Component("matching"),
	}
	if o.earlyTermination != nil {
		e.earlyTermination = *o.earlyTermination
	}
	for _, kw := range adj.OrganizationType.Keywords {
		if k := entity.Clean(kw); k != "" {
			e.orgKeywords = append(e.orgKeywords, k)
		}
	}

	registry := similarity.Registry(snap.NGramSize())
	for _, name := range snap.Algorithms.Weights.ByWeight() {
		fn, ok := registry[name]
		if !ok {
			continue
		}
		e.algorithms = append(e.algorithms, weightedAlgorithm{name: name, weight: snap.Algorithms.Weights[name], fn: fn})
	}
	for i := len(e.algorithms) - 2; i >= 0; i-- {
		e.algorithms[i].rest = e.algorithms[i+1].rest + e.algorithms[i+1].weight
	}

	cs := snap.Cache()
	for _, q := range cs.PopularQueries {
		e.popular[entity.Clean(q)] = struct{}{}
	}
	if cs.Enabled && !o.cacheDisabled {
		c, err := cache.New[pairResult](cache.Options{
			MaxEntries:      cs.MaxEntries,
			TTL:             cs.TTL,
			PopularTTL:      cs.PopularTTL,
			NegativeCaching: cs.NegativeCaching,
			Remote:          o.remote,
			Now:             o.now,
		})
		if err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

// Snapshot returns the configuration the engine was built from.
func (e *Engine) Snapshot() *matchconfig.Snapshot { return e.snap }

// Entities returns the engine's entity normalizer.
func (e *Engine) Entities() *entity.Normalizer { return e.entities }

// Countries returns the engine's country normalizer.
func (e *Engine) Countries() *country.Normalizer { return e.countries }

// Score compares two entity texts. Degenerate input yields a none result,
// never an error.
func (e *Engine) Score(ctx context.Context, req ScoreRequest) DatasetMatch {
	start := time.Now()
	if e.cache == nil {
		m := e.compute(req)
		e.observer.ObserveScore(m.MatchType, time.Since(start))
		return m
	}

	key, swapped := cache.PairKey(e.snap.Version,
		cache.Side{Entity: req.EntityA, Country: country.Clean(req.CountryA)},
		cache.Side{Entity: req.EntityB, Country: country.Clean(req.CountryB)},
	)
	// the pair shares one entry; only the requested orientation is a hit
	entry, found := e.cache.GetFunc(ctx, key, func(en cache.Entry[pairResult]) bool {
		_, ok := en.Value.get(swapped)
		return ok
	})
	if found {
		if m, ok := entry.Value.get(swapped); ok {
			e.observer.ObserveCacheLookup("hit")
			return m
		}
	}
	e.observer.ObserveCacheLookup("miss")

	m := e.compute(req)
	e.cache.Set(ctx, key, entry.Value.with(swapped, m), !m.IsMatch(), e.isPopular(req))
	e.observer.ObserveScore(m.MatchType, time.Since(start))
	return m
}

// BatchScore scores query against every candidate, in parallel up to
// query.max_concurrency. Each candidate's aliases are scored as well and the
// best text wins. Results keep the order of candidates.
func (e *Engine) BatchScore(ctx context.Context, q Query, candidates []Candidate) []DatasetMatch {
	results := make([]DatasetMatch, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.maxConcurrency)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			results[i] = e.scoreCandidate(ctx, q, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) scoreCandidate(ctx context.Context, q Query, c Candidate) DatasetMatch {
	best := e.Score(ctx, ScoreRequest{EntityA: q.Entity, EntityB: c.Name, CountryA: q.Country, CountryB: c.Country})
	best.MatchedText = c.Name
	viaAlias := false

	for _, alias := range c.Aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		m := e.Score(ctx, ScoreRequest{EntityA: q.Entity, EntityB: alias, CountryA: q.Country, CountryB: c.Country})
		if m.Confidence > best.Confidence {
			best = m
			best.MatchedText = alias
			viaAlias = true
		}
	}
	if viaAlias && best.MatchType == TierExact {
		best.MatchType = TierAlias
	}
	best.CandidateID = c.ID
	best.CandidateEntity = c.Name
	return best
}

// CacheStats returns aggregate cache statistics; zero when caching is off.
func (e *Engine) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// SweepCache removes expired cache entries.
func (e *Engine) SweepCache() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.SweepExpired()
}

// PurgeCache drops every cached result.
func (e *Engine) PurgeCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func (e *Engine) isPopular(req ScoreRequest) bool {
	if len(e.popular) == 0 {
		return false
	}
	for _, s := range []string{req.EntityA, req.EntityB} {
		if _, ok := e.popular[entity.Clean(s)]; ok {
			return true
		}
		if _, ok := e.popular[e.entities.Normalize(s)]; ok {
			return true
		}
	}
	return false
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
