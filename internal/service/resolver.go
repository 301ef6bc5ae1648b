package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/cache"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/country"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/entity"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/metrics"
)

var (
	// ErrInvalidConfiguration is returned when the matching configuration
	// fails validation. It wraps matchconfig.ValidationErrors.
	ErrInvalidConfiguration = errors.New("invalid matching configuration")
	// ErrUnknownDomain is returned for configuration lookups outside the
	// three known documents.
	ErrUnknownDomain = errors.New("unknown configuration domain")
)

// ValidationResult reports the state of the active configuration.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Version string   `json:"version"`
	Errors  []string `json:"errors"`
}

// ReloadResult describes the snapshot active after a reload.
type ReloadResult struct {
	Version   string   `json:"version"`
	Changed   bool     `json:"changed"`
	Overrides []string `json:"env_overrides"`
}

// ResolverService is the call surface of the entity resolution core. It owns
// the scoring engine built from the store's snapshot and rebuilds it on
// reload.
type ResolverService struct {
	store      *matchconfig.Store
	engineOpts []matching.Option

	engine atomic.Pointer[matching.Engine]
	mu     sync.Mutex // serializes reloads
}

// NewResolverService loads and validates the configuration and builds the
// engine. An invalid configuration yields ErrInvalidConfiguration so that
// nothing is served from it.
func NewResolverService(store *matchconfig.Store, opts ...matching.Option) (*ResolverService, error) {
	snap, err := store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("load matching configuration: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	s := &ResolverService{store: store, engineOpts: opts}
	engine, err := matching.NewEngine(snap, opts...)
	if err != nil {
		return nil, err
	}
	s.engine.Store(engine)
	return s, nil
}

// Engine returns the active scoring engine.
func (s *ResolverService) Engine() *matching.Engine {
	return s.engine.Load()
}

// Version returns the version stamp of the active configuration.
func (s *ResolverService) Version() string {
	return s.Engine().Snapshot().Version
}

func (s *ResolverService) NormalizeCountry(input string) (country.Match, bool) {
	return s.Engine().Countries().Normalize(input)
}

func (s *ResolverService) NormalizeEntity(text string) entity.NormalizedEntity {
	return s.Engine().Entities().NormalizeEntity(text)
}

func (s *ResolverService) AreEquivalent(a, b string) entity.Equivalence {
	return s.Engine().Entities().AreEquivalent(a, b)
}

func (s *ResolverService) Score(ctx context.Context, req matching.ScoreRequest) matching.DatasetMatch {
	return s.Engine().Score(ctx, req)
}

func (s *ResolverService) BatchScore(ctx context.Context, q matching.Query, candidates []matching.Candidate) []matching.DatasetMatch {
	return s.Engine().BatchScore(ctx, q, candidates)
}

// Rank scores candidates, drops results in the none tier and returns the rest
// ordered by confidence, capped at query.max_candidates.
func (s *ResolverService) Rank(ctx context.Context, q matching.Query, candidates []matching.Candidate) []matching.DatasetMatch {
	engine := s.Engine()
	scored := engine.BatchScore(ctx, q, candidates)

	matches := make([]matching.DatasetMatch, 0, len(scored))
	for _, m := range scored {
		if m.IsMatch() {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	if limit := engine.Snapshot().Query().MaxCandidates; limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ValidateConfiguration re-checks the active snapshot.
func (s *ResolverService) ValidateConfiguration() ValidationResult {
	snap := s.Engine().Snapshot()
	errs := matchconfig.ValidateConfigurations(snap)
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Version: snap.Version, Errors: errs}
}

func (s *ResolverService) CacheStats() cache.Stats {
	return s.Engine().CacheStats()
}

// SweepCache drops expired cache entries and returns how many were removed.
func (s *ResolverService) SweepCache() int {
	engine := s.Engine()
	removed := engine.SweepCache()
	metrics.RecordCacheSweep(removed, engine.CacheStats().Size)
	return removed
}

// Reload re-reads the configuration documents. A valid new snapshot replaces
// the engine, and with it the result cache; an invalid one leaves the current
// engine serving and the error is returned.
func (s *ResolverService) Reload() (ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Engine()
	snap, err := s.store.Reload()
	metrics.RecordConfigReload(err)
	if err != nil {
		var verrs matchconfig.ValidationErrors
		if errors.As(err, &verrs) {
			return ReloadResult{Version: current.Snapshot().Version}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		return ReloadResult{Version: current.Snapshot().Version}, fmt.Errorf("reload matching configuration: %w", err)
	}

	result := ReloadResult{Version: snap.Version, Overrides: snap.Overrides()}
	if snap.Version == current.Snapshot().Version {
		return result, nil
	}

	engine, err := matching.NewEngine(snap, s.engineOpts...)
	if err != nil {
		return ReloadResult{Version: current.Snapshot().Version}, err
	}
	s.engine.Store(engine)
	current.PurgeCache()
	result.Changed = true

	logger.Info().
		Str("previous_version", current.Snapshot().Version).
		Str("version", snap.Version).
		Msg("scoring engine rebuilt")
	return result, nil
}

// ConfigValue reads a dotted path from one of the configuration documents,
// returning def when the path is absent.
func (s *ResolverService) ConfigValue(domain, path string, def any) (any, error) {
	for _, d := range matchconfig.Domains {
		if string(d) == domain {
			return s.Engine().Snapshot().GetConfigValue(d, path, def), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
}
