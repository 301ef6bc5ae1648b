package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/metrics"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
)

// DefaultPrefilterThreshold is the trigram similarity a reference entity
// needs to be considered for scoring.
const DefaultPrefilterThreshold = 0.2

// prefilterFanout multiplies query.max_candidates to size the prefilter.
const prefilterFanout = 4

// ErrEmptyQuery is returned when the query entity is blank.
var ErrEmptyQuery = errors.New("query entity is required")

type entityMatchFinder interface {
	FindSimilarEntities(ctx context.Context, name string, threshold float64, limit int32) ([]repository.EntityMatch, error)
}

// DatasetMatchService matches a query against the stored reference dataset.
type DatasetMatchService struct {
	entities  entityMatchFinder
	resolver  *ResolverService
	threshold float64
}

// NewDatasetMatchService creates a new dataset match service.
func NewDatasetMatchService(entities entityMatchFinder, resolver *ResolverService) *DatasetMatchService {
	return &DatasetMatchService{
		entities:  entities,
		resolver:  resolver,
		threshold: DefaultPrefilterThreshold,
	}
}

// Match prefilters reference entities by trigram similarity, scores them and
// returns the matches above the none tier, best first.
func (s *DatasetMatchService) Match(ctx context.Context, q matching.Query) ([]matching.DatasetMatch, error) {
	if strings.TrimSpace(q.Entity) == "" {
		return nil, ErrEmptyQuery
	}

	limit := s.resolver.Engine().Snapshot().Query().MaxCandidates * prefilterFanout
	found, err := s.entities.FindSimilarEntities(ctx, q.Entity, s.threshold, int32(limit))
	if err != nil {
		logger.Warn().Err(err).Str("entity", q.Entity).Msg("failed to find similar entities")
		metrics.RecordDatasetMatch(0, err)
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(found))
	for _, f := range found {
		c := matching.Candidate{
			ID:      f.Entity.ID.String(),
			Name:    f.Entity.OrganizationName,
			Aliases: f.Entity.Aliases,
		}
		if f.Entity.Country != nil {
			c.Country = *f.Entity.Country
		}
		candidates = append(candidates, c)
	}

	matches := s.resolver.Rank(ctx, q, candidates)
	metrics.RecordDatasetMatch(len(matches), nil)
	logger.Debug().
		Str("entity", q.Entity).
		Int("prefiltered", len(candidates)).
		Int("matches", len(matches)).
		Msg("dataset match complete")
	return matches, nil
}
