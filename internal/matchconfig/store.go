// Package matchconfig loads the matching, country and algorithm documents
// into immutable snapshots and validates their invariants.
package matchconfig

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
)

// Store owns the active snapshot. The first call to Snapshot loads it; Reload
// replaces it atomically so in-flight readers keep the snapshot they started
// with.
type Store struct {
	sources Sources
	lookup  LookupEnvFunc

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes loads
}

// Option configures a Store.
type Option func(*Store)

// WithLookupEnv replaces os.LookupEnv as the source of overrides.
func WithLookupEnv(fn LookupEnvFunc) Option {
	return func(s *Store) { s.lookup = fn }
}

// NewStore creates a store reading from src. Nothing is loaded until the
// first call to Snapshot.
func NewStore(src Sources, opts ...Option) *Store {
	s := &Store{sources: src, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the active snapshot, loading it on first use.
func (s *Store) Snapshot() (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	snap, err := Build(s.sources, s.lookup)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	logSnapshot("configuration loaded", snap)
	return snap, nil
}

// Reload builds a fresh snapshot from the sources and swaps it in when it
// validates. On failure the previous snapshot stays active and the error
// (ValidationErrors for semantic problems) is returned.
func (s *Store) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := Build(s.sources, s.lookup)
	if err != nil {
		logger.Warn().Err(err).Msg("configuration reload failed, keeping previous snapshot")
		return s.current.Load(), err
	}
	if err := snap.Validate(); err != nil {
		logger.Warn().Err(err).Str("rejected_version", snap.Version).Msg("reloaded configuration invalid, keeping previous snapshot")
		return s.current.Load(), err
	}
	prev := s.current.Swap(snap)
	if prev != nil && prev.Version == snap.Version {
		logger.Debug().Str("version", snap.Version).Msg("configuration reloaded without changes")
	} else {
		logSnapshot("configuration reloaded", snap)
	}
	return snap, nil
}

func logSnapshot(msg string, snap *Snapshot) {
	logger.Info().
		Str("version", snap.Version).
		Int("countries", len(snap.Countries.Countries)).
		Int("algorithms", len(snap.Algorithms.Weights)).
		Strs("env_overrides", snap.overrides).
		Msg(msg)
}
