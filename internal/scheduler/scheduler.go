package scheduler

import (
	"fmt"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type cacheSweeper interface {
	SweepCache() int
}

type configReloader interface {
	Reload() (service.ReloadResult, error)
}

// printfLogger routes cron's Printf output into zerolog.
type printfLogger struct {
	log zerolog.Logger
}

func (l printfLogger) Printf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	cache    cacheSweeper
	reloader configReloader
	log      zerolog.Logger
}

// NewScheduler creates the background job runner. reloader may be nil, in
// which case periodic reload is never scheduled.
func NewScheduler(cfg config.SchedulerConfig, cache cacheSweeper, reloader configReloader) *Scheduler {
	log := logger.Component("scheduler")
	cronLog := cron.PrintfLogger(printfLogger{log: log})
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		cache:    cache,
		reloader: reloader,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CacheSweepSpec, func() { s.RunCacheSweepNow() }); err != nil {
		return fmt.Errorf("invalid cache sweep spec %q: %w", s.cfg.CacheSweepSpec, err)
	}
	s.log.Info().Str("spec", s.cfg.CacheSweepSpec).Msg("cache sweep scheduled")

	if s.cfg.ConfigReloadSpec != "" && s.reloader != nil {
		if _, err := s.cron.AddFunc(s.cfg.ConfigReloadSpec, func() { _ = s.RunConfigReloadNow() }); err != nil {
			return fmt.Errorf("invalid config reload spec %q: %w", s.cfg.ConfigReloadSpec, err)
		}
		s.log.Info().Str("spec", s.cfg.ConfigReloadSpec).Msg("configuration reload scheduled")
	}

	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunCacheSweepNow removes expired cache entries immediately
func (s *Scheduler) RunCacheSweepNow() int {
	removed := s.cache.SweepCache()
	s.log.Debug().Int("removed", removed).Msg("cache sweep complete")
	return removed
}

// RunConfigReloadNow reloads the configuration documents immediately
func (s *Scheduler) RunConfigReloadNow() error {
	if s.reloader == nil {
		return nil
	}
	result, err := s.reloader.Reload()
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduled configuration reload rejected")
		return err
	}
	if result.Changed {
		s.log.Info().Str("version", result.Version).Msg("configuration changed on scheduled reload")
	}
	return nil
}

// GetScheduledJobs returns information about scheduled jobs
func (s *Scheduler) GetScheduledJobs() []cron.Entry {
	return s.cron.Entries()
}
