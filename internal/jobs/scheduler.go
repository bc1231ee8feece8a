package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

const (
	DefaultCodePurgeSchedule = "0 */15 * * * *"
	DefaultCodeRetention     = 24 * time.Hour
)

// Scheduler runs housekeeping jobs on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	codes     domain.TwoFactorCodeRepository
	schedule  string
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewScheduler(codes domain.TwoFactorCodeRepository, schedule string, retention time.Duration, log zerolog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultCodePurgeSchedule
	}
	if retention <= 0 {
		retention = DefaultCodeRetention
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		codes:     codes,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("component", "jobs").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.purgeCodes); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) purgeCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.PurgeCodes(ctx); err != nil {
		s.log.Error().Err(err).Msg("purge two-factor codes failed")
	}
}

// PurgeCodes deletes two-factor codes that expired more than the retention
// period ago. Refresh tokens are kept.
func (s *Scheduler) PurgeCodes(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.codes.PurgeStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged two-factor codes")
	}
	return n, nil
}
