package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mycm.app/server/internal/quotes"
	"mycm.app/server/internal/reflection"
)

// Scheduler pre-resolves the daily prompt and the weekly quote shortly after
// their windows open, so the first visitor of the day does not pay for the
// creation. Both jobs are idempotent; lazy resolution remains the fallback.
type Scheduler struct {
	cron     *cron.Cron
	resolver *reflection.Resolver
	quotes   *quotes.Service
	logger   *zap.SugaredLogger
}

func NewScheduler(resolver *reflection.Resolver, q *quotes.Service, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		resolver: resolver,
		quotes:   q,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("5 0 * * *", s.resolveDailyPrompt); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("10 0 * * 1", s.rotateWeeklyQuote); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infow("scheduler started", "jobs", []string{"daily_prompt", "weekly_quote"})
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) resolveDailyPrompt() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := s.resolver.Resolve(ctx, reflection.Today())
	if err != nil {
		s.logger.Errorw("scheduled daily prompt resolution failed", "error", err)
		return
	}
	s.logger.Infow("daily prompt ready", "daily_id", d.ID, "active_on", d.ActiveOn.Format("2006-01-02"))
}

func (s *Scheduler) rotateWeeklyQuote() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w, err := s.quotes.ResolveWeek(ctx, quotes.WeekStart(time.Now().UTC()))
	if err != nil {
		s.logger.Errorw("scheduled weekly quote rotation failed", "error", err)
		return
	}
	s.logger.Infow("weekly quote ready", "weekly_id", w.ID, "active_week", w.ActiveWeek.Format("2006-01-02"))
}
