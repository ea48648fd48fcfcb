// Package scheduler sends hourly reminders about due cards.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/cardsched/internal/database"
	"github.com/example/cardsched/pkg/models"
	"github.com/go-co-op/gocron"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Default notification window, in UTC hours
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
	DefaultConcurrency           = 4
)

// Notifier delivers a reminder about count due cards to user
type Notifier interface {
	SendReminder(ctx context.Context, user models.User, count int) error
}

// Config controls when reminders go out
type Config struct {
	StartHour   int // first hour of the window, inclusive
	EndHour     int // last hour of the window, inclusive; may be < StartHour to wrap midnight
	Concurrency int // reminders sent in parallel
}

// DefaultConfig returns the default reminder settings
func DefaultConfig() Config {
	return Config{
		StartHour:   DefaultNotificationStartHour,
		EndHour:     DefaultNotificationEndHour,
		Concurrency: DefaultConcurrency,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	users     *database.UserRepository
	cards     *database.CardRepository
	notifier  Notifier
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a new scheduler instance
func New(db *sqlx.DB, notifier Notifier, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		users:     database.NewUserRepository(db),
		cards:     database.NewCardRepository(db),
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces time.Now
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the hourly reminder job until ctx is cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(1).Hour().Do(func() {
		if _, err := s.CheckAndSendReminders(ctx); err != nil {
			s.log.Error().Err(err).Msg("reminder run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info().Int("start_hour", s.cfg.StartHour).Int("end_hour", s.cfg.EndHour).Msg("reminder scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// InWindow reports whether hour falls inside the notification window
func (c Config) InWindow(hour int) bool {
	if c.StartHour <= c.EndHour {
		return hour >= c.StartHour && hour <= c.EndHour
	}
	return hour >= c.StartHour || hour <= c.EndHour
}

// CheckAndSendReminders notifies every user whose reminder hour is now and
// who has due cards. It returns the number of reminders sent.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	hour := now.Hour()
	if !s.cfg.InWindow(hour) {
		s.log.Debug().Int("hour", hour).Msg("outside notification hours, skipping reminders")
		return 0, nil
	}

	users, err := s.users.GetUsersForNotification(ctx, hour)
	if err != nil {
		return 0, err
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, user := range users {
		user := user
		g.Go(func() error {
			ok, err := s.remind(gctx, user, now, user.CardsPerDay)
			if err != nil {
				// logged, not fatal
				s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to send reminder")
				return nil
			}
			if ok {
				sent.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(sent.Load()), err
	}
	return int(sent.Load()), nil
}

// RunManualCheck forces a reminder for one user regardless of the hour
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.remind(ctx, *user, s.now().UTC(), 0)
}

// remind sends a reminder if user has due cards, capped at limit when > 0
func (s *Scheduler) remind(ctx context.Context, user models.User, now time.Time, limit int) (bool, error) {
	count, err := s.cards.CountDue(ctx, user.ID, now)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	if limit > 0 && count > limit {
		count = limit
	}
	if err := s.notifier.SendReminder(ctx, user, count); err != nil {
		return false, err
	}
	return true, nil
}
