package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yanqian/ai-assistant/internal/infra/config"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Config describes the daily briefing schedule.
type Config struct {
	// DailyTime is the local "HH:MM" the job fires at.
	DailyTime string
	Timezone  string
	// JobTimeout bounds a single run. Zero means five minutes.
	JobTimeout time.Duration
}

// Scheduler runs a job once a day on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	logger  *slog.Logger
}

// New validates cfg and prepares a cron runner in the configured zone.
func New(cfg Config, logger *slog.Logger) (*Scheduler, error) {
	spec, err := DailySpec(cfg.DailyTime)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	logger = logger.With("component", "scheduler")
	cronLogger := slogAdapter{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:    spec,
		timeout: cfg.JobTimeout,
		logger:  logger,
	}, nil
}

// DailySpec converts "HH:MM" into a five-field cron spec.
func DailySpec(dailyTime string) (string, error) {
	hour, minute, err := config.ParseDailyTime(dailyTime)
	if err != nil {
		return "", fmt.Errorf("daily time: %w", err)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Run registers job and blocks until ctx is done. In-flight runs are waited
// for before returning.
func (s *Scheduler) Run(ctx context.Context, name string, job Job) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		started := time.Now()
		if err := job(runCtx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err, "duration", time.Since(started))
			return
		}
		s.logger.Info("scheduled job finished", "job", name, "duration", time.Since(started))
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.cron.Start()
	next, _ := s.Next(time.Now())
	s.logger.Info("scheduler started", "job", name, "spec", s.spec, "location", s.cron.Location().String(), "next", next)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped", "job", name)
	return nil
}

// Next reports when the registered job fires next after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t.In(s.cron.Location())), nil
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
