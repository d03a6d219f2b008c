package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	connectiondto "welcome-agent/internal/connection/dto"
	"welcome-agent/internal/quota"
	"welcome-agent/pkg/logger"
)

const (
	defaultUsageSpec   = "@daily"
	defaultSweepSpec   = "@every 60m"
	defaultSessionSpec = "@hourly"
)

// WorkspaceSource lists workspaces that have at least one inactive mailbox.
type WorkspaceSource interface {
	WithInactiveConnections(ctx context.Context) ([]string, error)
}

type ConnectionChecker interface {
	CheckAndFixInactiveConnections(ctx context.Context, workspaceID string) (*connectiondto.CheckResult, error)
}

type SessionPurger interface {
	DeleteExpiredSessions(now time.Time) (int64, error)
}

// Scheduler runs periodic upkeep: monthly usage resets, the inactive mailbox sweep and
// expired session removal.
type Scheduler struct {
	db          *gorm.DB
	workspaces  WorkspaceSource
	connections ConnectionChecker
	sessions    SessionPurger
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger

	usageSchedule   string
	sweepSchedule   string
	sessionSchedule string
}

type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithUsageSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.usageSchedule = spec
		}
	}
}

// WithSweepSchedule sets the connection sweep spec. An empty spec disables the sweep.
func WithSweepSchedule(spec string) Option {
	return func(s *Scheduler) {
		s.sweepSchedule = spec
	}
}

func WithSessionSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.sessionSchedule = spec
		}
	}
}

// NewScheduler builds a scheduler. A nil dependency skips the jobs that need it.
func NewScheduler(db *gorm.DB, workspaces WorkspaceSource, connections ConnectionChecker, sessions SessionPurger, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:              db,
		workspaces:      workspaces,
		connections:     connections,
		sessions:        sessions,
		now:             time.Now,
		log:             logger.WithModule("maintenance"),
		usageSchedule:   defaultUsageSpec,
		sweepSchedule:   defaultSweepSpec,
		sessionSchedule: defaultSessionSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the enabled jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if s.db != nil {
		if _, err := s.cron.AddFunc(s.usageSchedule, func() {
			if _, err := s.ResetUsage(context.Background()); err != nil {
				s.log.Warn("usage reset failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.sweepEnabled() {
		if _, err := s.cron.AddFunc(s.sweepSchedule, func() {
			if _, err := s.SweepConnections(context.Background()); err != nil {
				s.log.Warn("connection sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.sessions != nil {
		if _, err := s.cron.AddFunc(s.sessionSchedule, func() {
			if _, err := s.sessions.DeleteExpiredSessions(s.now()); err != nil {
				s.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("maintenance scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweepEnabled() bool {
	return s.sweepSchedule != "" && s.workspaces != nil && s.connections != nil
}

// ResetUsage zeroes the monthly email counters that are due.
func (s *Scheduler) ResetUsage(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errors.New("reset usage: db is required")
	}
	return quota.ResetExpiredUsage(s.db.WithContext(ctx), s.now())
}

// SweepConnections runs the inactive mailbox check for every affected workspace. A failing
// workspace does not stop the others.
func (s *Scheduler) SweepConnections(ctx context.Context) (connectiondto.CheckResult, error) {
	var total connectiondto.CheckResult
	if s.workspaces == nil || s.connections == nil {
		return total, nil
	}

	ids, err := s.workspaces.WithInactiveConnections(ctx)
	if err != nil {
		return total, err
	}

	var errs error
	for _, id := range ids {
		res, err := s.connections.CheckAndFixInactiveConnections(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		total.Checked += res.Checked
		total.Reactivated += res.Reactivated
	}
	if total.Checked > 0 {
		s.log.Info("connection sweep finished",
			zap.Int("workspaces", len(ids)),
			zap.Int("checked", total.Checked),
			zap.Int("reactivated", total.Reactivated),
		)
	}
	return total, errs
}

// RunOnce executes every configured job sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	if s.db != nil {
		if _, err := s.ResetUsage(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if _, err := s.SweepConnections(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if s.sessions != nil {
		if _, err := s.sessions.DeleteExpiredSessions(s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
