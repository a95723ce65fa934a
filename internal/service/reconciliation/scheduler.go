// Package reconciliation repairs reservation and session state that request
// traffic left behind: missed reminders, no-shows and sessions nobody stopped.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/besteffort"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
)

// JobName identifies one reconciliation job
type JobName string

const (
	JobReminder      JobName = "reservation-reminder"
	JobNoShow        JobName = "no-show-expiry"
	JobStaleSessions JobName = "stale-session-cleanup"
)

var (
	ErrJobRunning = errors.New("job already running")
	ErrUnknownJob = errors.New("unknown job")
)

// StaleSessionCompleter force-completes a session the cleanup job found
type StaleSessionCompleter interface {
	CompleteStaleSession(ctx context.Context, session *domain.ChargingSession) (*domain.ChargingSession, error)
}

// Config holds job intervals
type Config struct {
	ReminderInterval      time.Duration
	NoShowInterval        time.Duration
	StaleSessionInterval  time.Duration
	RunImmediatelyOnStart bool
}

// DefaultConfig returns the production tick intervals
func DefaultConfig() Config {
	return Config{
		ReminderInterval:      5 * time.Minute,
		NoShowInterval:        time.Minute,
		StaleSessionInterval:  time.Hour,
		RunImmediatelyOnStart: true,
	}
}

// Report summarises one job tick
type Report struct {
	Job       JobName       `json:"job"`
	Scanned   int           `json:"scanned"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type jobFunc func(ctx context.Context, report *Report) error

// Scheduler runs the reconciliation jobs on independent timers. A job never
// overlaps itself, whether triggered by its timer or by RunNow.
type Scheduler struct {
	reservations ports.ReservationRepository
	sessions     ports.SessionRepository
	completer    StaleSessionCompleter
	notifier     ports.NotificationDispatcher
	soft         *besteffort.Runner
	policy       *domain.LifecyclePolicy
	cfg          Config
	log          *zap.Logger
	now          func() time.Time

	jobs  map[JobName]jobFunc
	locks map[JobName]*sync.Mutex

	cron   gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates the reconciliation scheduler; call Start to begin ticking
func NewScheduler(
	reservations ports.ReservationRepository,
	sessions ports.SessionRepository,
	completer StaleSessionCompleter,
	notifier ports.NotificationDispatcher,
	soft *besteffort.Runner,
	policy *domain.LifecyclePolicy,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Scheduler {
	if policy == nil {
		policy = domain.DefaultLifecyclePolicy()
	}

	s := &Scheduler{
		reservations: reservations,
		sessions:     sessions,
		completer:    completer,
		notifier:     notifier,
		soft:         soft,
		policy:       policy,
		cfg:          cfg,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		locks:        make(map[JobName]*sync.Mutex),
	}
	s.jobs = map[JobName]jobFunc{
		JobReminder:      s.sendReminders,
		JobNoShow:        s.expireNoShows,
		JobStaleSessions: s.completeStaleSessions,
	}
	for name := range s.jobs {
		s.locks[name] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the jobs with gocron and starts ticking
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	intervals := map[JobName]time.Duration{
		JobReminder:      s.cfg.ReminderInterval,
		JobNoShow:        s.cfg.NoShowInterval,
		JobStaleSessions: s.cfg.StaleSessionInterval,
	}

	for name, interval := range intervals {
		if interval <= 0 {
			s.log.Info("Reconciliation job disabled", zap.String("job", string(name)))
			continue
		}

		name := name
		opts := []gocron.JobOption{
			gocron.WithName(string(name)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if s.cfg.RunImmediatelyOnStart {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		_, err := cron.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				if _, err := s.RunNow(s.ctx, name); err != nil && !errors.Is(err, ErrJobRunning) {
					s.log.Error("Reconciliation job failed", zap.String("job", string(name)), zap.Error(err))
				}
			}),
			opts...,
		)
		if err != nil {
			_ = cron.Shutdown()
			return fmt.Errorf("failed to register job %s: %w", name, err)
		}

		s.log.Info("Reconciliation job scheduled",
			zap.String("job", string(name)),
			zap.Duration("interval", interval),
		)
	}

	s.cron = cron
	cron.Start()
	return nil
}

// Stop cancels in-flight ticks and waits for running jobs to return
func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

// RunNow runs one tick of job synchronously. It fails with ErrJobRunning if the
// same job is already in progress.
func (s *Scheduler) RunNow(ctx context.Context, job JobName) (Report, error) {
	fn, ok := s.jobs[job]
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}

	mu := s.locks[job]
	if !mu.TryLock() {
		return Report{Job: job}, ErrJobRunning
	}
	defer mu.Unlock()

	report := Report{Job: job, StartedAt: s.now()}
	start := time.Now()
	err := fn(ctx, &report)
	report.Duration = time.Since(start)

	telemetry.ReconciliationRunsTotal.WithLabelValues(string(job)).Inc()
	telemetry.ReconciliationDuration.WithLabelValues(string(job)).Observe(report.Duration.Seconds())

	if report.Scanned > 0 || err != nil {
		s.log.Info("Reconciliation tick finished",
			zap.String("job", string(job)),
			zap.Int("scanned", report.Scanned),
			zap.Int("processed", report.Processed),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Duration("duration", report.Duration),
			zap.Error(err),
		)
	}
	return report, err
}

// isolate processes one item; an error or panic is logged and counted but
// never stops the batch. errSkipped marks an item that changed since it was loaded.
func (s *Scheduler) isolate(job JobName, id string, report *Report, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	if errors.Is(err, errSkipped) {
		report.Skipped++
		telemetry.ReconciliationItemsTotal.WithLabelValues(string(job), "skipped").Inc()
		s.log.Debug("Reconciliation item skipped",
			zap.String("job", string(job)),
			zap.String("id", id),
		)
		return
	}
	if err != nil {
		report.Failed++
		telemetry.ReconciliationItemsTotal.WithLabelValues(string(job), "failed").Inc()
		s.log.Error("Reconciliation item failed",
			zap.String("job", string(job)),
			zap.String("id", id),
			zap.Error(err),
		)
		return
	}

	report.Processed++
	telemetry.ReconciliationItemsTotal.WithLabelValues(string(job), "processed").Inc()
}
