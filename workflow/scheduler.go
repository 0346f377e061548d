package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/mmdatafocus/church_backend/workflow")

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) (any, error)
}

// Scheduler runs each job on its own ticker until Stop.
// Every run holds the redis lock job:<name> so only one instance does the work.
type Scheduler struct {
	Logger  *logrus.Logger
	Jobs    []Job
	LockTTL time.Duration
	Now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Logger:  logger,
		Jobs:    DefaultJobs(),
		LockTTL: 30 * time.Minute,
		Now:     time.Now,
	}
}

func DefaultJobs() []Job {
	return []Job{
		{
			Name:     "recurring_donations",
			Interval: config.DurationSecondsFromEnv("SCHEDULER_INTERVAL_SECONDS", time.Hour),
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return RunRecurringDonations(ctx, now)
			},
		},
		{
			Name:     "pledge_reminders",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				return RunPledgeReminders(ctx, now)
			},
		},
		{
			Name:     "annual_tax_receipts",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context, now time.Time) (any, error) {
				if now.Month() != time.January {
					return nil, nil
				}
				return RunAnnualTaxReceipts(ctx, now.Year()-1)
			},
		},
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.Jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop cancels the loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunJob(ctx, job); err != nil && ctx.Err() == nil {
			config.LogError(s.Logger, "workflow", "Scheduler.RunJob", job.Name, nil, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunJob runs job once under its lock. It returns false when another instance holds the lock.
func (s *Scheduler) RunJob(ctx context.Context, job Job) (bool, error) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "job:"+job.Name, s.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	ctx, span := tracer.Start(ctx, "job."+job.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("job.name", job.Name)))
	defer span.End()
	ctx = utils.SystemContext(ctx)

	started := time.Now()
	result, err := job.Run(ctx, s.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, err
	}
	span.SetAttributes(attribute.Int64("job.duration_ms", time.Since(started).Milliseconds()))
	if s.Logger != nil && result != nil {
		s.Logger.WithFields(logrus.Fields{
			"job":    job.Name,
			"ms":     time.Since(started).Milliseconds(),
			"result": result,
		}).Info("job finished")
	}
	return true, nil
}

func RunRecurringDonations(ctx context.Context, now time.Time) (*models.RecurringRunResult, error) {
	return models.ProcessDueRecurringDonations(ctx, now)
}

type PledgeReminderResult struct {
	MarkedOverdue int `json:"marked_overdue"`
	Reminded      int `json:"reminded"`
}

// RunPledgeReminders flags overdue pledges then queues reminders for those that are due.
func RunPledgeReminders(ctx context.Context, now time.Time) (*PledgeReminderResult, error) {
	marked, err := models.MarkOverduePledges(ctx, now)
	if err != nil {
		return nil, err
	}
	reminded, err := models.QueuePledgeReminders(ctx, now)
	if err != nil {
		return nil, err
	}
	return &PledgeReminderResult{MarkedOverdue: marked, Reminded: reminded}, nil
}

func RunAnnualTaxReceipts(ctx context.Context, year int) (*models.AnnualReceiptResult, error) {
	return models.GenerateAnnualTaxReceipts(ctx, year)
}
