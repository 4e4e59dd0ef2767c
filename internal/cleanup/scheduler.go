// Package cleanup implements the deferred-cleanup scheduler: after a file is
// delivered, a notice that the copy was removed goes out once the configured
// delay elapses. Jobs are journaled through the delivery log so a restarted
// process can pick up where it left off.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
)

// Notifier receives the cleanup notification. Send failures are logged and
// dropped; cleanup is best-effort by design of the delivery contract.
type Notifier interface {
	SendText(ctx context.Context, subjectID int64, text string) error
}

// Journal persists scheduled jobs so they survive a restart. The catalog
// stores satisfy it through their delivery log.
type Journal interface {
	LogDelivery(ctx context.Context, rec *catalog.DeliveryRecord) (int64, error)
	MarkCleanupFired(ctx context.Context, id int64) error
	PendingCleanups(ctx context.Context) ([]catalog.DeliveryRecord, error)
}

// Handle identifies a scheduled job for cancellation.
type Handle string

type job struct {
	handle     Handle
	journalID  int64
	subjectID  int64
	resourceID int64
	timer      *time.Timer
	fired      bool
	cancelled  bool
}

// Scheduler arms one timer per delivered file. Each job fires at most once:
// the mutex-guarded fired/cancelled flags settle the race between the timer,
// Cancel, and Shutdown.
type Scheduler struct {
	notifier Notifier
	journal  Journal
	delay    time.Duration

	mu     sync.Mutex
	jobs   map[Handle]*job
	closed bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScheduler builds a Scheduler firing delay after each Schedule call.
func NewScheduler(notifier Notifier, journal Journal, delay time.Duration, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		notifier: notifier,
		journal:  journal,
		delay:    delay,
		jobs:     make(map[Handle]*job),
		logger:   slog.Default().With("component", "cleanup-scheduler"),
		metrics:  m,
	}
}

// Schedule journals a delivery and arms its cleanup timer, returning a handle
// usable with Cancel. A journal write failure does not block the delivery
// path: the job still runs in memory, it just will not survive a restart.
func (s *Scheduler) Schedule(ctx context.Context, subjectID, resourceID int64) Handle {
	now := time.Now().UTC()
	rec := &catalog.DeliveryRecord{
		SubjectID:   subjectID,
		ResourceID:  resourceID,
		DeliveredAt: now,
		CleanupAt:   now.Add(s.delay),
	}
	journalID, err := s.journal.LogDelivery(ctx, rec)
	if err != nil {
		s.logger.Error("delivery journal write failed", "subject_id", subjectID, "error", err)
	}
	return s.arm(journalID, subjectID, resourceID, s.delay)
}

// Cancel stops the job if it has not fired yet. Cancelling an unknown or
// already-fired handle is a no-op.
func (s *Scheduler) Cancel(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[handle]
	if !ok || j.fired || j.cancelled {
		return
	}
	j.cancelled = true
	j.timer.Stop()
	delete(s.jobs, handle)
	if s.metrics != nil {
		s.metrics.CleanupJobsTotal.WithLabelValues("cancelled").Inc()
	}
	s.logger.Info("cleanup cancelled", "handle", handle, "subject_id", j.subjectID)
}

// Restore reloads unfired jobs from the journal: future ones are re-armed
// for their remaining delay, overdue ones fire immediately. Call once at
// startup before serving traffic.
func (s *Scheduler) Restore(ctx context.Context) error {
	pending, err := s.journal.PendingCleanups(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	restored, overdue := 0, 0
	for _, rec := range pending {
		delay := rec.CleanupAt.Sub(now)
		if delay <= 0 {
			delay = 0
			overdue++
		} else {
			restored++
		}
		s.arm(rec.ID, rec.SubjectID, rec.ResourceID, delay)
	}
	s.logger.Info("cleanup jobs restored", "rearmed", restored, "fired_overdue", overdue)
	return nil
}

// Shutdown stops all pending timers without firing them. The journal keeps
// the unfired records, so the next Restore picks them back up.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for handle, j := range s.jobs {
		j.cancelled = true
		j.timer.Stop()
		delete(s.jobs, handle)
	}
}

// PendingCount reports the number of armed jobs.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) arm(journalID, subjectID, resourceID int64, delay time.Duration) Handle {
	handle := Handle(uuid.NewString())
	j := &job{
		handle:     handle,
		journalID:  journalID,
		subjectID:  subjectID,
		resourceID: resourceID,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return handle
	}
	s.jobs[handle] = j
	j.timer = time.AfterFunc(delay, func() { s.fire(j) })
	s.mu.Unlock()
	return j.handle
}

func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	if j.fired || j.cancelled {
		s.mu.Unlock()
		return
	}
	j.fired = true
	delete(s.jobs, j.handle)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	text := "Your file has been automatically removed for copyright protection. Request it again any time."
	if err := s.notifier.SendText(ctx, j.subjectID, text); err != nil {
		// Fire-and-forget: a lost notice is not retried.
		s.logger.Warn("cleanup notice not delivered", "subject_id", j.subjectID, "error", err)
	}
	if j.journalID != 0 {
		if err := s.journal.MarkCleanupFired(ctx, j.journalID); err != nil {
			s.logger.Error("journal mark failed", "journal_id", j.journalID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.CleanupJobsTotal.WithLabelValues("fired").Inc()
	}
	s.logger.Info("cleanup fired", "subject_id", j.subjectID, "resource_id", j.resourceID)
}
