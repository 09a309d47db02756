package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/replayd/internal/logger"
	"github.com/flowmesh/replayd/internal/metrics"
	"github.com/flowmesh/replayd/internal/replay"
	"github.com/flowmesh/replayd/internal/retry"
	"github.com/flowmesh/replayd/internal/schedule"
	"github.com/flowmesh/replayd/internal/store"
	"github.com/flowmesh/replayd/internal/tracing"
)

// JobStore is the persistence surface the supervisor operates on
type JobStore interface {
	CreateJob(ctx context.Context, job *replay.Job) error
	UpdateJob(ctx context.Context, job *replay.Job) error
	GetJob(ctx context.Context, jobID string) (*replay.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, q store.Query) ([]*replay.Job, error)
	AppendHistory(ctx context.Context, entry *replay.HistoryEntry) error
	ListHistory(ctx context.Context, jobID string, page store.HistoryPage) ([]*replay.HistoryEntry, error)
	PruneHistory(ctx context.Context, cutoff time.Time) (int, error)
}

// JobRunner executes one attempt of a job
type JobRunner interface {
	Run(ctx context.Context, job *replay.Job) error
}

// Config holds supervisor tuning knobs
type Config struct {
	// Workers is the number of concurrent job executors
	Workers int
	// PollInterval is the due-job scan interval
	PollInterval time.Duration
	// HistoryRetention bounds the age of history entries (0 disables pruning)
	HistoryRetention time.Duration
	// RetentionSweepInterval is the interval between retention sweeps
	RetentionSweepInterval time.Duration
}

// DefaultConfig returns the default supervisor configuration
func DefaultConfig() Config {
	return Config{
		Workers:                4,
		PollInterval:           time.Second,
		HistoryRetention:       30 * 24 * time.Hour,
		RetentionSweepInterval: time.Hour,
	}
}

// lease marks a job's single in-flight execution attempt
type lease struct {
	cancel     context.CancelFunc
	done       chan struct{}
	userCancel bool
}

// Supervisor owns the replay job lifecycle: it admits submissions, scans for
// due PENDING jobs, executes them through the runner with at-most-one
// concurrent attempt per job, and applies the retry and reschedule policies
// to attempt outcomes.
type Supervisor struct {
	store   JobStore
	runner  JobRunner
	cfg     Config
	jobMet  *metrics.JobMetrics
	log     zerolog.Logger
	now     func() time.Time
	dueCh   chan string
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	leases map[string]*lease
	ready  bool
}

// New creates a supervisor. jobMet may be nil when metrics are disabled.
func New(st JobStore, runner JobRunner, cfg Config, jobMet *metrics.JobMetrics) *Supervisor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Supervisor{
		store:  st,
		runner: runner,
		cfg:    cfg,
		jobMet: jobMet,
		log:    logger.WithComponent("supervisor"),
		now:    time.Now,
		leases: make(map[string]*lease),
	}
}

// Start launches the worker pool, the due-job scanner, and the retention sweep
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	s.baseCtx, s.stop = context.WithCancel(context.Background())
	s.dueCh = make(chan string, s.cfg.Workers*2)

	if err := s.recoverInterrupted(ctx); err != nil {
		s.stop()
		return err
	}

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.scanLoop()
	if s.cfg.HistoryRetention > 0 && s.cfg.RetentionSweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}

	s.ready = true
	s.log.Info().Int("workers", s.cfg.Workers).Dur("poll_interval", s.cfg.PollInterval).Msg("Supervisor started")
	return nil
}

// Stop cancels in-flight attempts and waits for workers to drain. Jobs whose
// attempt was interrupted by shutdown are re-queued as PENDING.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil
	}
	s.ready = false
	s.stop()
	s.mu.Unlock()

	s.log.Info().Msg("Stopping supervisor")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("Supervisor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready returns true if the supervisor is accepting work
func (s *Supervisor) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Submit validates a request, builds a PENDING job with its first scheduled
// run, and persists it
func (s *Supervisor) Submit(ctx context.Context, req replay.Request) (*replay.Job, error) {
	now := s.now()
	job, err := replay.NewJob(req, now)
	if err != nil {
		return nil, err
	}

	if next, ok := schedule.NextRun(job.Schedule, nil, now); ok {
		job.NextScheduledRun = &next
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job", job.ID).
		Str("topic", job.SourceTopic).
		Str("schedule", string(job.Schedule.Type)).
		Msg("Replay job submitted")
	return job, nil
}

// GetJob returns a job by id
func (s *Supervisor) GetJob(ctx context.Context, jobID string) (*replay.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// ListJobs lists jobs matching a query
func (s *Supervisor) ListJobs(ctx context.Context, q store.Query) ([]*replay.Job, error) {
	return s.store.ListJobs(ctx, q)
}

// GetHistory returns a page of a job's history trail
func (s *Supervisor) GetHistory(ctx context.Context, jobID string, page store.HistoryPage) ([]*replay.HistoryEntry, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, jobID, page)
}

// Cancel cancels a job. A RUNNING job's attempt is cancelled cooperatively
// through its lease; a PENDING job transitions to CANCELLED directly.
// Terminal jobs cannot be cancelled.
func (s *Supervisor) Cancel(ctx context.Context, jobID string) error {
	// The lease check and the status write form one critical section with
	// claim, so a scan cannot dispatch the job between "no lease" and the
	// CANCELLED write.
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[jobID]; ok {
		l.userCancel = true
		// cancel is nil while the job sits in the dispatch queue; the
		// worker checks userCancel before starting the attempt
		if l.cancel != nil {
			l.cancel()
		}
		s.log.Info().Str("job", jobID).Msg("Cancelling running replay job")
		return nil
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !replay.CanTransition(job.Status, replay.StatusCancelled) {
		return replay.InvalidStateTransitionError{JobID: jobID, Current: job.Status, Requested: replay.StatusCancelled}
	}

	now := s.now()
	job.Status = replay.StatusCancelled
	job.CompletedAt = &now
	job.NextScheduledRun = nil
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	s.appendHistory(ctx, jobID, replay.ActionCancelled, nil)
	s.log.Info().Str("job", jobID).Msg("Replay job cancelled")
	return nil
}

// Retry manually re-queues a FAILED job with a fresh retry budget
func (s *Supervisor) Retry(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != replay.StatusFailed {
		return replay.InvalidStateTransitionError{JobID: jobID, Current: job.Status, Requested: replay.StatusPending}
	}

	now := s.now()
	job.Status = replay.StatusPending
	job.RetryCount = 0
	job.ErrorMessage = ""
	job.NextScheduledRun = &now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	s.appendHistory(ctx, jobID, replay.ActionRetried, map[string]string{"manual": "true"})
	s.log.Info().Str("job", jobID).Msg("Replay job re-queued manually")
	return nil
}

// Delete removes a terminal job and its history. Running or pending jobs
// must be cancelled first.
func (s *Supervisor) Delete(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	_, running := s.leases[jobID]
	s.mu.Unlock()
	if running || !job.Status.Terminal() {
		return replay.JobRunningError{JobID: jobID}
	}

	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.log.Info().Str("job", jobID).Msg("Replay job deleted")
	return nil
}

// recoverInterrupted re-queues jobs a previous process left RUNNING
func (s *Supervisor) recoverInterrupted(ctx context.Context) error {
	jobs, err := s.store.ListJobs(ctx, store.Query{Status: replay.StatusRunning})
	if err != nil {
		return fmt.Errorf("failed to scan for interrupted jobs: %w", err)
	}
	now := s.now()
	for _, job := range jobs {
		job.Status = replay.StatusPending
		job.NextScheduledRun = &now
		if err := s.store.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to re-queue interrupted job %s: %w", job.ID, err)
		}
		s.log.Warn().Str("job", job.ID).Msg("Re-queued job interrupted by previous shutdown")
	}
	return nil
}

// scanLoop periodically scans for due PENDING jobs and dispatches them
func (s *Supervisor) scanLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			close(s.dueCh)
			return
		case <-ticker.C:
			s.scanOnce()
		}
	}
}

// scanOnce claims a lease for each due PENDING job and enqueues it for a
// worker. The lease is claimed before enqueueing so a job is never
// dispatched twice across ticks.
func (s *Supervisor) scanOnce() {
	ctx := s.baseCtx
	now := s.now()

	jobs, err := s.store.ListJobs(ctx, store.Query{Status: replay.StatusPending})
	if err != nil {
		s.log.Error().Err(err).Msg("Due-job scan failed")
		return
	}

	for _, job := range jobs {
		if job.NextScheduledRun != nil && job.NextScheduledRun.After(now) {
			continue
		}
		if !s.claim(job.ID) {
			continue
		}
		select {
		case s.dueCh <- job.ID:
		default:
			// Workers saturated; next tick retries
			s.release(job.ID)
		}
	}

	s.updateStatusGauge(ctx)
}

func (s *Supervisor) updateStatusGauge(ctx context.Context) {
	if s.jobMet == nil {
		return
	}
	jobs, err := s.store.ListJobs(ctx, store.Query{})
	if err != nil {
		return
	}
	counts := map[string]int{
		string(replay.StatusPending):   0,
		string(replay.StatusRunning):   0,
		string(replay.StatusCompleted): 0,
		string(replay.StatusFailed):    0,
		string(replay.StatusCancelled): 0,
	}
	for _, job := range jobs {
		counts[string(job.Status)]++
	}
	s.jobMet.SetJobsByStatus(counts)
}

// worker pulls due job ids and executes them
func (s *Supervisor) worker() {
	defer s.wg.Done()

	for jobID := range s.dueCh {
		s.execute(jobID)
	}
}

// claim acquires the execution lease for a job; false if already held
func (s *Supervisor) claim(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.leases[jobID]; held {
		return false
	}
	s.leases[jobID] = &lease{done: make(chan struct{})}
	return true
}

func (s *Supervisor) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.leases[jobID]; ok {
		if l.cancel != nil {
			l.cancel()
		}
		close(l.done)
		delete(s.leases, jobID)
	}
}

// execute runs one attempt of a claimed job and applies the outcome policy
func (s *Supervisor) execute(jobID string) {
	defer s.release(jobID)

	ctx := s.baseCtx
	job, err := s.store.GetJob(context.Background(), jobID)
	if err != nil {
		s.log.Error().Err(err).Str("job", jobID).Msg("Failed to load claimed job")
		return
	}
	if job.Status != replay.StatusPending {
		return
	}

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if l, ok := s.leases[jobID]; ok {
		l.cancel = cancel
		if l.userCancel {
			cancel()
		}
	}
	s.mu.Unlock()

	started := s.now()
	job.Status = replay.StatusRunning
	job.StartedAt = &started
	job.LastScheduledRun = &started
	job.NextScheduledRun = nil
	job.CompletedAt = nil
	job.ErrorMessage = ""
	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		s.log.Error().Err(err).Str("job", jobID).Msg("Failed to mark job running")
		return
	}

	spanCtx, span := otel.Tracer("replayd/supervisor").Start(execCtx, "replay.attempt",
		trace.WithAttributes(
			attribute.String(tracing.AttrJobID, job.ID),
			attribute.String(tracing.AttrTopic, job.SourceTopic),
			attribute.Int(tracing.AttrJobAttempt, job.RetryCount+1),
		),
	)
	runErr := s.runner.Run(spanCtx, job)
	switch {
	case runErr == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(runErr, context.Canceled):
		span.SetAttributes(attribute.String(tracing.AttrJobStatus, string(replay.StatusCancelled)))
	default:
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "attempt failed")
	}
	span.SetAttributes(attribute.Int64(tracing.AttrRecordsProcessed, job.Progress.MessagesProcessed))
	span.End()

	s.finish(job, started, runErr)
}

// finish maps an attempt outcome onto the job's next lifecycle state
func (s *Supervisor) finish(job *replay.Job, started time.Time, runErr error) {
	ctx := context.Background()
	now := s.now()
	duration := now.Sub(started)

	switch {
	case runErr == nil:
		job.Status = replay.StatusCompleted
		job.CompletedAt = &now
		job.RetryCount = 0
		s.jobMet.RecordAttempt("completed", duration)
		s.recordProgress(job)

		// Recurring jobs go straight back to PENDING at their next instant
		if job.Schedule.Type == schedule.TypeRecurring {
			if next, ok := schedule.NextRun(job.Schedule, job.LastScheduledRun, now); ok {
				if err := s.store.UpdateJob(ctx, job); err != nil {
					s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to persist completion")
					return
				}
				job.Status = replay.StatusPending
				job.NextScheduledRun = &next
				if err := s.store.UpdateJob(ctx, job); err != nil {
					s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to reschedule recurring job")
				}
				s.log.Info().Str("job", job.ID).Time("next_run", next).Msg("Recurring job rescheduled")
				return
			}
		}
		if err := s.store.UpdateJob(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to persist completion")
		}

	case errors.Is(runErr, context.Canceled):
		s.recordProgress(job)
		if s.userCancelled(job.ID) {
			job.Status = replay.StatusCancelled
			job.CompletedAt = &now
			s.jobMet.RecordAttempt("cancelled", duration)
		} else {
			// Shutdown interruption: re-queue so the job runs after restart
			job.Status = replay.StatusPending
			job.NextScheduledRun = &now
		}
		if err := s.store.UpdateJob(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to persist cancellation")
		}

	default:
		job.Status = replay.StatusFailed
		job.CompletedAt = &now
		job.ErrorMessage = runErr.Error()
		s.jobMet.RecordAttempt("failed", duration)
		s.recordProgress(job)
		if err := s.store.UpdateJob(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to persist failure")
			return
		}

		if retry.ShouldRetry(job) {
			next := now.Add(retry.Delay(job))
			job.Status = replay.StatusPending
			job.RetryCount++
			job.NextScheduledRun = &next
			if err := s.store.UpdateJob(ctx, job); err != nil {
				s.log.Error().Err(err).Str("job", job.ID).Msg("Failed to queue retry")
				return
			}
			s.appendHistory(ctx, job.ID, replay.ActionRetried, map[string]string{
				"retry_count": fmt.Sprintf("%d", job.RetryCount),
				"error":       runErr.Error(),
			})
			s.jobMet.RecordRetry()
			s.log.Warn().
				Err(runErr).
				Str("job", job.ID).
				Int("retry_count", job.RetryCount).
				Int("max_retries", job.MaxRetries).
				Time("next_run", next).
				Msg("Attempt failed, retry queued")
		} else {
			s.log.Error().Err(runErr).Str("job", job.ID).Int("retry_count", job.RetryCount).Msg("Replay job failed")
		}
	}
}

func (s *Supervisor) recordProgress(job *replay.Job) {
	if s.jobMet == nil {
		return
	}
	p := job.Progress
	s.jobMet.RecordProgress(job.SourceTopic, p.MessagesProcessed, p.MessagesMatched, p.MessagesProduced, p.MessagesFailed, p.Throughput)
}

func (s *Supervisor) userCancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[jobID]
	return ok && l.userCancel
}

func (s *Supervisor) appendHistory(ctx context.Context, jobID string, action replay.Action, details map[string]string) {
	entry := &replay.HistoryEntry{
		JobID:     jobID,
		Action:    action,
		Timestamp: s.now(),
		Details:   details,
	}
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("job", jobID).Str("action", string(action)).Msg("Failed to append history entry")
	}
}

// sweepLoop prunes history entries older than the retention window
func (s *Supervisor) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RetentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-s.cfg.HistoryRetention)
			pruned, err := s.store.PruneHistory(context.Background(), cutoff)
			if err != nil {
				s.log.Error().Err(err).Msg("History retention sweep failed")
				continue
			}
			if pruned > 0 {
				s.log.Info().Int("pruned", pruned).Time("cutoff", cutoff).Msg("History retention sweep completed")
			}
		}
	}
}
