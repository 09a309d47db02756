package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowmesh/replayd/internal/filter"
	"github.com/flowmesh/replayd/internal/logclient"
	"github.com/flowmesh/replayd/internal/logger"
	"github.com/flowmesh/replayd/internal/progress"
	"github.com/flowmesh/replayd/internal/replay"
	"github.com/flowmesh/replayd/internal/transform"
	"github.com/rs/zerolog"
)

// JobStore is the persistence capability the runner needs
type JobStore interface {
	UpdateJob(ctx context.Context, job *replay.Job) error
	AppendHistory(ctx context.Context, entry *replay.HistoryEntry) error
}

// Config holds runner tuning knobs
type Config struct {
	// BatchSize is the maximum records read per batch from a partition
	BatchSize int
	// PartitionParallelism bounds concurrent partition readers per job
	PartitionParallelism int
	// TransientRetries bounds in-attempt retries of transient I/O errors
	TransientRetries int
	// TransientBackoff is the initial backoff between transient retries
	// (doubles per retry)
	TransientBackoff time.Duration
	// ThroughputWindow is the trailing window for throughput samples
	ThroughputWindow time.Duration
}

// DefaultConfig returns the default runner configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:            500,
		PartitionParallelism: 4,
		TransientRetries:     3,
		TransientBackoff:     500 * time.Millisecond,
		ThroughputWindow:     progress.DefaultWindow,
	}
}

// Runner executes one attempt of a replay job: it reads the resolved range
// from the source, applies the filter and transformation pipeline, delivers
// matched records to the destination, and streams progress and history.
type Runner struct {
	store JobStore
	logs  logclient.LogClient
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time

	// flushMu serializes progress flushes from concurrent partition readers
	flushMu sync.Mutex
}

// New creates a runner
func New(store JobStore, logs logclient.LogClient, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.PartitionParallelism <= 0 {
		cfg.PartitionParallelism = DefaultConfig().PartitionParallelism
	}
	if cfg.TransientBackoff <= 0 {
		cfg.TransientBackoff = DefaultConfig().TransientBackoff
	}
	return &Runner{
		store: store,
		logs:  logs,
		cfg:   cfg,
		log:   logger.WithComponent("runner"),
		now:   time.Now,
	}
}

// partitionRange is the resolved [start, end) bound for one partition
type partitionRange struct {
	partition int32
	start     int64
	end       int64
}

// Run executes one attempt. It mutates job.Progress as the attempt advances
// (the caller holds the job's execution lease) and appends history entries
// for the attempt's lifecycle. It returns nil on success, a context error on
// cooperative cancellation, and any other error on attempt failure.
func (r *Runner) Run(ctx context.Context, job *replay.Job) error {
	tracker := progress.NewTracker(r.cfg.ThroughputWindow)

	r.appendHistory(ctx, job, replay.ActionStarted, 0, nil, map[string]string{
		"topic":       job.SourceTopic,
		"destination": destination(job),
		"attempt":     fmt.Sprintf("%d", job.RetryCount+1),
	})

	ranges, err := r.resolveRanges(ctx, job)
	if err != nil {
		r.failAttempt(ctx, job, tracker, err)
		return err
	}

	var total int64
	for _, pr := range ranges {
		total += pr.end - pr.start
	}
	tracker.SetTotal(total)
	r.flushProgress(ctx, job, tracker, false)

	committed, err := r.replayPartitions(ctx, job, tracker, ranges)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			snap := tracker.Snapshot()
			r.appendHistory(ctx, job, replay.ActionCancelled, snap.MessagesProcessed, &snap.Throughput, nil)
			job.Progress = snap
			return err
		}
		r.failAttempt(ctx, job, tracker, err)
		return err
	}

	// Offset-repositioning destination: commit the end position reached
	// per partition, now that the range is fully processed.
	if job.ConsumerGroup != "" {
		for partition, offset := range committed {
			p, off := partition, offset
			err := r.withRetry(ctx, "commit offset", func() error {
				return r.logs.CommitOffset(ctx, job.ConsumerGroup, job.SourceTopic, p, off)
			})
			if err != nil {
				r.failAttempt(ctx, job, tracker, err)
				return err
			}
		}
	}

	snap := tracker.Snapshot()
	job.Progress = snap
	r.appendHistory(ctx, job, replay.ActionCompleted, snap.MessagesProcessed, &snap.Throughput, map[string]string{
		"matched":  fmt.Sprintf("%d", snap.MessagesMatched),
		"produced": fmt.Sprintf("%d", snap.MessagesProduced),
		"failed":   fmt.Sprintf("%d", snap.MessagesFailed),
	})

	r.log.Info().
		Str("job", job.ID).
		Int64("processed", snap.MessagesProcessed).
		Int64("produced", snap.MessagesProduced).
		Msg("Replay attempt completed")
	return nil
}

// resolveRanges resolves the effective partition set and per-partition
// [start, end) bounds at attempt entry. An absent end bound resolves to the
// current high-water mark so the attempt is guaranteed to terminate.
func (r *Runner) resolveRanges(ctx context.Context, job *replay.Job) ([]partitionRange, error) {
	partitions := job.Partitions
	if len(partitions) == 0 {
		var err error
		partitions, err = r.partitionsWithRetry(ctx, job.SourceTopic)
		if err != nil {
			return nil, err
		}
	}

	ranges := make([]partitionRange, 0, len(partitions))
	for _, p := range partitions {
		pr := partitionRange{partition: p}

		switch {
		case job.StartOffset != nil:
			pr.start = *job.StartOffset
		case job.StartTimestamp != nil:
			off, err := r.offsetForTimestampWithRetry(ctx, job.SourceTopic, p, *job.StartTimestamp)
			if err != nil {
				return nil, err
			}
			pr.start = off
		default:
			pr.start = 0
		}

		switch {
		case job.EndOffset != nil:
			pr.end = *job.EndOffset
		case job.EndTimestamp != nil:
			off, err := r.offsetForTimestampWithRetry(ctx, job.SourceTopic, p, *job.EndTimestamp)
			if err != nil {
				return nil, err
			}
			pr.end = off
		default:
			hwm, err := r.highWaterMarkWithRetry(ctx, job.SourceTopic, p)
			if err != nil {
				return nil, err
			}
			pr.end = hwm
		}

		if pr.end < pr.start {
			pr.end = pr.start
		}
		ranges = append(ranges, pr)
	}
	return ranges, nil
}

// replayPartitions fans out partition replays with bounded parallelism and
// returns the per-partition end positions reached. Writes within a
// partition are serialized by its reader goroutine, preserving the source
// partition's relative order at the destination.
func (r *Runner) replayPartitions(ctx context.Context, job *replay.Job, tracker *progress.Tracker, ranges []partitionRange) (map[int32]int64, error) {
	// attemptCtx lets a failing partition stop its siblings without
	// masking a cooperative cancellation of the parent context
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, r.cfg.PartitionParallelism)
	errCh := make(chan error, len(ranges))
	committed := make(map[int32]int64, len(ranges))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, pr := range ranges {
		pr := pr
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-attemptCtx.Done():
				return
			}
			defer func() { <-sem }()

			end, err := r.replayPartition(attemptCtx, job, tracker, pr)
			if err != nil {
				errCh <- err
				cancel()
				return
			}
			mu.Lock()
			committed[pr.partition] = end
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return committed, nil
}

// replayPartition replays one partition's range batch by batch and returns
// the end position reached. Cancellation is cooperative: it is checked
// between batches, so an in-flight batch always completes.
func (r *Runner) replayPartition(ctx context.Context, job *replay.Job, tracker *progress.Tracker, pr partitionRange) (int64, error) {
	current := pr.start

	for current < pr.end {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		var records []*logclient.Record
		err := r.withRetry(ctx, "read range", func() error {
			var readErr error
			records, readErr = r.logs.ReadRange(ctx, job.SourceTopic, pr.partition, current, pr.end, r.cfg.BatchSize)
			return readErr
		})
		if err != nil {
			return current, err
		}
		if len(records) == 0 {
			// Range exhausted early (e.g. compaction); the end position
			// reached is the resolved bound
			r.log.Debug().
				Str("job", job.ID).
				Int32("partition", pr.partition).
				Int64("offset", current).
				Msg("No more records before end bound")
			current = pr.end
			break
		}

		var matched, produced, failed int64
		for _, rec := range records {
			if !filter.Matches(rec, job.Filter) {
				current = rec.Offset + 1
				continue
			}
			matched++

			out, err := transform.Apply(rec, job.Transform)
			if err != nil {
				// Per-record error: counted and skipped, never fails the job
				failed++
				r.log.Warn().
					Err(err).
					Str("job", job.ID).
					Int32("partition", pr.partition).
					Int64("offset", rec.Offset).
					Msg("Record transformation failed, skipping")
				current = rec.Offset + 1
				continue
			}

			if job.TargetTopic != "" {
				err := r.withRetry(ctx, "produce", func() error {
					return r.logs.Produce(ctx, job.TargetTopic, out)
				})
				if err != nil {
					return current, err
				}
				produced++
			}
			current = rec.Offset + 1
		}

		tracker.Observe(int64(len(records)), matched, produced, failed)
		r.flushProgress(ctx, job, tracker, true)
	}

	return current, nil
}

// flushProgress snapshots the tracker into the job row and optionally
// appends a batch marker to the history trail
func (r *Runner) flushProgress(ctx context.Context, job *replay.Job, tracker *progress.Tracker, marker bool) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	snap := tracker.Snapshot()
	job.Progress = snap

	if err := r.store.UpdateJob(ctx, job); err != nil {
		r.log.Warn().Err(err).Str("job", job.ID).Msg("Failed to persist progress")
	}
	if marker {
		r.appendHistory(ctx, job, replay.ActionMessageProcessed, snap.MessagesProcessed, &snap.Throughput, nil)
	}
}

func (r *Runner) failAttempt(ctx context.Context, job *replay.Job, tracker *progress.Tracker, cause error) {
	snap := tracker.Snapshot()
	job.Progress = snap
	r.appendHistory(ctx, job, replay.ActionFailed, snap.MessagesProcessed, &snap.Throughput, map[string]string{
		"error": cause.Error(),
	})
	r.log.Error().Err(cause).Str("job", job.ID).Msg("Replay attempt failed")
}

func (r *Runner) appendHistory(ctx context.Context, job *replay.Job, action replay.Action, delta int64, throughput *float64, details map[string]string) {
	entry := &replay.HistoryEntry{
		JobID:        job.ID,
		Action:       action,
		Timestamp:    r.now(),
		MessageDelta: delta,
		Throughput:   throughput,
		Details:      details,
	}
	if err := r.store.AppendHistory(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("job", job.ID).Str("action", string(action)).Msg("Failed to append history entry")
	}
}

// withRetry retries transient I/O errors with doubling backoff before
// escalating to an attempt failure
func (r *Runner) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := r.cfg.TransientBackoff
	var err error
	for attempt := 0; attempt <= r.cfg.TransientRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("Transient I/O error")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Runner) partitionsWithRetry(ctx context.Context, topic string) ([]int32, error) {
	var partitions []int32
	err := r.withRetry(ctx, "list partitions", func() error {
		var e error
		partitions, e = r.logs.Partitions(ctx, topic)
		return e
	})
	return partitions, err
}

func (r *Runner) highWaterMarkWithRetry(ctx context.Context, topic string, partition int32) (int64, error) {
	var hwm int64
	err := r.withRetry(ctx, "high water mark", func() error {
		var e error
		hwm, e = r.logs.HighWaterMark(ctx, topic, partition)
		return e
	})
	return hwm, err
}

func (r *Runner) offsetForTimestampWithRetry(ctx context.Context, topic string, partition int32, ts time.Time) (int64, error) {
	var off int64
	err := r.withRetry(ctx, "offset for timestamp", func() error {
		var e error
		off, e = r.logs.OffsetForTimestamp(ctx, topic, partition, ts)
		return e
	})
	return off, err
}

func destination(job *replay.Job) string {
	if job.TargetTopic != "" {
		return "topic:" + job.TargetTopic
	}
	return "group:" + job.ConsumerGroup
}
