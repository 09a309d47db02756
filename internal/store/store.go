package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/flowmesh/replayd/internal/logger"
	"github.com/flowmesh/replayd/internal/replay"
	"github.com/rs/zerolog"
)

const (
	jobKeyPrefix  = "job/"
	histKeyPrefix = "hist/"
)

// Store is a pebble-backed job store: job rows plus an append-only history
// log keyed (jobID, timestamp, seq) for efficient range scans.
type Store struct {
	dir   string
	db    *pebble.DB
	seq   atomic.Uint64
	log   zerolog.Logger
	mu    sync.RWMutex
	ready bool
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{
		dir: dir,
		log: logger.WithComponent("store"),
	}
}

// Start opens the underlying database
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	dbDir := filepath.Join(s.dir, "jobs")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := pebble.Open(dbDir, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	s.db = db

	s.ready = true
	s.log.Info().Str("dir", dbDir).Msg("Job store started")
	return nil
}

// Stop closes the underlying database
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close job store: %w", err)
	}
	s.db = nil
	s.ready = false
	s.log.Info().Msg("Job store stopped")
	return nil
}

// Ready returns true if the store is ready
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// CreateJob persists a new job row
func (s *Store) CreateJob(ctx context.Context, job *replay.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return fmt.Errorf("job store is not ready")
	}

	key := jobKey(job.ID)
	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("failed to check job existence: %w", err)
	}

	return s.putJob(job)
}

// UpdateJob overwrites an existing job row
func (s *Store) UpdateJob(ctx context.Context, job *replay.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return fmt.Errorf("job store is not ready")
	}

	if _, err := s.getJob(job.ID); err != nil {
		return err
	}
	return s.putJob(job)
}

// GetJob retrieves a job row by ID
func (s *Store) GetJob(ctx context.Context, jobID string) (*replay.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, fmt.Errorf("job store is not ready")
	}
	return s.getJob(jobID)
}

// DeleteJob removes a job row and, by cascade, its history
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return fmt.Errorf("job store is not ready")
	}

	if _, err := s.getJob(jobID); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(jobKey(jobID), nil); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	prefix := []byte(histKeyPrefix + jobID + "/")
	if err := batch.DeleteRange(prefix, upperBound(prefix), nil); err != nil {
		return fmt.Errorf("failed to delete job history: %w", err)
	}

	if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to commit job deletion: %w", err)
	}

	s.log.Info().Str("job", jobID).Msg("Job deleted")
	return nil
}

// Query filters and paginates job listings
type Query struct {
	Cluster   string
	Status    replay.Status
	Topic     string
	CreatedBy string
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

// ListJobs lists job rows matching a query, ordered by creation time descending
func (s *Store) ListJobs(ctx context.Context, q Query) ([]*replay.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, fmt.Errorf("job store is not ready")
	}

	prefix := []byte(jobKeyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var jobs []*replay.Job
	for iter.First(); iter.Valid(); iter.Next() {
		var job replay.Job
		if err := json.Unmarshal(iter.Value(), &job); err != nil {
			s.log.Warn().Err(err).Str("key", string(iter.Key())).Msg("Skipping undecodable job row")
			continue
		}
		if !matchesQuery(&job, q) {
			continue
		}
		jobs = append(jobs, &job)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	sortJobsByCreatedAtDesc(jobs)
	return paginate(jobs, q.Offset, q.Limit), nil
}

// AppendHistory appends a history entry for a job
func (s *Store) AppendHistory(ctx context.Context, entry *replay.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return fmt.Errorf("job store is not ready")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := histKey(entry.JobID, entry.Timestamp, s.seq.Add(1))
	if err := s.db.Set(key, data, &pebble.WriteOptions{}); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// HistoryPage paginates history listings
type HistoryPage struct {
	Offset int
	Limit  int
}

// ListHistory lists a job's history entries in timestamp order
func (s *Store) ListHistory(ctx context.Context, jobID string, page HistoryPage) ([]*replay.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready {
		return nil, fmt.Errorf("job store is not ready")
	}

	prefix := []byte(histKeyPrefix + jobID + "/")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var entries []*replay.HistoryEntry
	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if skipped < page.Offset {
			skipped++
			continue
		}
		if page.Limit > 0 && len(entries) >= page.Limit {
			break
		}
		var entry replay.HistoryEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			s.log.Warn().Err(err).Str("key", string(iter.Key())).Msg("Skipping undecodable history entry")
			continue
		}
		entries = append(entries, &entry)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return entries, nil
}

// PruneHistory removes history entries older than the cutoff across all
// jobs and returns the number removed
func (s *Store) PruneHistory(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return 0, fmt.Errorf("job store is not ready")
	}

	prefix := []byte(histKeyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()

	pruned := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var entry replay.HistoryEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		if entry.Timestamp.Before(cutoff) {
			key := append([]byte(nil), iter.Key()...)
			if err := batch.Delete(key, nil); err != nil {
				return 0, fmt.Errorf("failed to delete history entry: %w", err)
			}
			pruned++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterator error: %w", err)
	}

	if pruned > 0 {
		if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
			return 0, fmt.Errorf("failed to commit history prune: %w", err)
		}
		s.log.Info().Int("pruned", pruned).Time("cutoff", cutoff).Msg("History retention sweep completed")
	}
	return pruned, nil
}

func (s *Store) getJob(jobID string) (*replay.Job, error) {
	data, closer, err := s.db.Get(jobKey(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, replay.JobNotFoundError{JobID: jobID}
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	defer closer.Close()

	var job replay.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *Store) putJob(job *replay.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.db.Set(jobKey(job.ID), data, &pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}
	return nil
}

func jobKey(jobID string) []byte {
	return []byte(jobKeyPrefix + jobID)
}

// histKey is ordered by (jobID, timestamp, seq) so a prefix scan yields a
// job's entries in time order
func histKey(jobID string, ts time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%08d", histKeyPrefix, jobID, ts.UnixNano(), seq))
}

// upperBound returns the smallest key greater than every key with the prefix
func upperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}

func matchesQuery(job *replay.Job, q Query) bool {
	if q.Cluster != "" && job.Cluster != q.Cluster {
		return false
	}
	if q.Status != "" && job.Status != q.Status {
		return false
	}
	if q.Topic != "" && job.SourceTopic != q.Topic {
		return false
	}
	if q.CreatedBy != "" && job.CreatedBy != q.CreatedBy {
		return false
	}
	if q.From != nil && job.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && job.CreatedAt.After(*q.To) {
		return false
	}
	return true
}

func sortJobsByCreatedAtDesc(jobs []*replay.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

func paginate(jobs []*replay.Job, offset, limit int) []*replay.Job {
	if offset >= len(jobs) {
		return nil
	}
	jobs = jobs[offset:]
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}
