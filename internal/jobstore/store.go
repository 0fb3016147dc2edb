package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"videotemplate-render-service/internal/blob"
	"videotemplate-render-service/internal/cache"
)

const (
	kvKeyPrefix   = "video-job:"
	blobKeyPrefix = "job-snapshots/"

	// writePoolSize bounds the number of goroutines dispatching fire-and-forget
	// writes to KV/blob, per SPEC_FULL.md §9 ("not one goroutine per write").
	writePoolSize = 8
	writeQueueLen = 256
)

// Store is the in-memory job table with write-through replication.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	cache *cache.Cache
	blob  *blob.Store
	ttl   time.Duration

	writeQueue chan func()
	stopSweep  chan struct{}
}

// New constructs a Store. cache/blob may be nil when unconfigured (§6).
func New(c *cache.Cache, b *blob.Store, ttl time.Duration) *Store {
	s := &Store{
		jobs:       make(map[string]*Job),
		cache:      c,
		blob:       b,
		ttl:        ttl,
		writeQueue: make(chan func(), writeQueueLen),
		stopSweep:  make(chan struct{}),
	}

	for i := 0; i < writePoolSize; i++ {
		go s.writeWorker()
	}
	go s.evictionSweep()

	return s
}

func (s *Store) writeWorker() {
	for fn := range s.writeQueue {
		fn()
	}
}

// Close stops the background eviction sweep. The write-through workers are
// not stopped: writeQueue is never closed, so they keep waiting for work, and
// mutations made after Close are still replicated.
func (s *Store) Close() {
	close(s.stopSweep)
}

// Create inserts a brand new job record.
func (s *Store) Create(job *Job) {
	clone := job.Clone()

	s.mu.Lock()
	s.jobs[clone.ID] = clone
	s.mu.Unlock()

	s.replicate(clone)
}

// Get reads a job, trying in-memory first, then KV, then blob (§4.3).
func (s *Store) Get(ctx context.Context, id string) (*Job, bool) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if ok {
		return job.Clone(), true
	}

	if s.cache.Enabled() {
		if data, err := s.cache.Get(ctx, kvKeyPrefix+id); err == nil {
			var j Job
			if jsonErr := json.Unmarshal(data, &j); jsonErr == nil {
				return &j, true
			}
		} else if !cache.IsMiss(err) {
			slog.Warn("job store: kv read failed", "job_id", id, "error", err)
		}
	}

	if s.blob.Enabled() {
		data, err := s.blob.Get(ctx, blobKeyPrefix+id+".json")
		if err == nil {
			var j Job
			if jsonErr := json.Unmarshal(data, &j); jsonErr == nil {
				return &j, true
			}
		}
	}

	return nil, false
}

// Update applies mutator to a clone of the job, atomically swaps the in-memory
// entry, and replicates the result. Returns the updated clone, or nil if id is
// unknown. Update sets UpdatedAt after mutator runs, overriding any value the
// mutator set.
func (s *Store) Update(id string, mutator func(*Job)) *Job {
	s.mu.Lock()
	current, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	updated := current.Clone()
	mutator(updated)
	updated.UpdatedAt = time.Now()
	s.jobs[id] = updated
	s.mu.Unlock()

	s.replicate(updated)
	return updated.Clone()
}

// Delete removes a job from memory and best-effort from KV/blob.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()

	if s.cache.Enabled() {
		if err := s.cache.Delete(ctx, kvKeyPrefix+id); err != nil {
			slog.Warn("job store: kv delete failed", "job_id", id, "error", err)
		}
	}
	if s.blob.Enabled() {
		if err := s.blob.Delete(ctx, blobKeyPrefix+id+".json"); err != nil {
			slog.Warn("job store: blob delete failed", "job_id", id, "error", err)
		}
	}
}

// ActiveCountForOwner counts jobs in {pending, processing} for owner (§4.4).
func (s *Store) ActiveCountForOwner(owner string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, j := range s.jobs {
		if j.Owner == owner && (j.Status == StatusPending || j.Status == StatusProcessing) {
			count++
		}
	}
	return count
}

// replicate performs the fire-and-forget write-through to KV and blob.
// Errors are logged and swallowed, never surfaced to the caller (§4.3).
func (s *Store) replicate(job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		slog.Warn("job store: marshal snapshot failed", "job_id", job.ID, "error", err)
		return
	}

	select {
	case s.writeQueue <- func() {
		s.writeKV(job.ID, data)
		s.writeBlob(job.ID, data)
	}:
	default:
		slog.Warn("job store: write queue full, dropping replication", "job_id", job.ID)
	}
}

func (s *Store) writeKV(id string, data []byte) {
	if !s.cache.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, kvKeyPrefix+id, data, s.ttl); err != nil {
		slog.Warn("job store: kv write failed", "job_id", id, "error", err)
	}
}

func (s *Store) writeBlob(id string, data []byte) {
	if !s.blob.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.blob.Put(ctx, fmt.Sprintf("%s%s.json", blobKeyPrefix, id), data, "application/json"); err != nil {
		slog.Warn("job store: blob write failed", "job_id", id, "error", err)
	}
}

// evictionSweep periodically removes in-memory records whose FinishedAt
// predates the snapshot TTL, since the spec leaves eviction to the
// implementer (§9 open questions).
func (s *Store) evictionSweep() {
	interval := s.ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for id, j := range s.jobs {
				if j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
					delete(s.jobs, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
