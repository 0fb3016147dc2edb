// Package queue implements the Queue & Worker (§4.4) and the opportunistic
// Supervisor (§4.5): a FIFO of pending job IDs, a single consumer goroutine
// that renders every source×template×variant combination for the job at the
// head, and a generation counter that fences a stalled worker out once the
// supervisor has declared it timed out.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"videotemplate-render-service/internal/jobstore"
	"videotemplate-render-service/internal/render"
)

const defaultJobDuration = 2 * time.Minute

// Queue owns the pending sequence and the single worker goroutine that
// drains it.
type Queue struct {
	mu sync.Mutex

	store  *jobstore.Store
	engine *render.Engine

	maxActiveJobsPerOwner int
	stallThreshold        int
	cooldown              time.Duration

	pending      []string
	processingID string
	startedAt    time.Time
	generation   uint64

	stallCount    int
	cooldownUntil time.Time

	durations *durationTracker
	running   bool
}

// New constructs a Queue bound to the given store and render engine.
func New(store *jobstore.Store, engine *render.Engine, maxActiveJobsPerOwner, stallThreshold int, cooldown time.Duration) *Queue {
	return &Queue{
		store:                 store,
		engine:                engine,
		maxActiveJobsPerOwner: maxActiveJobsPerOwner,
		stallThreshold:        stallThreshold,
		cooldown:              cooldown,
		durations:             newDurationTracker(defaultJobDuration),
	}
}

// Enqueue implements the enqueue half of §4.4/§4.5: it enforces the
// per-owner fairness cap, runs the supervisor's stuck-job sweep, appends the
// job to the pending sequence, and (idempotently) starts the worker.
func (q *Queue) Enqueue(job *jobstore.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.store.ActiveCountForOwner(job.Owner) >= q.maxActiveJobsPerOwner {
		return newError(KindTooManyActiveJobs, fmt.Sprintf("owner %s already has %d active jobs", job.Owner, q.maxActiveJobsPerOwner))
	}

	q.checkStuckLocked()

	q.store.Create(job)
	q.pending = append(q.pending, job.ID)

	// Breaker-open enqueues are still accepted into the pending sequence,
	// but the worker is not (re)started until the cooldown has elapsed —
	// checked here, opportunistically, rather than by an independent timer.
	breakerOpen := time.Now().Before(q.cooldownUntil)
	if !q.running && !breakerOpen {
		q.running = true
		go q.workerLoop()
	}

	return nil
}

// QueuePosition reports queuePositionAhead and the estimated wait for jobID,
// per the §4.4 formulas. status must be the job's current status as read
// from the store; terminal statuses always report a zero wait.
func (q *Queue) QueuePosition(jobID string, status jobstore.Status) (queuePositionAhead int, estimatedWait time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if status == jobstore.StatusCompleted || status == jobstore.StatusFailed {
		return 0, 0
	}

	avg := q.durations.average()

	if q.processingID == jobID {
		elapsed := time.Since(q.startedAt)
		remaining := avg - elapsed
		floor := time.Duration(float64(avg) * 0.1)
		if remaining < floor {
			remaining = floor
		}
		return 0, remaining
	}

	queuePositionAhead = 0
	if q.processingID != "" {
		queuePositionAhead++
	}
	for _, id := range q.pending {
		if id == jobID {
			break
		}
		queuePositionAhead++
	}

	return queuePositionAhead, time.Duration(queuePositionAhead) * avg
}

// AverageJobDuration exposes the current rolling average for status
// responses.
func (q *Queue) AverageJobDuration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.durations.average()
}

func (q *Queue) workerLoop() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}

		id := q.pending[0]
		q.pending = q.pending[1:]
		q.processingID = id
		q.startedAt = time.Now()
		q.generation++
		gen := q.generation
		q.mu.Unlock()

		q.processJob(id, gen)
	}
}

func (q *Queue) processJob(id string, generation uint64) {
	job, ok := q.store.Get(context.Background(), id)
	if !ok {
		slog.Warn("processJob: job vanished before start", "job_id", id)
		q.finishLocked(id, generation, false, nil)
		return
	}

	startedAt := time.Now()
	job = q.store.Update(id, func(j *jobstore.Job) {
		j.Status = jobstore.StatusProcessing
		j.StartedAt = &startedAt
		j.Progress = 5
	})

	templates := job.Payload.TemplatesPresent()
	total := len(job.Payload.Sources) * len(templates)

	var results []jobstore.OutputArtifact
	completed := 0
	var failErr error

renderLoop:
	for _, source := range job.Payload.Sources {
		for _, tmpl := range templates {
			if !q.stillCurrent(id, generation) {
				slog.Warn("processJob: fenced out by supervisor, stopping", "job_id", id)
				return
			}

			outputPath, err := q.engine.Render(context.Background(),
				render.Input{Path: source.ScratchPath, OriginalName: source.OriginalName},
				render.Input{Path: tmpl.ScratchPath, OriginalName: tmpl.OriginalName, Metadata: tmpl.Metadata},
				tmpl.Variant, render.Now(),
			)
			// The supervisor may have declared the job stuck while Render ran;
			// its failed record stands and this render's outcome is discarded.
			if !q.stillCurrent(id, generation) {
				slog.Warn("processJob: fenced out by supervisor, discarding result", "job_id", id)
				return
			}
			if err != nil {
				failErr = err
				break renderLoop
			}

			artifact := jobstore.OutputArtifact{
				Variant:  tmpl.Variant,
				Filename: baseName(outputPath),
				URL:      "/output/" + baseName(outputPath),
			}
			results = append(results, artifact)
			completed++

			progress := 99
			if total > 0 {
				// round(completed/total × 100), per §4.4.
				progress = (completed*100 + total/2) / total
				if progress > 99 {
					progress = 99
				}
			}
			q.store.Update(id, func(j *jobstore.Job) {
				j.Metrics.CompletedVariants = completed
				j.Progress = progress
				j.Result = results
			})
		}
	}

	finishedAt := time.Now()
	if failErr != nil {
		q.store.Update(id, func(j *jobstore.Job) {
			j.Status = jobstore.StatusFailed
			j.Error = failErr.Error()
			j.FinishedAt = &finishedAt
		})
		slog.Error("job failed", "job_id", id, "error", failErr)
	} else {
		q.store.Update(id, func(j *jobstore.Job) {
			j.Status = jobstore.StatusCompleted
			j.Progress = 100
			j.FinishedAt = &finishedAt
			j.Result = results
		})
	}

	cleanupScratch(job)
	q.finishLocked(id, generation, failErr == nil, &finishedAt)
}

// stillCurrent reports whether this worker goroutine is still the
// authoritative one for id — the supervisor may have fenced it out by
// bumping the generation counter and declaring the job stuck.
func (q *Queue) stillCurrent(id string, generation uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processingID == id && q.generation == generation
}

func (q *Queue) finishLocked(id string, generation uint64, succeeded bool, finishedAt *time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.processingID != id || q.generation != generation {
		// Already fenced out and cleared by the supervisor; don't clobber
		// whatever ran in our place.
		return
	}

	if finishedAt != nil {
		q.durations.record(finishedAt.Sub(q.startedAt))
	}

	// The stall counter and breaker track supervisor-detected timeouts
	// (§4.5), not ordinary render failures — those are surfaced directly as
	// a failed job (§7 PipelineFailed) without touching the breaker. Only a
	// successful completion resets the counter/breaker unconditionally.
	if succeeded {
		q.stallCount = 0
		q.cooldownUntil = time.Time{}
	}

	q.processingID = ""
}

func cleanupScratch(job *jobstore.Job) {
	for _, path := range job.ScratchPaths() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("cleanup: failed to remove scratch file", "job_id", job.ID, "path", path, "error", err)
		}
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
