package queue

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"videotemplate-render-service/internal/jobstore"
)

const minStuckTimeout = 3 * time.Minute

// checkStuckLocked implements the §4.5 supervisor sweep. It is invoked
// opportunistically from Enqueue, with q.mu already held. If the job
// currently being processed has overrun its timeout, it is force-failed,
// its scratch files are cleaned up, and the worker generation is bumped so
// the stalled goroutine's eventual result (if it ever returns) is discarded.
func (q *Queue) checkStuckLocked() {
	if q.processingID == "" {
		return
	}

	timeout := q.durations.average() * 4
	if timeout < minStuckTimeout {
		timeout = minStuckTimeout
	}

	elapsed := time.Since(q.startedAt)
	if elapsed <= timeout {
		return
	}

	id := q.processingID
	errMsg := fmt.Sprintf("job exceeded %d seconds, aborted by supervisor", int(timeout.Seconds()))

	slog.Warn("supervisor: declaring job stuck", "job_id", id, "elapsed", elapsed, "timeout", timeout)

	q.stallCount++
	if q.stallCount >= q.stallThreshold {
		q.cooldownUntil = time.Now().Add(q.cooldown)
	}
	q.generation++
	q.processingID = ""

	// Fenced out; finalize the record off the lock so Enqueue isn't blocked
	// on a store write.
	go q.finalizeStuckJob(id, errMsg)
}

func (q *Queue) finalizeStuckJob(id, errMsg string) {
	finishedAt := time.Now()
	job := q.store.Update(id, func(j *jobstore.Job) {
		j.Status = jobstore.StatusFailed
		j.Error = errMsg
		j.FinishedAt = &finishedAt
	})
	if job == nil {
		return
	}
	for _, path := range job.ScratchPaths() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("supervisor: failed to remove scratch file", "job_id", id, "path", path, "error", err)
		}
	}
}
