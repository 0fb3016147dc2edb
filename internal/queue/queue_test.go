package queue

import (
	"testing"
	"time"

	"videotemplate-render-service/internal/jobstore"
)

func newTestStore() *jobstore.Store {
	return jobstore.New(nil, nil, time.Hour)
}

func TestEnqueue_RejectsWhenOwnerAtCap(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	store.Create(&jobstore.Job{ID: "existing", Owner: "anon_abc", Status: jobstore.StatusPending})

	q := New(store, nil, 1, 2, time.Minute)

	err := q.Enqueue(&jobstore.Job{ID: "new", Owner: "anon_abc", Status: jobstore.StatusPending})
	if err == nil {
		t.Fatal("expected TooManyActiveJobs error")
	}
	qErr, ok := err.(*Error)
	if !ok || qErr.Kind != KindTooManyActiveJobs {
		t.Fatalf("expected KindTooManyActiveJobs, got %v", err)
	}
}

func TestQueuePosition_ReportsRelativeToProcessingAndPending(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	q := New(store, nil, 2, 2, time.Minute)
	q.durations = newDurationTracker(2 * time.Minute)
	q.processingID = "a"
	q.startedAt = time.Now()
	q.pending = []string{"b", "c"}

	if pos, _ := q.QueuePosition("a", jobstore.StatusProcessing); pos != 0 {
		t.Fatalf("expected processing job at position 0, got %d", pos)
	}
	if pos, _ := q.QueuePosition("b", jobstore.StatusPending); pos != 1 {
		t.Fatalf("expected first pending job at position 1, got %d", pos)
	}
	if pos, _ := q.QueuePosition("c", jobstore.StatusPending); pos != 2 {
		t.Fatalf("expected second pending job at position 2, got %d", pos)
	}
	if pos, _ := q.QueuePosition("unknown", jobstore.StatusPending); pos != 3 {
		t.Fatalf("expected unknown job to sort behind everything, got %d", pos)
	}
	if _, wait := q.QueuePosition("a", jobstore.StatusCompleted); wait != 0 {
		t.Fatalf("expected zero wait for a terminal status, got %s", wait)
	}
}

func TestCheckStuckLocked_TimesOutOverdueJob(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	store.Create(&jobstore.Job{ID: "stuck", Owner: "anon_abc", Status: jobstore.StatusProcessing})

	q := New(store, nil, 2, 2, time.Minute)
	q.durations = newDurationTracker(2 * time.Minute)
	q.processingID = "stuck"
	q.startedAt = time.Now().Add(-10 * time.Minute)

	q.checkStuckLocked()

	if q.processingID != "" {
		t.Fatalf("expected processingID cleared after stuck detection, got %q", q.processingID)
	}
	if q.generation != 1 {
		t.Fatalf("expected generation bumped to 1, got %d", q.generation)
	}
	if q.stallCount != 1 {
		t.Fatalf("expected stall count incremented, got %d", q.stallCount)
	}
}

func TestEnqueue_BreakerOpenDoesNotStartWorker(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	q := New(store, nil, 2, 2, time.Minute)
	q.cooldownUntil = time.Now().Add(time.Minute)

	if err := q.Enqueue(&jobstore.Job{ID: "queued", Owner: "anon_xyz", Status: jobstore.StatusPending}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q.mu.Lock()
	running := q.running
	pendingLen := len(q.pending)
	q.mu.Unlock()

	if running {
		t.Fatal("expected worker not to start while the breaker is open")
	}
	if pendingLen != 1 {
		t.Fatalf("expected job still queued, got %d pending", pendingLen)
	}
}

func TestCheckStuckLocked_LeavesFreshJobAlone(t *testing.T) {
	store := newTestStore()
	defer store.Close()

	store.Create(&jobstore.Job{ID: "fresh", Owner: "anon_abc", Status: jobstore.StatusProcessing})

	q := New(store, nil, 2, 2, time.Minute)
	q.durations = newDurationTracker(2 * time.Minute)
	q.processingID = "fresh"
	q.startedAt = time.Now()

	q.checkStuckLocked()

	if q.processingID != "fresh" {
		t.Fatalf("expected processingID untouched, got %q", q.processingID)
	}
	if q.generation != 0 {
		t.Fatalf("expected generation untouched, got %d", q.generation)
	}
}
