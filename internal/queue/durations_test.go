package queue

import (
	"testing"
	"time"
)

func TestDurationTracker_DefaultsWhenEmpty(t *testing.T) {
	tr := newDurationTracker(2 * time.Minute)
	if got := tr.average(); got != 2*time.Minute {
		t.Fatalf("expected default duration, got %s", got)
	}
}

func TestDurationTracker_AveragesSamples(t *testing.T) {
	tr := newDurationTracker(2 * time.Minute)
	tr.record(1 * time.Minute)
	tr.record(3 * time.Minute)
	if got := tr.average(); got != 2*time.Minute {
		t.Fatalf("expected 2m average, got %s", got)
	}
}

func TestDurationTracker_FloorsAtQuarterOfDefault(t *testing.T) {
	tr := newDurationTracker(2 * time.Minute)
	tr.record(1 * time.Second)
	if got := tr.average(); got != 30*time.Second {
		t.Fatalf("expected floor of 30s, got %s", got)
	}
}

func TestDurationTracker_WrapsAfterCap(t *testing.T) {
	tr := newDurationTracker(2 * time.Minute)
	for i := 0; i < durationSampleCap+5; i++ {
		tr.record(2 * time.Minute)
	}
	if len(tr.samples) != durationSampleCap {
		t.Fatalf("expected samples capped at %d, got %d", durationSampleCap, len(tr.samples))
	}
}
