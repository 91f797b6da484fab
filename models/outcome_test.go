package models

import (
	"errors"
	"testing"
	"time"
)

func TestCycleResultAdd(t *testing.T) {
	var r CycleResult
	r.Add([]DeliveryOutcome{
		{Kind: Delivered},
		{Kind: FailedRetryable, Err: errors.New("boom")},
		{Kind: SkippedAlreadyHandled},
		{Kind: Delivered},
	})

	if r.Delivered != 2 || r.Failed != 1 || r.Skipped != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/1/1", r.Delivered, r.Failed, r.Skipped)
	}
}

func TestCycleResultDuration(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := CycleResult{StartTime: start}
	if got := r.Duration(); got != 0 {
		t.Fatalf("unfinished duration = %v, want 0", got)
	}
	r.EndTime = start.Add(3 * time.Second)
	if got := r.Duration(); got != 3*time.Second {
		t.Fatalf("duration = %v, want 3s", got)
	}
}

func TestOutcomeKindString(t *testing.T) {
	tests := map[OutcomeKind]string{
		Delivered:             "delivered",
		FailedRetryable:       "failed",
		SkippedAlreadyHandled: "skipped",
		OutcomeKind(42):       "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(kind), got, want)
		}
	}
}
