package models

import "time"

// OutcomeKind classifies what happened to a single file during a delivery pass.
type OutcomeKind int

const (
	// SkippedAlreadyHandled means the link was already delivered earlier.
	SkippedAlreadyHandled OutcomeKind = iota
	// Delivered means the channel accepted the file and the link was recorded.
	Delivered
	// FailedRetryable means the file was not recorded and will be retried next cycle.
	FailedRetryable
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case FailedRetryable:
		return "failed"
	case SkippedAlreadyHandled:
		return "skipped"
	default:
		return "unknown"
	}
}

// DeliveryOutcome is the per-file result of a delivery pass.
type DeliveryOutcome struct {
	File File
	Kind OutcomeKind
	Err  error
}

// CycleResult summarises one crawl cycle.
type CycleResult struct {
	StartTime      time.Time
	EndTime        time.Time
	HomepageErr    error
	TopicCount     int
	ListingCount   int
	FailedTopics   []string
	Delivered      int
	Failed         int
	Skipped        int
	ErrorsByType   map[string]int
	RecoveredPanic any
}

// Add folds a batch of outcomes into the cycle counters.
func (r *CycleResult) Add(outcomes []DeliveryOutcome) {
	for _, o := range outcomes {
		switch o.Kind {
		case Delivered:
			r.Delivered++
		case FailedRetryable:
			r.Failed++
		case SkippedAlreadyHandled:
			r.Skipped++
		}
	}
}

// Duration reports how long the cycle ran.
func (r *CycleResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
