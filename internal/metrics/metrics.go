// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Timer kinds and outcomes used as label values.
const (
	KindInitial      = "initial"
	KindReminder     = "reminder"
	KindEscalation   = "escalation"
	KindConfirmation = "confirmation"

	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped" // guard failed at fire time
	OutcomeLost    = "lost"    // conditional update lost to a concurrent writer
	OutcomeAborted = "aborted" // missing profile or contact
	OutcomeError   = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Scanner metrics
	ObserveScanDuration(duration time.Duration)
	AddProfilesDue(n int)
	IncScanSkipped(reason string) // reason: "locked", "lock_error", "fetch_error"

	// Lifecycle metrics
	IncCheckInCreated()
	IncCheckInDuplicate()
	IncCheckInCompleted()

	// Timer handler metrics
	IncTimerHandled(kind, outcome string)
	SetTimerQueueDepth(depth int64)
	ObserveTimerLag(lag time.Duration)

	// Notification metrics
	IncNotification(kind, status string) // status: "success", "failed", "throttled"

	// Response intake metrics
	IncResponseReceived(affirmative bool)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
