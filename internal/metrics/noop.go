package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveScanDuration is a no-op.
func (n *NoopRecorder) ObserveScanDuration(duration time.Duration) {}

// AddProfilesDue is a no-op.
func (n *NoopRecorder) AddProfilesDue(count int) {}

// IncScanSkipped is a no-op.
func (n *NoopRecorder) IncScanSkipped(reason string) {}

// IncCheckInCreated is a no-op.
func (n *NoopRecorder) IncCheckInCreated() {}

// IncCheckInDuplicate is a no-op.
func (n *NoopRecorder) IncCheckInDuplicate() {}

// IncCheckInCompleted is a no-op.
func (n *NoopRecorder) IncCheckInCompleted() {}

// IncTimerHandled is a no-op.
func (n *NoopRecorder) IncTimerHandled(kind, outcome string) {}

// SetTimerQueueDepth is a no-op.
func (n *NoopRecorder) SetTimerQueueDepth(depth int64) {}

// ObserveTimerLag is a no-op.
func (n *NoopRecorder) ObserveTimerLag(lag time.Duration) {}

// IncNotification is a no-op.
func (n *NoopRecorder) IncNotification(kind, status string) {}

// IncResponseReceived is a no-op.
func (n *NoopRecorder) IncResponseReceived(affirmative bool) {}
