package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ScanCount            uint64
	ScanDurationTotalNs  int64
	ProfilesDue          uint64
	ScansSkipped         map[string]uint64
	CheckInsCreated      uint64
	CheckInDuplicates    uint64
	CheckInsCompleted    uint64
	TimersHandled        map[string]uint64 // key: kind/outcome
	TimerQueueDepth      int64
	Notifications        map[string]uint64 // key: kind/status
	ResponsesReceived    uint64
	ResponsesAffirmative uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	scanCount            uint64
	scanDurationTotalNs  int64
	profilesDue          uint64
	checkInsCreated      uint64
	checkInDuplicates    uint64
	checkInsCompleted    uint64
	timerQueueDepth      int64
	responsesReceived    uint64
	responsesAffirmative uint64

	mu            sync.Mutex
	scansSkipped  map[string]uint64
	timersHandled map[string]uint64
	notifications map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		scansSkipped:  make(map[string]uint64),
		timersHandled: make(map[string]uint64),
		notifications: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		ScanCount:            atomic.LoadUint64(&m.scanCount),
		ScanDurationTotalNs:  atomic.LoadInt64(&m.scanDurationTotalNs),
		ProfilesDue:          atomic.LoadUint64(&m.profilesDue),
		ScansSkipped:         copyCounts(m.scansSkipped),
		CheckInsCreated:      atomic.LoadUint64(&m.checkInsCreated),
		CheckInDuplicates:    atomic.LoadUint64(&m.checkInDuplicates),
		CheckInsCompleted:    atomic.LoadUint64(&m.checkInsCompleted),
		TimersHandled:        copyCounts(m.timersHandled),
		TimerQueueDepth:      atomic.LoadInt64(&m.timerQueueDepth),
		Notifications:        copyCounts(m.notifications),
		ResponsesReceived:    atomic.LoadUint64(&m.responsesReceived),
		ResponsesAffirmative: atomic.LoadUint64(&m.responsesAffirmative),
	}
}

// TimersHandled returns the count for one kind/outcome pair.
func (m *InMemoryRecorder) TimersHandled(kind, outcome string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timersHandled[kind+"/"+outcome]
}

// Notifications returns the count for one kind/status pair.
func (m *InMemoryRecorder) Notifications(kind, status string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifications[kind+"/"+status]
}

// ObserveScanDuration records scan duration.
func (m *InMemoryRecorder) ObserveScanDuration(duration time.Duration) {
	atomic.AddUint64(&m.scanCount, 1)
	atomic.AddInt64(&m.scanDurationTotalNs, duration.Nanoseconds())
}

// AddProfilesDue adds to the due profile counter.
func (m *InMemoryRecorder) AddProfilesDue(n int) {
	if n > 0 {
		atomic.AddUint64(&m.profilesDue, uint64(n))
	}
}

// IncScanSkipped increments the skipped scan counter.
func (m *InMemoryRecorder) IncScanSkipped(reason string) {
	m.inc(m.scansSkipped, reason)
}

// IncCheckInCreated increments check-in created counter.
func (m *InMemoryRecorder) IncCheckInCreated() {
	atomic.AddUint64(&m.checkInsCreated, 1)
}

// IncCheckInDuplicate increments duplicate creation counter.
func (m *InMemoryRecorder) IncCheckInDuplicate() {
	atomic.AddUint64(&m.checkInDuplicates, 1)
}

// IncCheckInCompleted increments completed counter.
func (m *InMemoryRecorder) IncCheckInCompleted() {
	atomic.AddUint64(&m.checkInsCompleted, 1)
}

// IncTimerHandled increments the timer outcome counter.
func (m *InMemoryRecorder) IncTimerHandled(kind, outcome string) {
	m.inc(m.timersHandled, kind+"/"+outcome)
}

// SetTimerQueueDepth records queue depth.
func (m *InMemoryRecorder) SetTimerQueueDepth(depth int64) {
	atomic.StoreInt64(&m.timerQueueDepth, depth)
}

// ObserveTimerLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveTimerLag(lag time.Duration) {}

// IncNotification increments the notification counter.
func (m *InMemoryRecorder) IncNotification(kind, status string) {
	m.inc(m.notifications, kind+"/"+status)
}

// IncResponseReceived increments response counters.
func (m *InMemoryRecorder) IncResponseReceived(affirmative bool) {
	atomic.AddUint64(&m.responsesReceived, 1)
	if affirmative {
		atomic.AddUint64(&m.responsesAffirmative, 1)
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
