package game

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zond/meshmush/heap"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"
)

const (
	// slowExecutionThreshold defines executions considered "slow".
	slowExecutionThreshold = 50 * time.Millisecond
	// recentBufferSize is the maximum number of recent notable executions (failures + slow) to keep.
	recentBufferSize = 200
	// maxTrackedObjects bounds per-object statistics, least recently executed objects are evicted first.
	maxTrackedObjects = 10000
	// maxReasonLength is the maximum length in bytes of failure reasons stored.
	maxReasonLength = 128
)

// ExecutionRecord captures a notable execution (failure, timeout or slow) for debugging.
type ExecutionRecord struct {
	Timestamp time.Time
	ObjectID  string
	Kind      structs.TriggerKind
	Result    trigger.ResultKind
	Duration  time.Duration
	Reason    string
}

// ObjectStats is a snapshot of the executions of one object.
type ObjectStats struct {
	ObjectID      string
	Executions    uint64
	Failures      uint64
	TimedOut      uint64
	RateLimited   uint64
	Slow          uint64
	TotalTime     time.Duration
	MaxTime       time.Duration
	LastExecution time.Time
}

func (o ObjectStats) AvgTime() time.Duration {
	if o.Executions == 0 {
		return 0
	}
	return o.TotalTime / time.Duration(o.Executions)
}

type StatsSnapshot struct {
	Uptime   time.Duration
	Total    uint64
	Slow     uint64
	ByResult map[trigger.ResultKind]uint64
	ByKind   map[structs.TriggerKind]uint64
}

// TriggerStats tracks trigger executions. Rate limited invocations are
// counted but not treated as executions.
type TriggerStats struct {
	mu          sync.RWMutex
	now         func() time.Time
	startTime   time.Time
	total       uint64
	slow        uint64
	byResult    map[trigger.ResultKind]uint64
	byKind      map[structs.TriggerKind]uint64
	objects     map[string]*ObjectStats
	recent      []ExecutionRecord
	recentIndex int
}

func NewTriggerStats() *TriggerStats {
	s := &TriggerStats{now: time.Now}
	s.Reset()
	return s
}

// Record counts one invocation of objectID's kind script.
func (s *TriggerStats) Record(kind structs.TriggerKind, objectID string, res trigger.Result, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	s.byResult[res.Kind]++
	obj, found := s.objects[objectID]
	if !found {
		if len(s.objects) >= maxTrackedObjects {
			s.evictOldestObjectLocked()
		}
		obj = &ObjectStats{ObjectID: objectID}
		s.objects[objectID] = obj
	}
	obj.LastExecution = now
	if res.Kind == trigger.RateLimited {
		obj.RateLimited++
		return
	}

	s.total++
	s.byKind[kind]++
	obj.Executions++
	obj.TotalTime += duration
	obj.MaxTime = max(obj.MaxTime, duration)
	notable := false
	switch res.Kind {
	case trigger.Failed:
		obj.Failures++
		notable = true
	case trigger.TimedOut:
		obj.TimedOut++
		notable = true
	}
	if duration > slowExecutionThreshold {
		s.slow++
		obj.Slow++
		notable = true
	}
	if notable {
		reason := res.Reason
		reason = truncateReason(reason)
		s.recent[s.recentIndex] = ExecutionRecord{
			Timestamp: now,
			ObjectID:  objectID,
			Kind:      kind,
			Result:    res.Kind,
			Duration:  duration,
			Reason:    reason,
		}
		s.recentIndex = (s.recentIndex + 1) % recentBufferSize
	}
}

// truncateReason cuts reason to at most maxReasonLength bytes without
// splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxReasonLength {
		return reason
	}
	cut := maxReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func (s *TriggerStats) evictOldestObjectLocked() {
	oldestID := ""
	var oldest time.Time
	for id, obj := range s.objects {
		if oldestID == "" || obj.LastExecution.Before(oldest) {
			oldestID, oldest = id, obj.LastExecution
		}
	}
	delete(s.objects, oldestID)
}

func (s *TriggerStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := StatsSnapshot{
		Uptime:   s.now().Sub(s.startTime),
		Total:    s.total,
		Slow:     s.slow,
		ByResult: make(map[trigger.ResultKind]uint64, len(s.byResult)),
		ByKind:   make(map[structs.TriggerKind]uint64, len(s.byKind)),
	}
	for k, v := range s.byResult {
		result.ByResult[k] = v
	}
	for k, v := range s.byKind {
		result.ByKind[k] = v
	}
	return result
}

// TopObjects returns the n most executed objects, ties broken by id.
func (s *TriggerStats) TopObjects(n int) []ObjectStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	top := heap.NewTop(n, func(a, b ObjectStats) bool {
		if a.Executions != b.Executions {
			return a.Executions < b.Executions
		}
		return a.ObjectID > b.ObjectID
	})
	for _, obj := range s.objects {
		top.Offer(*obj)
	}
	return top.Sorted()
}

// Recent returns the n most recent notable executions, newest first.
func (s *TriggerStats) Recent(n int) []ExecutionRecord {
	if n <= 0 {
		return []ExecutionRecord{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]ExecutionRecord, 0, min(n, recentBufferSize))
	for i := 0; i < recentBufferSize && len(result) < n; i++ {
		idx := (s.recentIndex - 1 - i + recentBufferSize) % recentBufferSize
		rec := s.recent[idx]
		if rec.Timestamp.IsZero() {
			break // Empty slot, buffer not yet full
		}
		result = append(result, rec)
	}
	return result
}

// Reset clears all statistics.
func (s *TriggerStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = s.now()
	s.total = 0
	s.slow = 0
	s.byResult = map[trigger.ResultKind]uint64{}
	s.byKind = map[structs.TriggerKind]uint64{}
	s.objects = map[string]*ObjectStats{}
	s.recent = make([]ExecutionRecord, recentBufferSize)
	s.recentIndex = 0
}
