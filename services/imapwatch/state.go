package imapwatch

import (
	"sync"
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
)

// StateSnapshot is the externally visible state of one watcher, returned by
// the system status endpoint.
type StateSnapshot struct {
	Key            string          `json:"key"`
	Mode           enum.WorkerMode `json:"mode"`
	Error          string          `json:"error,omitempty"`
	LastScanAt     *time.Time      `json:"lastScanAt,omitempty"`
	NextScanAt     *time.Time      `json:"nextScanAt,omitempty"`
	QueueTotal     int             `json:"queueTotal"`
	QueuePosition  int             `json:"queuePosition"`
	CurrentSubject string          `json:"currentSubject,omitempty"`
	CurrentSender  string          `json:"currentSender,omitempty"`
}

// WorkerState is the mutable counterpart, safe for concurrent use.
type WorkerState struct {
	mu   sync.Mutex
	snap StateSnapshot
}

func NewWorkerState(key string) *WorkerState {
	return &WorkerState{snap: StateSnapshot{Key: key, Mode: enum.WorkerModeConnecting}}
}

func (s *WorkerState) SetMode(mode enum.WorkerMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Mode = mode
	if mode != enum.WorkerModeErrorBackoff {
		s.snap.Error = ""
	}
}

func (s *WorkerState) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Mode = enum.WorkerModeErrorBackoff
	if err != nil {
		s.snap.Error = err.Error()
	}
}

func (s *WorkerState) SetScanTimes(last time.Time, next *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastScanAt = &last
	s.snap.NextScanAt = next
}

func (s *WorkerState) SetProgress(position, total int, subject, sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.QueuePosition = position
	s.snap.QueueTotal = total
	s.snap.CurrentSubject = subject
	s.snap.CurrentSender = sender
}

func (s *WorkerState) ClearProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.QueuePosition = 0
	s.snap.QueueTotal = 0
	s.snap.CurrentSubject = ""
	s.snap.CurrentSender = ""
}

func (s *WorkerState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// IsScanning reports whether the watcher is currently draining messages.
func (s *WorkerState) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Mode == enum.WorkerModeProcessing
}
