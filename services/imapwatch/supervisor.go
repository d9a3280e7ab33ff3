package imapwatch

import (
	"context"
	"sync"
	"time"

	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  *WorkerState
}

// Supervisor owns the watcher goroutines, one per watcher key. Keys are
// "user:<folderID>" for per-account watchers and "global" for the shared
// mailbox.
type Supervisor struct {
	log      logger.Logger
	mu       sync.Mutex
	watchers map[string]*handle
}

func NewSupervisor(log logger.Logger) *Supervisor {
	return &Supervisor{
		log:      log,
		watchers: make(map[string]*handle),
	}
}

// Start launches a watcher for the key. Starting an already running key is
// a no-op.
func (s *Supervisor) Start(ctx context.Context, key string, provider Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.watchers[key]; exists {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  NewWorkerState(key),
	}
	s.watchers[key] = h

	go func() {
		defer tracing.RecoverAndLogToJaeger(s.log)
		defer close(h.done)
		Watch(watchCtx, provider, h.state, s.log)

		s.mu.Lock()
		if s.watchers[key] == h {
			delete(s.watchers, key)
		}
		s.mu.Unlock()
	}()
}

// Stop cancels the watcher and waits for it to exit, bounded by timeout.
func (s *Supervisor) Stop(key string, timeout time.Duration) {
	s.mu.Lock()
	h, exists := s.watchers[key]
	if exists {
		delete(s.watchers, key)
	}
	s.mu.Unlock()
	if !exists {
		return
	}

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(timeout):
		s.log.Warnf("timeout waiting for watcher %s to stop", key)
	}
}

func (s *Supervisor) StopAll(timeout time.Duration) {
	s.mu.Lock()
	handles := make(map[string]*handle, len(s.watchers))
	for key, h := range s.watchers {
		handles[key] = h
	}
	s.watchers = make(map[string]*handle)
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	deadline := time.After(timeout)
	for key, h := range handles {
		select {
		case <-h.done:
		case <-deadline:
			s.log.Warnf("timeout waiting for watcher %s to stop", key)
			return
		}
	}
}

// Restart stops the key and starts it again with the given provider.
func (s *Supervisor) Restart(ctx context.Context, key string, provider Provider) {
	s.Stop(key, 10*time.Second)
	s.Start(ctx, key, provider)
}

func (s *Supervisor) IsRunning(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.watchers[key]
	return exists
}

// IsScanning reports whether the watcher is mid-drain.
func (s *Supervisor) IsScanning(key string) bool {
	s.mu.Lock()
	h, exists := s.watchers[key]
	s.mu.Unlock()
	if !exists {
		return false
	}
	return h.state.IsScanning()
}

// Status returns a snapshot of every running watcher.
func (s *Supervisor) Status() map[string]StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]StateSnapshot, len(s.watchers))
	for key, h := range s.watchers {
		result[key] = h.state.Snapshot()
	}
	return result
}
