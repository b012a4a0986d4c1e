package runner

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// stopController coordinates graceful termination: it closes stopCh exactly
// once, whether triggered by SIGINT/SIGTERM, a dashboard stop command, or a
// configured duration elapsing, and runs every registered callback exactly
// once when that happens.
type stopController struct {
	mu        sync.Mutex
	stopped   bool
	stopCh    chan struct{}
	callbacks []func()
}

func newStopController() *stopController {
	return &stopController{stopCh: make(chan struct{})}
}

// watchSignals registers a SIGINT/SIGTERM handler that triggers stop. It
// returns a function that deregisters the handler.
func (s *stopController) watchSignals() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			s.trigger()
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(sigCh)
	}
}

func (s *stopController) trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
	for _, cb := range s.callbacks {
		cb()
	}
}

// Stop triggers termination if it has not already been triggered.
func (s *stopController) Stop() {
	s.trigger()
}

// Stopped reports whether Stop has been triggered.
func (s *stopController) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Done returns a channel that closes when Stop is triggered.
func (s *stopController) Done() <-chan struct{} {
	return s.stopCh
}

// OnStop registers a callback run (once) when Stop is triggered. Safe to
// call before or after Stop; a callback registered after Stop has already
// fired runs immediately.
func (s *stopController) OnStop(cb func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cb()
		return
	}
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}
