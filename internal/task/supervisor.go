// Package task runs tracked background goroutines. Every task is
// awaitable (tests call Wait) and every panic or error is captured and
// routed to the failure handler rather than dropped.
package task

import (
	"fmt"
	"sync"
)

// Supervisor tracks background tasks launched by the orchestrator.
type Supervisor struct {
	logger    func(format string, args ...interface{})
	onFailure func(name string, err error)
	wg        sync.WaitGroup
}

// New creates a Supervisor. onFailure receives the task name and the
// error (or recovered panic) of any task that did not finish cleanly;
// it may be nil.
func New(logger func(format string, args ...interface{}), onFailure func(name string, err error)) *Supervisor {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &Supervisor{logger: logger, onFailure: onFailure}
}

// Go launches fn as a tracked background task.
func (s *Supervisor) Go(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.fail(name, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			s.fail(name, err)
		}
	}()
}

// Wait blocks until all launched tasks have finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) fail(name string, err error) {
	s.logger("task %s failed: %v", name, err)
	if s.onFailure != nil {
		s.onFailure(name, err)
	}
}
