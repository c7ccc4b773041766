// Package deferred runs work in-process after the current request has
// been answered.
package deferred

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"bizplan-workers/internal/common/logger"
)

var (
	ErrSchedulerFull   = stderrors.New("deferred scheduler queue is full")
	ErrSchedulerClosed = stderrors.New("deferred scheduler is closed")
)

// Scheduler is a bounded buffer drained by a fixed set of workers.
// RunAfterResponse never blocks.
type Scheduler struct {
	tasks   chan func()
	logger  logger.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	closing sync.Once
}

func NewScheduler(workers, buffer int, log logger.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	s := &Scheduler{
		tasks:  make(chan func(), buffer),
		logger: log.WithFields(map[string]interface{}{"component": "deferred-scheduler"}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.work(i)
	}
	return s
}

// RunAfterResponse queues fn. It fails when the buffer is full or the
// scheduler is closed; fn has not been queued in either case.
//
// Nothing waits for the caller's response to be written: fn starts as soon
// as a worker is free, possibly before the caller returns. fn must only
// rely on state the caller has already committed.
func (s *Scheduler) RunAfterResponse(fn func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	select {
	case s.tasks <- fn:
		return nil
	default:
		return ErrSchedulerFull
	}
}

// Pending returns the number of queued tasks not yet picked up.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Close stops intake and waits for queued and running tasks to finish or
// for ctx to end.
func (s *Scheduler) Close(ctx context.Context) error {
	s.closing.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.tasks)
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deferred scheduler close: %w", ctx.Err())
	}
}

func (s *Scheduler) work(id int) {
	defer s.wg.Done()
	for fn := range s.tasks {
		s.run(id, fn)
	}
}

func (s *Scheduler) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("deferred task panicked", map[string]interface{}{
				"worker": id,
				"panic":  fmt.Sprint(r),
			})
		}
	}()
	fn()
}
