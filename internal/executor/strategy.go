package executor

import (
	"context"
	"fmt"
	"time"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
)

// Strategy is one way of getting a task run. Schedule returning nil means
// the pipeline will run exactly once for the task; an error means it will
// not run through this strategy at all.
type Strategy interface {
	Name() string
	Schedule(ctx context.Context, task Task) error
}

// Runner runs the generation pipeline for one plan.
type Runner interface {
	Run(ctx context.Context, planID string, req models.GenerationRequest) error
}

// TaskQueue is a durable queue accepting delayed payloads.
type TaskQueue interface {
	Enqueue(ctx context.Context, category string, delay time.Duration, payload []byte) error
}

// Scheduler runs a function in-process once the current request is done.
type Scheduler interface {
	RunAfterResponse(fn func()) error
}

const (
	StrategyQueued   = "queued"
	StrategyDeferred = "deferred"
	StrategySync     = "sync"
)

// QueuedStrategy hands the task to a durable queue. The delay gives an
// enclosing transaction time to commit before a consumer picks it up.
type QueuedStrategy struct {
	queue    TaskQueue
	category string
	delay    time.Duration
}

func NewQueuedStrategy(queue TaskQueue, category string, delay time.Duration) *QueuedStrategy {
	return &QueuedStrategy{queue: queue, category: category, delay: delay}
}

func (s *QueuedStrategy) Name() string { return StrategyQueued }

func (s *QueuedStrategy) Schedule(ctx context.Context, task Task) error {
	payload, err := EncodeTask(task)
	if err != nil {
		return errors.NewSchedulingError(StrategyQueued, err)
	}
	if err := s.queue.Enqueue(ctx, s.category, s.delay, payload); err != nil {
		return errors.NewSchedulingError(StrategyQueued, err)
	}
	return nil
}

// DeferredStrategy runs the pipeline in this process after the response.
type DeferredStrategy struct {
	scheduler Scheduler
	runner    Runner
	logger    logger.Logger
}

func NewDeferredStrategy(scheduler Scheduler, runner Runner, log logger.Logger) *DeferredStrategy {
	return &DeferredStrategy{scheduler: scheduler, runner: runner, logger: log}
}

func (s *DeferredStrategy) Name() string { return StrategyDeferred }

func (s *DeferredStrategy) Schedule(ctx context.Context, task Task) error {
	// the request context ends with the response; keep only its values
	runCtx := context.WithoutCancel(ctx)
	err := s.scheduler.RunAfterResponse(func() {
		if err := s.runner.Run(runCtx, task.PlanID, task.Request); err != nil {
			s.logger.Error("deferred plan generation failed", map[string]interface{}{
				"planId": task.PlanID,
				"error":  err,
			})
		}
	})
	if err != nil {
		return errors.NewSchedulingError(StrategyDeferred, err)
	}
	return nil
}

// SyncStrategy runs the pipeline inline, blocking the caller. A started run
// is not aborted when the caller's context is cancelled.
type SyncStrategy struct {
	runner Runner
}

func NewSyncStrategy(runner Runner) *SyncStrategy {
	return &SyncStrategy{runner: runner}
}

func (s *SyncStrategy) Name() string { return StrategySync }

func (s *SyncStrategy) Schedule(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.runner.Run(context.WithoutCancel(ctx), task.PlanID, task.Request)
}
