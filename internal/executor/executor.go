// Package executor chooses how a plan generation run is executed.
//
// Strategies are tried in order and each is a complete attempt: the first
// one that schedules successfully owns the task, so the pipeline runs at
// most once per request. When the last strategy fails the executor marks
// the plan failed itself, unless the pipeline already did so.
package executor

import (
	"context"
	"fmt"
	"time"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/metrics"
	"bizplan-workers/internal/models"
)

// FailureWriter marks a plan failed.
type FailureWriter interface {
	SetFailed(ctx context.Context, planID string, payload interface{}) error
}

type Executor struct {
	strategies []Strategy
	plans      FailureWriter
	logger     logger.Logger
	now        func() time.Time
}

func New(plans FailureWriter, log logger.Logger, strategies ...Strategy) *Executor {
	return &Executor{
		strategies: strategies,
		plans:      plans,
		logger:     log.WithFields(map[string]interface{}{"component": "executor"}),
		now:        time.Now,
	}
}

// Execute schedules generation of planID. It returns the name of the
// strategy that took the task, or "" when every strategy failed and the
// plan was marked failed.
func (e *Executor) Execute(ctx context.Context, planID string, req models.GenerationRequest) string {
	task := Task{PlanID: planID, Request: req, EnqueuedAt: e.now().UTC()}
	log := e.logger.WithFields(map[string]interface{}{"planId": planID})

	var lastErr error
	for i, s := range e.strategies {
		err := attempt(ctx, s, task)
		if err == nil {
			metrics.PlanStrategyTotal.WithLabelValues(s.Name(), metrics.OutcomeOK).Inc()
			log.Info("plan generation scheduled", map[string]interface{}{"strategy": s.Name()})
			return s.Name()
		}

		metrics.PlanStrategyTotal.WithLabelValues(s.Name(), metrics.OutcomeError).Inc()
		lastErr = err
		if i < len(e.strategies)-1 {
			log.Warn("strategy failed, falling back", map[string]interface{}{
				"strategy": s.Name(),
				"next":     e.strategies[i+1].Name(),
				"error":    err,
			})
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no execution strategy configured")
	}
	log.Error("plan generation could not be executed", map[string]interface{}{"error": lastErr})

	// a fatal pipeline run has written failed already
	if errors.Is(lastErr, errors.ErrPipelineFatal) {
		return ""
	}
	if err := e.plans.SetFailed(context.WithoutCancel(ctx), planID, errors.GenericFailurePayload()); err != nil {
		log.Error("failed to mark plan failed", map[string]interface{}{"error": err})
	}
	return ""
}

func attempt(ctx context.Context, s Strategy, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewSchedulingError(s.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return s.Schedule(ctx, task)
}
