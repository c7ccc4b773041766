// internal/workers/plan-generation/generate-plan/handler.go
package generateplan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/metrics"
	"bizplan-workers/internal/executor"
	"bizplan-workers/internal/models"
)

const (
	TaskType = "generate-business-plan"

	commandTimeout = 10 * time.Second
)

// Handler runs the generation pipeline for tasks enqueued as process
// instances. It is the Zeebe counterpart of the Redis queue consumer.
type Handler struct {
	config       *Config
	runner       executor.Runner
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, runner executor.Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	task, err := parseTask(job.Variables)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, "PARSE_ERROR").Inc()
		cmdCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		h.errorHandler.HandleJobError(cmdCtx, client, job, err)
		return
	}

	runCtx, cancelRun := context.WithTimeout(context.Background(), h.config.Timeout)
	output, err := h.execute(runCtx, task)
	cancelRun()

	// the run may have used its whole budget; the result must still reach Zeebe
	cmdCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(cmdCtx, client, job, err)
		return
	}

	h.completeJob(cmdCtx, client, job, output)
}

func parseTask(variables string) (executor.Task, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return executor.Task{}, fmt.Errorf("parse input: %w", err)
	}
	if len(input.Task) == 0 {
		return executor.Task{}, fmt.Errorf("parse input: missing task variable")
	}
	return executor.DecodeTask(input.Task)
}

// execute runs the pipeline. A pipeline error means the plan is already
// marked failed.
func (h *Handler) execute(ctx context.Context, task executor.Task) (*Output, error) {
	if err := h.runner.Run(ctx, task.PlanID, task.Request); err != nil {
		return nil, err
	}

	h.logger.Info("plan generated", map[string]interface{}{"planId": task.PlanID})
	return &Output{
		PlanID:     task.PlanID,
		PlanStatus: string(models.PlanStatusCompleted),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
