// Package pipeline runs the staged generation of one business plan:
// title, then sections, then suggestions.
//
// Stage-level AI failures never fail a run. Title and sections fall back
// to deterministic content and suggestions degrade to none. Only failures
// of the pipeline's own control flow, such as a repository write, end the
// run in status failed.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/metrics"
	"bizplan-workers/internal/models"
)

const (
	StageTitle       = "title"
	StageSections    = "sections"
	StageSuggestions = "suggestions"
)

// CompletionHook is notified once a run reaches a terminal status. Hook
// errors are logged and never change the plan status.
type CompletionHook interface {
	Name() string
	OnPlanFinished(ctx context.Context, plan *models.Plan, req models.GenerationRequest) error
}

// Recorder receives run and stage measurements.
type Recorder interface {
	RecordStage(ctx context.Context, stage, outcome string)
	RecordPipelineRun(ctx context.Context, status string, duration time.Duration)
}

type Option func(*Pipeline)

func WithHooks(hooks ...CompletionHook) Option {
	return func(p *Pipeline) { p.hooks = append(p.hooks, hooks...) }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

type Pipeline struct {
	repo     models.PlanRepository
	ai       models.PlanContentGenerator
	hooks    []CompletionHook
	recorder Recorder
	tracer   trace.Tracer
	logger   logger.Logger
}

func New(repo models.PlanRepository, ai models.PlanContentGenerator, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		repo:   repo,
		ai:     ai,
		tracer: otel.Tracer("bizplan-workers/pipeline"),
		logger: log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives planID to a terminal status. A returned error is always a
// PIPELINE_FATAL error and the plan has already been marked failed.
func (p *Pipeline) Run(ctx context.Context, planID string, req models.GenerationRequest) (err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "plan.generate", trace.WithAttributes(attribute.String("plan.id", planID)))
	defer span.End()

	log := p.logger.WithFields(map[string]interface{}{"planId": planID})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			return
		}

		fatal := errors.NewPipelineFatalError(planID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.ErrCodePipelineFatal))
		log.Error("plan generation failed", map[string]interface{}{"error": err})

		// the run's context may already be done; the failed status must still land
		writeCtx := context.WithoutCancel(ctx)
		if ferr := p.repo.SetFailed(writeCtx, planID, errors.GenericFailurePayload()); ferr != nil {
			log.Error("failed to mark plan failed", map[string]interface{}{"error": ferr})
		}
		p.finish(writeCtx, planID, req, models.PlanStatusFailed, start, log)
		err = fatal
	}()

	if err := p.repo.SetStatus(ctx, planID, models.PlanStatusGenerating); err != nil {
		return fmt.Errorf("set status %s: %w", models.PlanStatusGenerating, err)
	}
	if err := p.titleStage(ctx, planID, req, log); err != nil {
		return err
	}
	if err := p.sectionsStage(ctx, planID, req, log); err != nil {
		return err
	}
	if err := p.suggestionsStage(ctx, planID, req, log); err != nil {
		return err
	}
	if err := p.repo.SetStatus(ctx, planID, models.PlanStatusCompleted); err != nil {
		return fmt.Errorf("set status %s: %w", models.PlanStatusCompleted, err)
	}

	log.Info("plan generation completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	p.finish(ctx, planID, req, models.PlanStatusCompleted, start, log)
	return nil
}

func (p *Pipeline) titleStage(ctx context.Context, planID string, req models.GenerationRequest, log logger.Logger) error {
	ctx, span := p.tracer.Start(ctx, "plan.stage.title")
	defer span.End()

	var title string
	aiErr := guard(func() error {
		var err error
		title, err = p.ai.Title(ctx, req)
		return err
	})
	title = strings.TrimSpace(title)
	if aiErr == nil && title == "" {
		aiErr = fmt.Errorf("empty title")
	}

	outcome := metrics.OutcomeOK
	if aiErr != nil {
		outcome = metrics.OutcomeFallback
		title = FallbackTitle(req.ProjectName)
		span.RecordError(aiErr)
		log.Warn("title generation failed, using fallback title", map[string]interface{}{
			"stage": StageTitle,
			"error": aiErr,
		})
	}
	p.recordStage(ctx, StageTitle, outcome)

	if err := p.repo.SetTitle(ctx, planID, title); err != nil {
		return fmt.Errorf("persist title: %w", err)
	}
	if err := p.repo.SetStatus(ctx, planID, models.PlanStatusTitleGenerated); err != nil {
		return fmt.Errorf("set status %s: %w", models.PlanStatusTitleGenerated, err)
	}
	return nil
}

func (p *Pipeline) sectionsStage(ctx context.Context, planID string, req models.GenerationRequest, log logger.Logger) error {
	ctx, span := p.tracer.Start(ctx, "plan.stage.sections")
	defer span.End()

	if err := p.repo.SetStatus(ctx, planID, models.PlanStatusGeneratingSections); err != nil {
		return fmt.Errorf("set status %s: %w", models.PlanStatusGeneratingSections, err)
	}

	var generated models.SectionSet
	aiErr := guard(func() error {
		var err error
		generated, err = p.ai.Sections(ctx, req)
		return err
	})
	if aiErr == nil && !generated.Complete() {
		aiErr = fmt.Errorf("incomplete section set")
	}

	sections := make(models.SectionSet, len(models.SectionKeys))
	outcome := metrics.OutcomeOK
	if aiErr != nil {
		// never merge real and placeholder content
		outcome = metrics.OutcomeFallback
		sections = Placeholders()
		span.RecordError(aiErr)
		log.Warn("section generation failed, using placeholders", map[string]interface{}{
			"stage": StageSections,
			"error": aiErr,
		})
	} else {
		for _, key := range models.SectionKeys {
			sections[key] = generated[key]
		}
	}
	p.recordStage(ctx, StageSections, outcome)

	if err := p.repo.SetSections(ctx, planID, sections); err != nil {
		return fmt.Errorf("persist sections: %w", err)
	}
	return nil
}

func (p *Pipeline) suggestionsStage(ctx context.Context, planID string, req models.GenerationRequest, log logger.Logger) error {
	ctx, span := p.tracer.Start(ctx, "plan.stage.suggestions")
	defer span.End()

	if err := p.repo.SetStatus(ctx, planID, models.PlanStatusGeneratingSuggestions); err != nil {
		return fmt.Errorf("set status %s: %w", models.PlanStatusGeneratingSuggestions, err)
	}

	var items []models.SuggestionItem
	aiErr := guard(func() error {
		var err error
		items, err = p.ai.Suggestions(ctx, req)
		return err
	})
	if aiErr != nil {
		span.RecordError(aiErr)
		p.recordStage(ctx, StageSuggestions, metrics.OutcomeFallback)
		log.Warn("suggestion generation failed, continuing without suggestions", map[string]interface{}{
			"stage": StageSuggestions,
			"error": aiErr,
		})
		return nil
	}

	saved := 0
	for _, item := range items {
		item = item.Normalized()
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		if err := p.repo.AddSuggestion(ctx, planID, item); err != nil {
			log.Warn("failed to persist suggestion", map[string]interface{}{
				"stage": StageSuggestions,
				"type":  item.Type,
				"error": err,
			})
			continue
		}
		saved++
	}

	outcome := metrics.OutcomeOK
	if saved < len(items) {
		outcome = metrics.OutcomeError
	}
	p.recordStage(ctx, StageSuggestions, outcome)
	log.Debug("suggestions stored", map[string]interface{}{"count": saved})
	return nil
}

func (p *Pipeline) recordStage(ctx context.Context, stage, outcome string) {
	metrics.PlanStageTotal.WithLabelValues(stage, outcome).Inc()
	if p.recorder != nil {
		p.recorder.RecordStage(ctx, stage, outcome)
	}
}

// finish records the run and notifies hooks with the persisted plan.
func (p *Pipeline) finish(ctx context.Context, planID string, req models.GenerationRequest, status models.PlanStatus, start time.Time, log logger.Logger) {
	duration := time.Since(start)
	metrics.PlanRunsTotal.WithLabelValues(string(status)).Inc()
	metrics.PlanRunDuration.Observe(duration.Seconds())
	if p.recorder != nil {
		p.recorder.RecordPipelineRun(ctx, string(status), duration)
	}

	if len(p.hooks) == 0 {
		return
	}
	plan, err := p.repo.Get(ctx, planID)
	if err != nil {
		log.Warn("cannot load plan for completion hooks", map[string]interface{}{"error": err})
		return
	}
	for _, hook := range p.hooks {
		if err := guard(func() error { return hook.OnPlanFinished(ctx, plan, req) }); err != nil {
			log.Warn("completion hook failed", map[string]interface{}{
				"hook":  hook.Name(),
				"error": err,
			})
		}
	}
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
