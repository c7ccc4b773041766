// Package service exposes the business plan workflow to the rest of the
// application: questioning, generation requests and status polling.
package service

import (
	"context"
	"math"

	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/session"
	"bizplan-workers/internal/status"
)

// PlanExecutor schedules a generation run for a created plan.
type PlanExecutor interface {
	Execute(ctx context.Context, planID string, req models.GenerationRequest) string
}

// Insights summarizes answer quality for a session.
type Insights struct {
	TurnCount    int   `json:"turnCount"`
	Scores       []int `json:"scores"`
	AverageScore int   `json:"averageScore"`
	Ready        bool  `json:"ready"`
}

type PlanService struct {
	sessions *session.Manager
	plans    models.PlanRepository
	executor PlanExecutor
	logger   logger.Logger
}

func NewPlanService(sessions *session.Manager, plans models.PlanRepository, executor PlanExecutor, log logger.Logger) *PlanService {
	return &PlanService{
		sessions: sessions,
		plans:    plans,
		executor: executor,
		logger:   log.WithFields(map[string]interface{}{"component": "plan-service"}),
	}
}

// StartSession opens a new questioning session and returns its token with
// the first question.
func (s *PlanService) StartSession(ctx context.Context, in session.StartInput) (string, *models.Question, error) {
	return s.sessions.Start(ctx, in)
}

func (s *PlanService) SubmitAnswer(ctx context.Context, token, answer string, confidence float64) (session.NextStep, error) {
	return s.sessions.SubmitAnswer(ctx, token, answer, confidence)
}

// RequestGeneration creates a plan from a ready session and hands it to the
// executor. The returned plan id is valid even when no strategy could take
// the task; the plan is then already failed and polling reports it.
func (s *PlanService) RequestGeneration(ctx context.Context, token string) (string, error) {
	return s.sessions.Handoff(ctx, token, func(req models.GenerationRequest) (string, error) {
		planID, err := s.plans.Create(ctx, models.PlanSeed{
			ProjectID:    req.ProjectID,
			BusinessIdea: req.BusinessIdea,
			Request:      req,
		})
		if err != nil {
			return "", err
		}

		strategy := s.executor.Execute(ctx, planID, req)
		s.logger.Info("plan generation requested", map[string]interface{}{
			"planId":    planID,
			"projectId": req.ProjectID,
			"answers":   len(req.Answers),
			"strategy":  strategy,
		})
		return planID, nil
	})
}

// PollStatus reports the progress of planID.
func (s *PlanService) PollStatus(ctx context.Context, planID string) (status.Progress, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return status.Progress{}, err
	}
	return status.Project(string(plan.Status)), nil
}

// Insights returns the stored quality score of every answered turn and
// their rounded mean.
func (s *PlanService) Insights(ctx context.Context, token string) (Insights, error) {
	st, err := s.sessions.Get(ctx, token)
	if err != nil {
		return Insights{}, err
	}

	out := Insights{
		TurnCount: st.TurnCount,
		Scores:    make([]int, 0, len(st.Turns)),
		Ready:     st.Phase == session.PhaseReadyToGenerate,
	}
	total := 0
	for _, turn := range st.Turns {
		out.Scores = append(out.Scores, turn.QualityScore)
		total += turn.QualityScore
	}
	if len(out.Scores) > 0 {
		out.AverageScore = int(math.Round(float64(total) / float64(len(out.Scores))))
	}
	return out, nil
}

// ResetSession discards a session so the user can start over.
func (s *PlanService) ResetSession(ctx context.Context, token string) error {
	return s.sessions.Reset(ctx, token)
}
