package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/deferred"
	"bizplan-workers/internal/executor"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/pipeline"
	"bizplan-workers/internal/session"
	"bizplan-workers/internal/status"
	"bizplan-workers/internal/testutil"
)

var genericAnswers = []string{
	"Busy professionals who love specialty coffee and want fresh beans delivered every month.",
	"We charge 25 dollars per box and expect 400 subscribers in the first year.",
	"Roasters in our city supply the beans and we handle packaging and shipping ourselves.",
	"Instagram campaigns, cafe partnerships and a referral discount for existing subscribers.",
	"Two founders with barista and e-commerce experience plus one part-time packer.",
}

type harness struct {
	svc       *PlanService
	repo      *testutil.MemoryRepo
	questions *testutil.FakeAI
	content   *testutil.FakeAI
	scheduler *deferred.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	h := &harness{
		repo:      testutil.NewMemoryRepo(),
		questions: testutil.NewFakeAI(),
		content:   testutil.NewFakeAI(),
		scheduler: deferred.NewScheduler(2, 8, log),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.scheduler.Close(ctx)
	})

	p := pipeline.New(h.repo, h.content, log)
	exec := executor.New(h.repo, log,
		executor.NewDeferredStrategy(h.scheduler, p, log),
		executor.NewSyncStrategy(p),
	)
	manager := session.NewManager(session.NewMemoryStore(time.Hour), h.questions, log)
	h.svc = NewPlanService(manager, h.repo, exec, log)
	return h
}

func (h *harness) readySession(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	token, first, err := h.svc.StartSession(ctx, session.StartInput{
		BusinessIdea: "coffee subscription box",
		ProjectID:    "proj-coffee",
		ProjectName:  "Bean Box",
	})
	require.NoError(t, err)
	require.NotNil(t, first)

	var step session.NextStep
	for i, answer := range genericAnswers {
		step, err = h.svc.SubmitAnswer(ctx, token, answer, 80)
		require.NoError(t, err)
		assert.Equal(t, i+1, step.TurnCount)
	}
	require.True(t, step.Ready)
	return token
}

func (h *harness) waitTerminal(t *testing.T, planID string) status.Progress {
	t.Helper()
	var progress status.Progress
	require.Eventually(t, func() bool {
		p, err := h.svc.PollStatus(context.Background(), planID)
		if err != nil {
			return false
		}
		progress = p
		return p.Terminal
	}, 5*time.Second, 10*time.Millisecond)
	return progress
}

func TestCoffeeSubscriptionBox_Completes(t *testing.T) {
	h := newHarness(t)
	token := h.readySession(t)

	planID, err := h.svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)
	require.NotEmpty(t, planID)

	progress := h.waitTerminal(t, planID)
	assert.Equal(t, 100, progress.Percent)
	assert.Equal(t, "completed", progress.Status)

	plan, err := h.repo.Get(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, "Generated Title", plan.Title)
	assert.True(t, plan.Sections.Complete())
	assert.Len(t, h.repo.Suggestions(planID), 2)
	assert.Equal(t, 4, h.questions.Calls("next"))
}

func TestCoffeeSubscriptionBox_AIDownStillCompletes(t *testing.T) {
	h := newHarness(t)
	h.content.FailAll()
	token := h.readySession(t)

	planID, err := h.svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)

	progress := h.waitTerminal(t, planID)
	assert.Equal(t, 100, progress.Percent)
	assert.Equal(t, "completed", progress.Status)

	plan, err := h.repo.Get(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, "Bean Box - Business Plan", plan.Title)
	assert.Equal(t, pipeline.Placeholders(), plan.Sections)
	assert.Empty(t, h.repo.Suggestions(planID))
}

func TestCoffeeSubscriptionBox_PipelineFatal(t *testing.T) {
	h := newHarness(t)
	h.repo.FailOn["SetSections"] = fmt.Errorf("disk full")
	token := h.readySession(t)

	planID, err := h.svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)

	progress := h.waitTerminal(t, planID)
	assert.Equal(t, 0, progress.Percent)
	assert.Equal(t, "failed", progress.Status)
	assert.True(t, progress.Terminal)

	plan, err := h.repo.Get(context.Background(), planID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"PIPELINE_FATAL","message":"Plan generation failed. Please try again."}`, string(plan.GenerationError))
}

func TestRequestGeneration_NotReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, _, err := h.svc.StartSession(ctx, session.StartInput{BusinessIdea: "coffee subscription box"})
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, token, genericAnswers[0], 50)
	require.NoError(t, err)

	_, err = h.svc.RequestGeneration(ctx, token)
	assert.True(t, errors.Is(err, errors.ErrInvalidSessionState))

	// the session survives and can continue
	step, err := h.svc.SubmitAnswer(ctx, token, genericAnswers[1], 50)
	require.NoError(t, err)
	assert.Equal(t, 2, step.TurnCount)
}

func TestRequestGeneration_ClearsSession(t *testing.T) {
	h := newHarness(t)
	token := h.readySession(t)

	_, err := h.svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)

	_, err = h.svc.RequestGeneration(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestRequestGeneration_CreateFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	token := h.readySession(t)
	h.repo.FailOn["Create"] = errors.NewDatabaseQueryError("create plan", fmt.Errorf("connection refused"))

	_, err := h.svc.RequestGeneration(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrDatabaseQuery))

	delete(h.repo.FailOn, "Create")
	planID, err := h.svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, planID)
}

type stubExecutor struct {
	planIDs []string
}

func (s *stubExecutor) Execute(ctx context.Context, planID string, req models.GenerationRequest) string {
	s.planIDs = append(s.planIDs, planID)
	return ""
}

func TestRequestGeneration_PassesAnswersToExecutor(t *testing.T) {
	repo := testutil.NewMemoryRepo()
	exec := &stubExecutor{}
	manager := session.NewManager(session.NewMemoryStore(time.Hour), testutil.NewFakeAI(), logger.NewNoOpLogger())
	svc := NewPlanService(manager, repo, exec, logger.NewNoOpLogger())
	h := &harness{svc: svc}

	token := h.readySession(t)
	planID, err := svc.RequestGeneration(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []string{planID}, exec.planIDs)

	progress, err := svc.PollStatus(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, 10, progress.Percent)
	assert.False(t, progress.Terminal)
}

func TestPollStatus_UnknownPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.PollStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.ErrPlanNotFound))
}

func TestInsights(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, _, err := h.svc.StartSession(ctx, session.StartInput{BusinessIdea: "coffee subscription box"})
	require.NoError(t, err)

	empty, err := h.svc.Insights(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.AverageScore)
	assert.Empty(t, empty.Scores)

	var scores []int
	for _, answer := range genericAnswers[:3] {
		step, err := h.svc.SubmitAnswer(ctx, token, answer, 70)
		require.NoError(t, err)
		scores = append(scores, step.Score.Score)
	}

	insights, err := h.svc.Insights(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 3, insights.TurnCount)
	assert.Equal(t, scores, insights.Scores)
	assert.False(t, insights.Ready)

	want := int(math.Round(float64(scores[0]+scores[1]+scores[2]) / 3))
	assert.Equal(t, want, insights.AverageScore)
}

func TestResetSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, _, err := h.svc.StartSession(ctx, session.StartInput{BusinessIdea: "coffee subscription box"})
	require.NoError(t, err)
	require.NoError(t, h.svc.ResetSession(ctx, token))

	_, err = h.svc.Insights(ctx, token)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}
