// Package testutil provides in-memory collaborators for tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/models"
)

// FakeAI is a scripted AI backend. By default it always has another
// question, so any bound on turns must come from the caller.
type FakeAI struct {
	mu sync.Mutex

	FirstErr       error
	NextErr        error
	TitleErr       error
	SectionsErr    error
	SuggestionsErr error

	// NoQuestionAfter makes NextQuestion return nil once turnCount reaches it.
	NoQuestionAfter int

	// OnCall runs at the start of every call with the operation name.
	OnCall func(op string)

	TitleText       string
	SectionSet      models.SectionSet
	SuggestionItems []models.SuggestionItem

	calls         map[string]int
	lastTurnCount int
	lastTurns     []models.QuestionAnswerTurn
}

func NewFakeAI() *FakeAI {
	sections := models.SectionSet{}
	for _, key := range models.SectionKeys {
		sections[key] = "<p>generated " + key + "</p>"
	}
	return &FakeAI{
		TitleText:  "Generated Title",
		SectionSet: sections,
		SuggestionItems: []models.SuggestionItem{
			{Type: "marketing", Content: "Partner with local cafes", Priority: models.PriorityHigh},
			{Type: "finance", Content: "Track churn monthly"},
		},
		calls: make(map[string]int),
	}
}

// FailAll makes every call fail with an upstream error.
func (f *FakeAI) FailAll() *FakeAI {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := errors.NewUpstreamGenerationError("fake", fmt.Errorf("backend down"))
	f.FirstErr, f.NextErr, f.TitleErr, f.SectionsErr, f.SuggestionsErr = err, err, err, err, err
	return f
}

func (f *FakeAI) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

// Calls returns how often op was invoked.
func (f *FakeAI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// LastNext returns the arguments of the most recent NextQuestion call.
func (f *FakeAI) LastNext() ([]models.QuestionAnswerTurn, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTurns, f.lastTurnCount
}

func (f *FakeAI) FirstQuestion(ctx context.Context, idea, projectName, projectDescription string) (*models.Question, error) {
	f.record("first")
	if f.FirstErr != nil {
		return nil, f.FirstErr
	}
	return &models.Question{Text: "Question 1", Kind: models.QuestionKindText, Keywords: []string{"customers"}}, nil
}

func (f *FakeAI) NextQuestion(ctx context.Context, turns []models.QuestionAnswerTurn, idea string, turnCount int) (*models.Question, error) {
	f.record("next")
	f.mu.Lock()
	f.lastTurns = turns
	f.lastTurnCount = turnCount
	f.mu.Unlock()

	if f.NextErr != nil {
		return nil, f.NextErr
	}
	if f.NoQuestionAfter > 0 && turnCount >= f.NoQuestionAfter {
		return nil, nil
	}
	kind := models.QuestionKindText
	if turnCount%2 == 1 {
		kind = models.QuestionKindNumeric
	}
	return &models.Question{Text: fmt.Sprintf("Question %d", turnCount+1), Kind: kind}, nil
}

func (f *FakeAI) Title(ctx context.Context, req models.GenerationRequest) (string, error) {
	f.record("title")
	if f.TitleErr != nil {
		return "", f.TitleErr
	}
	return f.TitleText, nil
}

func (f *FakeAI) Sections(ctx context.Context, req models.GenerationRequest) (models.SectionSet, error) {
	f.record("sections")
	if f.SectionsErr != nil {
		return nil, f.SectionsErr
	}
	out := models.SectionSet{}
	for k, v := range f.SectionSet {
		out[k] = v
	}
	return out, nil
}

func (f *FakeAI) Suggestions(ctx context.Context, req models.GenerationRequest) ([]models.SuggestionItem, error) {
	f.record("suggestions")
	if f.SuggestionsErr != nil {
		return nil, f.SuggestionsErr
	}
	return append([]models.SuggestionItem(nil), f.SuggestionItems...), nil
}

// MemoryRepo is an in-memory PlanRepository that records every status
// written per plan.
type MemoryRepo struct {
	mu          sync.Mutex
	plans       map[string]*models.Plan
	history     map[string][]models.PlanStatus
	suggestions map[string][]models.SuggestionItem
	seq         int

	// FailOn makes the named method return the given error.
	FailOn map[string]error
	// FailStatus makes SetStatus fail when writing that status.
	FailStatus map[models.PlanStatus]error
	// HonorContext makes writes fail with ctx.Err() once ctx is done, as
	// database/sql does.
	HonorContext bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		plans:       make(map[string]*models.Plan),
		history:     make(map[string][]models.PlanStatus),
		suggestions: make(map[string][]models.SuggestionItem),
		FailOn:      make(map[string]error),
		FailStatus:  make(map[models.PlanStatus]error),
	}
}

func (r *MemoryRepo) fail(ctx context.Context, method string) error {
	if r.HonorContext && ctx.Err() != nil {
		return ctx.Err()
	}
	return r.FailOn[method]
}

func (r *MemoryRepo) Create(ctx context.Context, seed models.PlanSeed) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "Create"); err != nil {
		return "", err
	}
	r.seq++
	id := fmt.Sprintf("plan-%d", r.seq)
	now := time.Now().UTC()
	r.plans[id] = &models.Plan{
		ID:           id,
		ProjectID:    seed.ProjectID,
		BusinessIdea: seed.BusinessIdea,
		Status:       models.PlanStatusGenerating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, planID string, status models.PlanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "SetStatus"); err != nil {
		return err
	}
	if err := r.FailStatus[status]; err != nil {
		return err
	}
	p, ok := r.plans[planID]
	if !ok {
		return errors.NewPlanNotFoundError(planID)
	}
	p.Status = status
	r.history[planID] = append(r.history[planID], status)
	return nil
}

func (r *MemoryRepo) SetTitle(ctx context.Context, planID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "SetTitle"); err != nil {
		return err
	}
	p, ok := r.plans[planID]
	if !ok {
		return errors.NewPlanNotFoundError(planID)
	}
	p.Title = title
	return nil
}

func (r *MemoryRepo) SetSections(ctx context.Context, planID string, sections models.SectionSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "SetSections"); err != nil {
		return err
	}
	p, ok := r.plans[planID]
	if !ok {
		return errors.NewPlanNotFoundError(planID)
	}
	p.Sections = models.SectionSet{}
	for k, v := range sections {
		p.Sections[k] = v
	}
	return nil
}

func (r *MemoryRepo) AddSuggestion(ctx context.Context, planID string, item models.SuggestionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "AddSuggestion"); err != nil {
		return err
	}
	if _, ok := r.plans[planID]; !ok {
		return errors.NewPlanNotFoundError(planID)
	}
	r.suggestions[planID] = append(r.suggestions[planID], item)
	return nil
}

func (r *MemoryRepo) SetFailed(ctx context.Context, planID string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "SetFailed"); err != nil {
		return err
	}
	p, ok := r.plans[planID]
	if !ok {
		return errors.NewPlanNotFoundError(planID)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.Status = models.PlanStatusFailed
	p.GenerationError = raw
	r.history[planID] = append(r.history[planID], models.PlanStatusFailed)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, planID string) (*models.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(ctx, "Get"); err != nil {
		return nil, err
	}
	p, ok := r.plans[planID]
	if !ok {
		return nil, errors.NewPlanNotFoundError(planID)
	}
	out := *p
	return &out, nil
}

// History returns every status written for planID, in order.
func (r *MemoryRepo) History(planID string) []models.PlanStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PlanStatus(nil), r.history[planID]...)
}

func (r *MemoryRepo) Suggestions(planID string) []models.SuggestionItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SuggestionItem(nil), r.suggestions[planID]...)
}

// Seed inserts a plan in status generating and returns its id.
func (r *MemoryRepo) Seed(projectID string) string {
	id, _ := r.Create(context.Background(), models.PlanSeed{ProjectID: projectID})
	return id
}
