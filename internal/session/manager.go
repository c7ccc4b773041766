package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/metrics"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/scoring"
)

// StartInput is the project context a session starts from.
type StartInput struct {
	BusinessIdea       string `json:"businessIdea"`
	ProjectID          string `json:"projectId"`
	ProjectName        string `json:"projectName"`
	ProjectDescription string `json:"projectDescription"`
	OwnerEmail         string `json:"ownerEmail,omitempty"`
}

// Manager owns stored sessions. Calls for the same token are serialized.
type Manager struct {
	store     Store
	questions models.QuestionGenerator
	locks     *keyedMutex
	logger    logger.Logger
	newToken  func() string
	now       func() time.Time
}

func NewManager(store Store, questions models.QuestionGenerator, log logger.Logger) *Manager {
	return &Manager{
		store:     store,
		questions: questions,
		locks:     newKeyedMutex(),
		logger:    log.WithFields(map[string]interface{}{"component": "session-manager"}),
		newToken:  uuid.NewString,
		now:       time.Now,
	}
}

// Start always creates a new session and returns its token with the first
// question. Nothing is stored when the first question cannot be obtained.
func (m *Manager) Start(ctx context.Context, in StartInput) (string, *models.Question, error) {
	if strings.TrimSpace(in.BusinessIdea) == "" {
		metrics.SessionEvents.WithLabelValues("rejected").Inc()
		return "", nil, errors.NewInvalidAnswerError("business idea must not be empty")
	}

	now := m.now().UTC()
	state := State{
		Token:              m.newToken(),
		BusinessIdea:       strings.TrimSpace(in.BusinessIdea),
		ProjectID:          in.ProjectID,
		ProjectName:        in.ProjectName,
		ProjectDescription: in.ProjectDescription,
		OwnerEmail:         in.OwnerEmail,
		Phase:              PhaseAwaitingFirstQuestion,
		Keywords:           scoring.KeywordsFromIdea(in.BusinessIdea),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	unlock := m.locks.Lock(state.Token)
	defer unlock()

	s := m.wrap(state)
	q, err := s.Start(ctx)
	if err != nil {
		m.logger.Warn("session start failed", map[string]interface{}{
			"projectId": in.ProjectID,
			"error":     err,
		})
		return "", nil, err
	}

	st := s.State()
	if err := m.store.Save(ctx, &st); err != nil {
		return "", nil, err
	}

	metrics.SessionEvents.WithLabelValues("started").Inc()
	m.logger.Info("questioning session started", map[string]interface{}{
		"token":     st.Token,
		"projectId": st.ProjectID,
	})
	return st.Token, q, nil
}

// SubmitAnswer applies one answer to the stored session and persists the
// result.
func (m *Manager) SubmitAnswer(ctx context.Context, token, answerText string, confidence float64) (NextStep, error) {
	unlock := m.locks.Lock(token)
	defer unlock()

	s, err := m.load(ctx, token)
	if err != nil {
		return NextStep{}, err
	}

	step, err := s.SubmitAnswer(ctx, answerText, confidence)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidSessionState) || errors.Is(err, errors.ErrInvalidAnswer) {
			metrics.SessionEvents.WithLabelValues("rejected").Inc()
		}
		return NextStep{}, err
	}

	st := s.State()
	if err := m.store.Save(ctx, &st); err != nil {
		return NextStep{}, err
	}

	metrics.SessionEvents.WithLabelValues("answered").Inc()
	metrics.AnswerQuality.Observe(float64(step.Score.Score))
	if step.Ready {
		metrics.SessionEvents.WithLabelValues("ready").Inc()
		m.logger.Info("questioning session ready", map[string]interface{}{
			"token":     token,
			"turnCount": step.TurnCount,
		})
	}
	return step, nil
}

// Get returns a copy of the stored state.
func (m *Manager) Get(ctx context.Context, token string) (State, error) {
	s, err := m.load(ctx, token)
	if err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// Handoff passes the generation request of a ready session to fn and
// clears the session once fn succeeds. The session is kept when fn fails.
func (m *Manager) Handoff(ctx context.Context, token string, fn func(models.GenerationRequest) (string, error)) (string, error) {
	unlock := m.locks.Lock(token)
	defer unlock()

	s, err := m.load(ctx, token)
	if err != nil {
		return "", err
	}
	req, err := s.Request()
	if err != nil {
		return "", err
	}

	id, err := fn(req)
	if err != nil {
		return "", err
	}

	if err := m.store.Delete(ctx, token); err != nil {
		m.logger.Warn("failed to clear handed-off session", map[string]interface{}{
			"token": token,
			"error": err,
		})
	}
	return id, nil
}

// Reset discards a session so the caller can start over.
func (m *Manager) Reset(ctx context.Context, token string) error {
	unlock := m.locks.Lock(token)
	defer unlock()

	return m.store.Delete(ctx, token)
}

func (m *Manager) load(ctx context.Context, token string) (*Session, error) {
	state, err := m.store.Load(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.wrap(*state), nil
}

func (m *Manager) wrap(state State) *Session {
	s := New(state, m.questions)
	s.now = m.now
	return s
}
