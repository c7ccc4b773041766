// Package session implements the turn-based questioning session that
// collects answers before a plan is generated.
//
// A Session is not safe for concurrent use. Manager serializes access per
// session token.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/scoring"
)

// MaxTurns is the number of answered questions after which a session is
// ready to generate, whatever the backend would ask next.
const MaxTurns = 5

type Phase string

const (
	PhaseAwaitingFirstQuestion Phase = "awaiting_first_question"
	PhaseAwaitingAnswer        Phase = "awaiting_answer"
	PhaseReadyToGenerate       Phase = "ready_to_generate"
)

// State is the serializable session value persisted between requests.
type State struct {
	Token              string                      `json:"token"`
	BusinessIdea       string                      `json:"businessIdea"`
	ProjectID          string                      `json:"projectId"`
	ProjectName        string                      `json:"projectName"`
	ProjectDescription string                      `json:"projectDescription"`
	OwnerEmail         string                      `json:"ownerEmail,omitempty"`
	Phase              Phase                       `json:"phase"`
	Turns              []models.QuestionAnswerTurn `json:"turns"`
	Current            *models.Question            `json:"current,omitempty"`
	TurnCount          int                         `json:"turnCount"`
	Keywords           []string                    `json:"keywords,omitempty"`
	CreatedAt          time.Time                   `json:"createdAt"`
	UpdatedAt          time.Time                   `json:"updatedAt"`
}

// NextStep is the outcome of one submitted answer. Question is nil once
// the session is ready to generate.
type NextStep struct {
	Question  *models.Question `json:"question,omitempty"`
	Ready     bool             `json:"ready"`
	TurnCount int              `json:"turnCount"`
	Score     scoring.Result   `json:"score"`
}

type Session struct {
	state     State
	questions models.QuestionGenerator
	now       func() time.Time
}

// New wraps state with behaviour. The session owns a copy of state.
func New(state State, questions models.QuestionGenerator) *Session {
	return &Session{
		state:     copyState(state),
		questions: questions,
		now:       time.Now,
	}
}

// Start requests the first question. It is only valid on a fresh session.
func (s *Session) Start(ctx context.Context) (*models.Question, error) {
	if s.state.Phase != PhaseAwaitingFirstQuestion {
		return nil, errors.NewInvalidSessionStateError(
			fmt.Sprintf("cannot start session in phase %s", s.state.Phase))
	}

	q, err := s.questions.FirstQuestion(ctx, s.state.BusinessIdea, s.state.ProjectName, s.state.ProjectDescription)
	if err != nil {
		return nil, upstream("first_question", err)
	}
	if q == nil || strings.TrimSpace(q.Text) == "" {
		return nil, errors.NewUpstreamGenerationError("first_question", fmt.Errorf("missing question text"))
	}

	s.state.Current = normalizeQuestion(q)
	s.state.Phase = PhaseAwaitingAnswer
	s.state.UpdatedAt = s.now().UTC()
	return copyQuestion(s.state.Current), nil
}

// SubmitAnswer records an answer to the current question and decides what
// comes next. Nothing is recorded when an error is returned.
func (s *Session) SubmitAnswer(ctx context.Context, answerText string, confidence float64) (NextStep, error) {
	if s.state.Phase != PhaseAwaitingAnswer || s.state.Current == nil {
		return NextStep{}, errors.NewInvalidSessionStateError(
			fmt.Sprintf("cannot submit answer in phase %s", s.state.Phase))
	}
	answer := strings.TrimSpace(answerText)
	if answer == "" {
		return NextStep{}, errors.NewInvalidAnswerError("answer must not be empty")
	}

	current := s.state.Current
	keywords := append(append([]string{}, current.Keywords...), s.state.Keywords...)
	result := scoring.Analyze(answer, confidence, keywords)

	turn := models.QuestionAnswerTurn{
		Question:     current.Text,
		Kind:         current.Kind,
		Answer:       answer,
		QualityScore: result.Score,
		CapturedAt:   s.now().UTC(),
	}
	turns := append(append(make([]models.QuestionAnswerTurn, 0, len(s.state.Turns)+1), s.state.Turns...), turn)
	turnCount := s.state.TurnCount + 1

	if turnCount >= MaxTurns {
		s.commit(turns, turnCount, nil)
		return NextStep{Ready: true, TurnCount: turnCount, Score: result}, nil
	}

	next, err := s.questions.NextQuestion(ctx, copyTurns(turns), s.state.BusinessIdea, turnCount)
	if err != nil {
		return NextStep{}, upstream("next_question", err)
	}
	if next == nil || strings.TrimSpace(next.Text) == "" {
		s.commit(turns, turnCount, nil)
		return NextStep{Ready: true, TurnCount: turnCount, Score: result}, nil
	}

	s.commit(turns, turnCount, normalizeQuestion(next))
	return NextStep{Question: copyQuestion(s.state.Current), TurnCount: turnCount, Score: result}, nil
}

func (s *Session) commit(turns []models.QuestionAnswerTurn, turnCount int, next *models.Question) {
	s.state.Turns = turns
	s.state.TurnCount = turnCount
	s.state.Current = next
	if next == nil {
		s.state.Phase = PhaseReadyToGenerate
	}
	s.state.UpdatedAt = s.now().UTC()
}

// Answers returns the recorded turns in order.
func (s *Session) Answers() []models.QuestionAnswerTurn {
	return copyTurns(s.state.Turns)
}

func (s *Session) Ready() bool {
	return s.state.Phase == PhaseReadyToGenerate
}

func (s *Session) Phase() Phase {
	return s.state.Phase
}

// State returns a copy of the serializable state.
func (s *Session) State() State {
	return copyState(s.state)
}

// Request builds the generation request once the session is ready.
func (s *Session) Request() (models.GenerationRequest, error) {
	if !s.Ready() {
		return models.GenerationRequest{}, errors.NewInvalidSessionStateError(
			fmt.Sprintf("session not ready to generate (phase %s)", s.state.Phase))
	}
	return models.GenerationRequest{
		BusinessIdea:       s.state.BusinessIdea,
		ProjectID:          s.state.ProjectID,
		ProjectName:        s.state.ProjectName,
		ProjectDescription: s.state.ProjectDescription,
		OwnerEmail:         s.state.OwnerEmail,
		Answers:            copyTurns(s.state.Turns),
	}, nil
}

func upstream(op string, err error) error {
	if errors.Is(err, errors.ErrUpstreamGeneration) {
		return err
	}
	return errors.NewUpstreamGenerationError(op, err)
}

func normalizeQuestion(q *models.Question) *models.Question {
	out := copyQuestion(q)
	out.Text = strings.TrimSpace(out.Text)
	if out.Kind != models.QuestionKindNumeric {
		out.Kind = models.QuestionKindText
	}
	return out
}

func copyQuestion(q *models.Question) *models.Question {
	if q == nil {
		return nil
	}
	out := *q
	out.Keywords = append([]string(nil), q.Keywords...)
	return &out
}

func copyTurns(turns []models.QuestionAnswerTurn) []models.QuestionAnswerTurn {
	return append([]models.QuestionAnswerTurn(nil), turns...)
}

func copyState(st State) State {
	st.Turns = copyTurns(st.Turns)
	st.Current = copyQuestion(st.Current)
	st.Keywords = append([]string(nil), st.Keywords...)
	return st
}
