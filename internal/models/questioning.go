// internal/models/questioning.go
package models

import (
	"context"
	"time"
)

// QuestionKind tells the client which input to render.
type QuestionKind string

const (
	QuestionKindText    QuestionKind = "text"
	QuestionKindNumeric QuestionKind = "numeric"
)

// Question is one question issued by the AI backend.
type Question struct {
	Text     string       `json:"text"`
	Kind     QuestionKind `json:"kind"`
	Keywords []string     `json:"keywords,omitempty"`
}

// QuestionAnswerTurn is one answered question. Turns are never mutated
// after capture.
type QuestionAnswerTurn struct {
	Question     string       `json:"question"`
	Kind         QuestionKind `json:"kind"`
	Answer       string       `json:"answer"`
	QualityScore int          `json:"qualityScore"`
	CapturedAt   time.Time    `json:"capturedAt"`
}

// GenerationRequest is handed from a completed questioning session to the
// generation pipeline.
type GenerationRequest struct {
	BusinessIdea       string               `json:"businessIdea"`
	ProjectID          string               `json:"projectId"`
	ProjectName        string               `json:"projectName"`
	ProjectDescription string               `json:"projectDescription"`
	OwnerEmail         string               `json:"ownerEmail,omitempty"`
	Answers            []QuestionAnswerTurn `json:"answers"`
}

// QuestionGenerator issues questions during a questioning session. A nil
// question with a nil error from NextQuestion means no more questions.
type QuestionGenerator interface {
	FirstQuestion(ctx context.Context, idea, projectName, projectDescription string) (*Question, error)
	NextQuestion(ctx context.Context, turns []QuestionAnswerTurn, idea string, turnCount int) (*Question, error)
}

// PlanContentGenerator produces plan content for the generation stages.
type PlanContentGenerator interface {
	Title(ctx context.Context, req GenerationRequest) (string, error)
	Sections(ctx context.Context, req GenerationRequest) (SectionSet, error)
	Suggestions(ctx context.Context, req GenerationRequest) ([]SuggestionItem, error)
}

// AIBackend is the complete generative-AI collaborator.
type AIBackend interface {
	QuestionGenerator
	PlanContentGenerator
}
