// internal/models/plan.go
package models

import (
	"context"
	"encoding/json"
	"time"
)

// PlanStatus is the generation status persisted on a plan record.
type PlanStatus string

const (
	PlanStatusGenerating            PlanStatus = "generating"
	PlanStatusTitleGenerated        PlanStatus = "title_generated"
	PlanStatusGeneratingSections    PlanStatus = "generating_sections"
	PlanStatusGeneratingSuggestions PlanStatus = "generating_suggestions"
	PlanStatusCompleted             PlanStatus = "completed"
	PlanStatusFailed                PlanStatus = "failed"
)

// IsTerminal reports whether no further transitions occur from s.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed
}

// Section keys of a business plan.
const (
	SectionExecutiveSummary  = "executive_summary"
	SectionMarketAnalysis    = "market_analysis"
	SectionSWOTAnalysis      = "swot_analysis"
	SectionMarketingStrategy = "marketing_strategy"
	SectionFinancialPlan     = "financial_plan"
	SectionOperationalPlan   = "operational_plan"
)

// SectionKeys lists every section in document order.
var SectionKeys = []string{
	SectionExecutiveSummary,
	SectionMarketAnalysis,
	SectionSWOTAnalysis,
	SectionMarketingStrategy,
	SectionFinancialPlan,
	SectionOperationalPlan,
}

// SectionSet maps section keys to generated HTML content. It is always
// persisted as one unit.
type SectionSet map[string]string

// Complete reports whether every section key has non-empty content.
func (s SectionSet) Complete() bool {
	for _, key := range SectionKeys {
		if s[key] == "" {
			return false
		}
	}
	return true
}

// Suggestion priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// SuggestionItem is one improvement suggestion attached to a plan.
type SuggestionItem struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

// Normalized returns a copy with the default priority filled in.
func (s SuggestionItem) Normalized() SuggestionItem {
	switch s.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		s.Priority = PriorityMedium
	}
	return s
}

// PlanSeed carries what is known about a plan at creation time.
type PlanSeed struct {
	ProjectID    string            `json:"projectId"`
	BusinessIdea string            `json:"businessIdea"`
	Request      GenerationRequest `json:"request"`
}

// Plan is the persisted plan record as seen by this subsystem.
type Plan struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"projectId"`
	Title           string          `json:"title"`
	Status          PlanStatus      `json:"status"`
	BusinessIdea    string          `json:"businessIdea"`
	Sections        SectionSet      `json:"sections,omitempty"`
	GenerationError json.RawMessage `json:"generationError,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PlanRepository defines plan data access used by the generation workflow.
type PlanRepository interface {
	Create(ctx context.Context, seed PlanSeed) (string, error)
	SetStatus(ctx context.Context, planID string, status PlanStatus) error
	SetTitle(ctx context.Context, planID, title string) error
	SetSections(ctx context.Context, planID string, sections SectionSet) error
	AddSuggestion(ctx context.Context, planID string, item SuggestionItem) error
	SetFailed(ctx context.Context, planID string, payload interface{}) error
	Get(ctx context.Context, planID string) (*Plan, error)
}
