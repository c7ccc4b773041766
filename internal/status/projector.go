// Package status maps persisted plan generation status to polling progress.
package status

import "bizplan-workers/internal/models"

// Progress is what a polling client sees for one plan.
type Progress struct {
	Status   string `json:"status"`
	Percent  int    `json:"progressPercent"`
	Message  string `json:"message"`
	Terminal bool   `json:"isTerminal"`
}

type projection struct {
	percent int
	message string
}

var projections = map[models.PlanStatus]projection{
	models.PlanStatusGenerating:            {10, "Analyzing your answers..."},
	models.PlanStatusTitleGenerated:        {20, "Title created. Preparing sections..."},
	models.PlanStatusGeneratingSections:    {30, "Writing business plan sections..."},
	models.PlanStatusGeneratingSuggestions: {80, "Preparing improvement suggestions..."},
	models.PlanStatusCompleted:             {100, "Your business plan is ready."},
	models.PlanStatusFailed:                {0, "Plan generation failed. Please try again."},
}

const unknownMessage = "Processing..."

// Project never fails. Unknown or empty values report 0 percent and a
// generic message.
func Project(status string) Progress {
	s := models.PlanStatus(status)
	p, ok := projections[s]
	if !ok {
		return Progress{Status: status, Percent: 0, Message: unknownMessage}
	}
	return Progress{
		Status:   status,
		Percent:  p.percent,
		Message:  p.message,
		Terminal: s.IsTerminal(),
	}
}
