package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bizplan-workers/internal/models"
)

func TestProject(t *testing.T) {
	tests := []struct {
		status   string
		percent  int
		terminal bool
	}{
		{string(models.PlanStatusGenerating), 10, false},
		{string(models.PlanStatusTitleGenerated), 20, false},
		{string(models.PlanStatusGeneratingSections), 30, false},
		{string(models.PlanStatusGeneratingSuggestions), 80, false},
		{string(models.PlanStatusCompleted), 100, true},
		{string(models.PlanStatusFailed), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := Project(tt.status)
			assert.Equal(t, tt.percent, p.Percent)
			assert.Equal(t, tt.terminal, p.Terminal)
			assert.Equal(t, tt.status, p.Status)
			assert.NotEmpty(t, p.Message)
		})
	}
}

func TestProject_UnknownStatus(t *testing.T) {
	for _, s := range []string{"", "queued", "COMPLETED", "drafting"} {
		assert.NotPanics(t, func() {
			p := Project(s)
			assert.Equal(t, 0, p.Percent)
			assert.False(t, p.Terminal)
			assert.Equal(t, "Processing...", p.Message)
		})
	}
}

func TestProject_MonotonicAlongSuccessPath(t *testing.T) {
	path := []models.PlanStatus{
		models.PlanStatusGenerating,
		models.PlanStatusTitleGenerated,
		models.PlanStatusGeneratingSections,
		models.PlanStatusGeneratingSuggestions,
		models.PlanStatusCompleted,
	}

	last := -1
	for _, s := range path {
		p := Project(string(s))
		assert.Greater(t, p.Percent, last, s)
		last = p.Percent
	}
}
