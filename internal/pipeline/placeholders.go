package pipeline

import (
	"strings"

	"bizplan-workers/internal/models"
)

var placeholderSections = map[string]string{
	models.SectionExecutiveSummary: "<p>Your executive summary is being prepared. " +
		"Describe your business, its mission and what makes it unique.</p>",
	models.SectionMarketAnalysis: "<p>Market analysis is not available yet. " +
		"Outline your target market, its size and your main competitors.</p>",
	models.SectionSWOTAnalysis: "<p>SWOT analysis is not available yet. " +
		"List your strengths, weaknesses, opportunities and threats.</p>",
	models.SectionMarketingStrategy: "<p>Marketing strategy is not available yet. " +
		"Explain how you will reach and retain customers.</p>",
	models.SectionFinancialPlan: "<p>Financial plan is not available yet. " +
		"Add revenue projections, costs and funding needs.</p>",
	models.SectionOperationalPlan: "<p>Operational plan is not available yet. " +
		"Describe day-to-day operations, suppliers and staffing.</p>",
}

// Placeholders returns the fixed content used for every section when
// section generation fails.
func Placeholders() models.SectionSet {
	out := make(models.SectionSet, len(placeholderSections))
	for k, v := range placeholderSections {
		out[k] = v
	}
	return out
}

// FallbackTitle is the deterministic title used when title generation fails.
func FallbackTitle(projectName string) string {
	name := strings.TrimSpace(projectName)
	if name == "" {
		name = "Untitled Project"
	}
	return name + " - Business Plan"
}
