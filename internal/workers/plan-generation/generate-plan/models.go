// internal/workers/plan-generation/generate-plan/models.go
package generateplan

import "encoding/json"

// Input holds the process variables set when the plan generation process
// instance was started.
type Input struct {
	Category   string          `json:"category"`
	StartDelay string          `json:"startDelay"`
	Task       json.RawMessage `json:"task"`
}

type Output struct {
	PlanID     string `json:"planId"`
	PlanStatus string `json:"planStatus"`
}
