package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"bizplan-workers/internal/models"
)

// Task is the unit of work handed between strategies and queues: one plan
// and the request to generate it from.
type Task struct {
	PlanID     string                   `json:"planId"`
	Request    models.GenerationRequest `json:"request"`
	EnqueuedAt time.Time                `json:"enqueuedAt"`
}

func EncodeTask(t Task) ([]byte, error) {
	if t.PlanID == "" {
		return nil, fmt.Errorf("task has no plan id")
	}
	return json.Marshal(t)
}

func DecodeTask(payload []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.PlanID == "" {
		return Task{}, fmt.Errorf("decode task: missing planId")
	}
	return t, nil
}
