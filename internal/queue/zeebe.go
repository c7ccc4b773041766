package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"bizplan-workers/internal/common/errors"
)

// ProcessStarter starts BPMN process instances.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// ZeebeQueue enqueues a task by starting a process instance whose timer
// waits startDelay before the generate-business-plan service task.
type ZeebeQueue struct {
	starter   ProcessStarter
	processID string
}

func NewZeebeQueue(starter ProcessStarter, processID string) *ZeebeQueue {
	return &ZeebeQueue{starter: starter, processID: processID}
}

func (q *ZeebeQueue) Enqueue(ctx context.Context, category string, delay time.Duration, payload []byte) error {
	if !json.Valid(payload) {
		return errors.NewQueueUnavailableError(category, errInvalidPayload)
	}

	_, err := q.starter.StartProcess(ctx, q.processID, map[string]interface{}{
		"category":   category,
		"startDelay": isoDuration(delay),
		"task":       json.RawMessage(payload),
	})
	if err != nil {
		return errors.NewQueueUnavailableError(category, err)
	}
	return nil
}

var errInvalidPayload = errors.New("payload is not valid JSON")

// isoDuration formats d as an ISO-8601 duration in seconds, e.g. PT2.5S.
func isoDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return "PT" + strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "S"
}
