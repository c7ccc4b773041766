// Package queue provides the durable task queues behind the queued
// execution strategy.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bizplan-workers/internal/common/errors"
)

// Envelope is what is stored per queued task.
type Envelope struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Payload  []byte    `json:"payload"`
	ReadyAt  time.Time `json:"readyAt"`
}

func delayedKey(category string) string {
	return fmt.Sprintf("queue:%s:delayed", category)
}

// RedisQueue stores tasks in a sorted set per category scored by the time
// they become ready.
type RedisQueue struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisQueue(client redis.Cmdable) *RedisQueue {
	return &RedisQueue{client: client, now: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, category string, delay time.Duration, payload []byte) error {
	if delay < 0 {
		delay = 0
	}
	env := Envelope{
		ID:       uuid.NewString(),
		Category: category,
		Payload:  payload,
		ReadyAt:  q.now().Add(delay).UTC(),
	}
	member, err := json.Marshal(env)
	if err != nil {
		return errors.NewQueueUnavailableError(category, err)
	}

	err = q.client.ZAdd(ctx, delayedKey(category), redis.Z{
		Score:  float64(env.ReadyAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return errors.NewQueueUnavailableError(category, err)
	}
	return nil
}

// Depth returns how many tasks wait in category, ready or not.
func (q *RedisQueue) Depth(ctx context.Context, category string) (int64, error) {
	return q.client.ZCard(ctx, delayedKey(category)).Result()
}
