package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/metrics"
	"bizplan-workers/internal/executor"
)

const consumerTaskType = "plan-generation-queue"

// Consumer claims ready tasks from one category and runs them. A task is
// owned by whichever consumer removes it from the set, so concurrent
// consumers never run the same task. Stopping the consumer stops polling;
// a claimed task still runs to a terminal status.
type Consumer struct {
	client   redis.Cmdable
	queue    *RedisQueue
	category string
	runner   executor.Runner
	interval time.Duration
	batch    int64
	logger   logger.Logger
	now      func() time.Time
}

func NewConsumer(client redis.Cmdable, category string, runner executor.Runner, interval time.Duration, log logger.Logger) *Consumer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Consumer{
		client:   client,
		queue:    NewRedisQueue(client),
		category: category,
		runner:   runner,
		interval: interval,
		batch:    10,
		logger: log.WithFields(map[string]interface{}{
			"component": "queue-consumer",
			"category":  category,
		}),
		now: time.Now,
	}
}

// Start polls until ctx is done.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("queue consumer started", map[string]interface{}{"interval": c.interval.String()})
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.Poll(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("queue poll failed", map[string]interface{}{"error": err})
		}
		select {
		case <-ctx.Done():
			c.logger.Info("queue consumer stopped", nil)
			return
		case <-ticker.C:
		}
	}
}

// Poll claims and runs every ready task in one batch and reports how many
// it ran.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	key := delayedKey(c.category)
	members, err := c.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(c.now().UnixMilli(), 10),
		Count: c.batch,
	}).Result()
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, member := range members {
		removed, err := c.client.ZRem(ctx, key, member).Result()
		if err != nil {
			return ran, err
		}
		if removed == 0 {
			continue
		}
		c.handle(ctx, member)
		ran++
	}
	c.reportDepth(ctx)
	return ran, nil
}

func (c *Consumer) reportDepth(ctx context.Context) {
	depth, err := c.queue.Depth(ctx, c.category)
	if err != nil {
		c.logger.Debug("cannot read queue depth", map[string]interface{}{"error": err})
		return
	}
	metrics.PlanQueueDepth.WithLabelValues(c.category).Set(float64(depth))
}

func (c *Consumer) handle(ctx context.Context, member string) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(consumerTaskType).Observe(time.Since(start).Seconds())
	}()

	var env Envelope
	if err := json.Unmarshal([]byte(member), &env); err != nil {
		c.drop("undecodable envelope", err)
		return
	}
	task, err := executor.DecodeTask(env.Payload)
	if err != nil {
		c.drop("undecodable task", err)
		return
	}

	c.logger.Info("running queued plan generation", map[string]interface{}{
		"planId":   task.PlanID,
		"envelope": env.ID,
	})
	// ctx only bounds polling
	if err := c.runner.Run(context.WithoutCancel(ctx), task.PlanID, task.Request); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(consumerTaskType, "PIPELINE_FATAL").Inc()
		c.logger.Error("queued plan generation failed", map[string]interface{}{
			"planId": task.PlanID,
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(consumerTaskType).Inc()
}

func (c *Consumer) drop(msg string, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(consumerTaskType, "DECODE_FAILED").Inc()
	c.logger.Error(msg+", dropping task", map[string]interface{}{"error": err})
}
