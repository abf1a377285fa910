/**
 * Direct Redis Queue Consumer for the text annotation worker
 *
 * Job ids are pushed onto a Redis LIST and their data kept in <queue>:data,
 * matching the producer side. Each worker owns one document at a time.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.DocumentProcessorInterface
	config    *RedisConsumerConfig
	logger    *logging.Logger
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	Client            *redis.Client
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout time.Duration // default 5 minutes
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("Redis client is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "textannotate:jobs"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}

	return &RedisConsumer{
		client:    cfg.Client,
		processor: cfg.Processor,
		config:    cfg,
		logger:    logging.NewLogger("RedisConsumer"),
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	group, groupCtx := errgroup.WithContext(workerCtx)
	c.group = group

	for i := 0; i < c.config.Concurrency; i++ {
		id := i
		group.Go(func() error {
			c.worker(groupCtx, id)
			return nil
		})
	}

	c.logger.Info("Queue consumer started successfully")
	return nil
}

// Stop waits for in-flight jobs after stopping the workers
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer...")
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		if err := c.group.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// worker processes jobs until ctx is cancelled
func (c *RedisConsumer) worker(ctx context.Context, id int) {
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("Worker error", "worker", id, "error", err)
				// Small delay before trying again
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob(ctx context.Context) error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(ctx, 5*time.Second, c.config.QueueName).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	// A job taken off the list is finished and recorded even during shutdown
	ctx = context.WithoutCancel(ctx)

	queueID := result[1]
	jobData, err := c.client.HGet(ctx, c.key("data"), queueID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.markFailed(ctx, queueID, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to unmarshal job %s: %w", queueID, err)
	}
	if job.ID == "" {
		job.ID = queueID
	}

	req := job.Payload.ToRequest(job.ID)
	c.updateJobStatus(ctx, req.JobID, "processing", nil)
	c.logger.Info(fmt.Sprintf("Processing job %s: %s", req.JobID, req.Key))

	res := c.handle(ctx, req)
	if res.StatusCode == http.StatusOK {
		c.updateJobStatus(ctx, req.JobID, "completed", res)
		c.logger.Info(fmt.Sprintf("Job %s completed successfully", req.JobID))
		return nil
	}

	c.logger.Warn(fmt.Sprintf("Job %s failed", req.JobID), "status", res.StatusCode, "body", res.Body)
	job.Attempts++
	if shouldRetry(res, job.Attempts, job.MaxRetries) {
		if err := c.requeue(ctx, &job, req.JobID); err != nil {
			c.updateJobStatus(ctx, req.JobID, "failed", map[string]interface{}{
				"statusCode": res.StatusCode,
				"error":      res.Body,
				"attempts":   job.Attempts,
				"requeue":    err.Error(),
			})
			return fmt.Errorf("failed to re-queue job %s: %w", req.JobID, err)
		}
		c.logger.Info(fmt.Sprintf("Job %s re-queued for retry (attempt %d/%d)", req.JobID, job.Attempts, job.MaxRetries))
		return nil
	}

	c.updateJobStatus(ctx, req.JobID, "failed", map[string]interface{}{
		"statusCode": res.StatusCode,
		"error":      res.Body,
		"attempts":   job.Attempts,
	})
	return nil
}

// requeue stores the updated attempt count and pushes the job back. The job
// leaves the processing set while it waits.
func (c *RedisConsumer) requeue(ctx context.Context, job *RedisJobData, jobID string) error {
	updated, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.key("processing"), jobID)
	pipe.HSet(ctx, c.key("data"), job.ID, updated)
	pipe.LPush(ctx, c.config.QueueName, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

// Enqueue stores the job data and pushes its id onto the queue
func (c *RedisConsumer) Enqueue(ctx context.Context, payload *JobPayload, maxRetries int) (string, error) {
	job := RedisJobData{
		ID:         NormalizeJobID(payload.JobID),
		Type:       TaskTypeAnnotateDocument,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: maxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.key("data"), job.ID, data)
	pipe.LPush(ctx, c.config.QueueName, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", payload.Key, err)
	}
	return job.ID, nil
}

// handle runs one job under the processing timeout
func (c *RedisConsumer) handle(ctx context.Context, req *processor.ProcessRequest) *processor.InvocationResult {
	c.logger.Debug(fmt.Sprintf("[Job %s] Processing timeout set to: %v", req.JobID, c.config.ProcessingTimeout))

	jobCtx, cancel := context.WithTimeout(ctx, c.config.ProcessingTimeout)
	defer cancel()

	return c.processor.Handle(jobCtx, req)
}

// shouldRetry re-queues server-side failures only. Unsupported input never
// succeeds on redelivery.
func shouldRetry(res *processor.InvocationResult, attempts, maxRetries int) bool {
	if res.StatusCode == http.StatusBadRequest {
		return false
	}
	return attempts < maxRetries
}

// updateJobStatus tracks the job in the Redis status sets and publishes an event
func (c *RedisConsumer) updateJobStatus(ctx context.Context, jobID string, status string, result interface{}) {
	switch status {
	case "processing":
		c.client.SAdd(ctx, c.key("processing"), jobID)
	case "completed":
		c.client.SRem(ctx, c.key("processing"), jobID)
		c.client.SAdd(ctx, c.key("completed"), jobID)
		if result != nil {
			resultData, _ := json.Marshal(result)
			c.client.HSet(ctx, c.key("results"), jobID, resultData)
		}
	case "failed":
		c.markFailed(ctx, jobID, result)
		return
	}
	c.publish(ctx, jobID, status)
}

func (c *RedisConsumer) markFailed(ctx context.Context, jobID string, result interface{}) {
	c.client.SRem(ctx, c.key("processing"), jobID)
	c.client.SAdd(ctx, c.key("failed"), jobID)
	if result != nil {
		errorData, _ := json.Marshal(result)
		c.client.HSet(ctx, c.key("errors"), jobID, errorData)
	}
	c.publish(ctx, jobID, "failed")
}

func (c *RedisConsumer) publish(ctx context.Context, jobID, status string) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	if err := c.client.Publish(ctx, c.key("events"), eventData).Err(); err != nil {
		c.logger.Debug("Failed to publish job event", "job_id", jobID, "error", err)
	}
}

func (c *RedisConsumer) key(suffix string) string {
	return fmt.Sprintf("%s:%s", c.config.QueueName, suffix)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	waiting, err := c.client.LLen(ctx, c.config.QueueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	processing, _ := c.client.SCard(ctx, c.key("processing")).Result()
	completed, _ := c.client.SCard(ctx, c.key("completed")).Result()
	failed, _ := c.client.SCard(ctx, c.key("failed")).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}
