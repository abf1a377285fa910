/**
 * Asynq Queue Consumer for the text annotation worker
 *
 * Alternative trigger to the plain Redis list: documents arrive as asynq
 * tasks of type "annotate-document" and asynq owns redelivery.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/processor"
)

// TaskTypeAnnotateDocument is the asynq task type handled by Consumer
const TaskTypeAnnotateDocument = "annotate-document"

// Consumer handles job consumption through asynq
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.DocumentProcessorInterface
	config    *ConsumerConfig
	logger    *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxRetry          int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout time.Duration // default 5 minutes
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("AsynqConsumer")
	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error",
					"type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskTypeAnnotateDocument, consumer.handleAnnotateDocument)

	return consumer, nil
}

// NewAnnotateTask builds a task for payload
func NewAnnotateTask(payload *JobPayload, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeAnnotateDocument, data, asynq.MaxRetry(maxRetry)), nil
}

// Enqueue submits a document to the consumer's queue
func (c *Consumer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	task, err := NewAnnotateTask(payload, c.config.MaxRetry)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.config.QueueName))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", payload.Key, err)
	}
	return info.ID, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() error {
	c.logger.Info("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleAnnotateDocument processes one annotate-document task
func (c *Consumer) handleAnnotateDocument(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	req := payload.ToRequest(taskID)
	c.logger.Info(fmt.Sprintf("[Job %s] Processing document: key=%s", req.JobID, req.Key))

	processCtx, cancel := context.WithTimeout(ctx, c.config.ProcessingTimeout)
	defer cancel()

	res := c.processor.Handle(processCtx, req)
	return resultError(req.JobID, res)
}

// resultError turns a failed invocation into the error asynq acts on.
// Unsupported input is never retried.
func resultError(jobID string, res *processor.InvocationResult) error {
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("job %s rejected: %s: %w", jobID, res.Body, asynq.SkipRetry)
	default:
		return fmt.Errorf("job %s failed with status %d: %s", jobID, res.StatusCode, res.Body)
	}
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"maxRetry":    c.config.MaxRetry,
	}
}
