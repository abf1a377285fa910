/**
 * Text Annotation Worker - Main Entry Point
 *
 * Turns raw documents (plain text or OCR'd scans) into normalized text with
 * inline entity tags, writing the result under the processed prefix.
 *
 * Architecture:
 * - Redis list or asynq consumer for storage-event triggers
 * - Tesseract or remote document analysis for OCR input
 * - Column layout, heading, redundancy and reflow text cleanup
 * - Remote entity classifier for PERSON/ORG/LOCATION/TITLE tags
 * - PostgreSQL job records (optional) and file or PostgreSQL object storage
 *
 * One-shot mode: -key processes a single object and prints the result;
 * adding -enqueue submits it to the configured queue instead.
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/textannotate-worker/internal/clients"
	"github.com/adverant/nexus/textannotate-worker/internal/config"
	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/processor"
	"github.com/adverant/nexus/textannotate-worker/internal/queue"
	"github.com/adverant/nexus/textannotate-worker/internal/storage"
)

// queueConsumer is the part of either queue backend main drives
type queueConsumer interface {
	Start(ctx context.Context) error
	Stop() error
}

var logger = logging.NewLogger("Worker")

func main() {
	key := flag.String("key", "", "process a single object key and exit")
	bucket := flag.String("bucket", "", "bucket for -key (defaults to BUCKET_NAME)")
	enqueue := flag.Bool("enqueue", false, "submit -key to the queue instead of processing it")
	envFile := flag.String("env", ".env.textannotate", "environment file to load")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(*envFile); err != nil {
		logger.Warn(fmt.Sprintf("%s not found, using system environment variables", *envFile))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	logger.Info("Text annotation worker starting...",
		"queue_backend", cfg.QueueBackend, "object_store", cfg.ObjectStore,
		"ocr_engine", cfg.OCREngine, "workers", cfg.WorkerConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		fatal("Failed to configure Redis", err)
	}
	defer redisClient.Close()

	storageManager, err := storage.NewStorageManager(ctx, &storage.StorageConfig{
		Backend:     cfg.ObjectStore,
		Root:        cfg.ObjectStoreRoot,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		fatal("Failed to initialize storage manager", err)
	}
	defer storageManager.Close()
	logger.Info("Storage manager initialized", "backend", cfg.ObjectStore, "job_records", cfg.DatabaseURL != "")

	proc, err := newProcessor(cfg, redisClient, storageManager)
	if err != nil {
		fatal("Failed to initialize document processor", err)
	}

	if *key != "" && *enqueue {
		if err := submit(ctx, cfg, redisClient, proc, &queue.JobPayload{Bucket: *bucket, Key: *key}); err != nil {
			fatal("Failed to enqueue document", err)
		}
		return
	}

	readyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = proc.Ready(readyCtx)
	cancel()
	if err != nil {
		fatal("Worker is not ready", err)
	}

	if *key != "" {
		code := runOnce(ctx, cfg, proc, *bucket, *key)
		storageManager.Close()
		redisClient.Close()
		os.Exit(code)
	}

	consumer, err := newConsumer(cfg, redisClient, proc)
	if err != nil {
		fatal("Failed to initialize queue consumer", err)
	}
	if err := consumer.Start(ctx); err != nil {
		fatal("Failed to start queue consumer", err)
	}

	logger.Info("Text annotation worker is READY",
		"queue", cfg.QueueName, "workers", cfg.WorkerConcurrency, "timeout", cfg.Timeout())

	<-ctx.Done()
	logger.Info("Received shutdown signal, initiating graceful shutdown...")

	if err := consumer.Stop(); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}
	logger.Info("Shutdown complete")
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func newProcessor(cfg *config.Config, redisClient *redis.Client, sm *storage.StorageManager) (*processor.DocumentProcessor, error) {
	var source config.ParameterSource = config.EnvParameterSource{}
	if cfg.ParameterSource == "redis" {
		source = config.NewRedisParameterSource(redisClient, cfg.ParameterHash)
	}

	var analyzer processor.DocumentAnalyzer
	switch cfg.OCREngine {
	case "remote":
		analyzer = clients.NewAnalysisClient(cfg.AnalysisURL)
	default:
		tesseract, err := processor.NewTesseractAnalyzer(&processor.TesseractConfig{
			Store:       sm,
			Language:    cfg.TesseractLanguage,
			MaxFileSize: cfg.MaxFileSize,
		})
		if err != nil {
			return nil, err
		}
		analyzer = tesseract
	}

	return processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Objects:            sm,
		Jobs:               sm,
		Analyzer:           analyzer,
		Classifier:         clients.NewEntityClient(cfg.EntityClassifierURL),
		Parameters:         config.NewParameterStore(source, config.DefaultParameters),
		LanguageCode:       cfg.LanguageCode,
		LegacySpecialChars: cfg.LegacySpecialChars,
		MaxFileSize:        cfg.MaxFileSize,
	})
}

func newConsumer(cfg *config.Config, redisClient *redis.Client, proc *processor.DocumentProcessor) (queueConsumer, error) {
	if cfg.QueueBackend == "asynq" {
		return queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: cfg.Timeout(),
		})
	}
	return queue.NewRedisConsumer(&queue.RedisConsumerConfig{
		Client:            redisClient,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		ProcessingTimeout: cfg.Timeout(),
	})
}

// submit pushes one document onto the configured queue backend
func submit(ctx context.Context, cfg *config.Config, redisClient *redis.Client, proc *processor.DocumentProcessor, payload *queue.JobPayload) error {
	const maxRetries = 3

	var (
		id  string
		err error
	)
	if cfg.QueueBackend == "asynq" {
		var c *queue.Consumer
		c, err = queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:  cfg.RedisURL,
			QueueName: cfg.QueueName,
			MaxRetry:  maxRetries,
			Processor: proc,
		})
		if err != nil {
			return err
		}
		defer c.Stop()
		id, err = c.Enqueue(ctx, payload)
	} else {
		var c *queue.RedisConsumer
		c, err = queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			Client:    redisClient,
			QueueName: cfg.QueueName,
			Processor: proc,
		})
		if err != nil {
			return err
		}
		id, err = c.Enqueue(ctx, payload, maxRetries)
	}
	if err != nil {
		return err
	}

	logger.Info("Document enqueued", "job_id", id, "key", payload.Key, "queue", cfg.QueueName)
	return nil
}

// runOnce processes a single object and prints the invocation result
func runOnce(ctx context.Context, cfg *config.Config, proc *processor.DocumentProcessor, bucket, key string) int {
	payload := &queue.JobPayload{Bucket: bucket, Key: key}
	req := payload.ToRequest("")

	jobCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	res := proc.Handle(jobCtx, req)
	out, _ := json.Marshal(res)
	fmt.Println(string(out))

	if res.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
