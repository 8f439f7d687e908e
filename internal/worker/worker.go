package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/pickup-be/internal/events"
	"github.com/cuongbtq/pickup-be/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the consuming half of the RabbitMQ client
type Broker interface {
	SetQoS(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// EventStore persists job events
type EventStore interface {
	RecordJobEvent(ctx context.Context, e *events.JobEvent) (bool, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Store         EventStore
	QueueName     string
	ConsumerTag   string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
}

// Worker consumes job events and records them in the stage history
type Worker struct {
	logger            *slog.Logger
	broker            Broker
	storage           EventStore
	workerID          string
	rabbitMQQueueName string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	jobsChan          chan *domain.EventMessage
	wg                sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.ConsumerTag
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	return &Worker{
		logger:            cfg.Logger,
		broker:            cfg.Broker,
		storage:           cfg.Store,
		workerID:          workerID,
		rabbitMQQueueName: cfg.QueueName,
		concurrency:       cfg.Concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		jobsChan:          make(chan *domain.EventMessage, cfg.Concurrency),
	}
}

// Start consumes until ctx is canceled or the delivery channel closes, then
// waits for in-flight events to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	close(w.jobsChan)
	w.wg.Wait()

	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return nil
}
