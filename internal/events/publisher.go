package events

import (
	"context"
	"fmt"
	"log/slog"
)

// Broker is the publishing half of the RabbitMQ client
type Broker interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

type Publisher struct {
	broker Broker
	logger *slog.Logger
}

func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		logger: logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, e JobEvent) error {
	body, err := e.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, body, ContentType); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	p.logger.Debug("Job event published",
		slog.String("event_id", e.EventID.String()),
		slog.Int64("job_id", e.JobID),
		slog.String("event", e.Event),
		slog.String("to_stage", e.ToStage.String()),
	)
	return nil
}
