package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned by every operation once the channel is gone
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// RetryPolicy describes a bounded retry loop with exponential backoff. A
// Multiplier of 1 gives a constant interval.
type RetryPolicy struct {
	Attempts   int
	Interval   time.Duration
	Multiplier float64
}

// delay returns the wait after the given zero-based failed attempt
func (p RetryPolicy) delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(p.Interval) * math.Pow(mult, float64(attempt)))
}

func (p RetryPolicy) orDefault(def RetryPolicy) RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

var (
	defaultConnectPolicy = RetryPolicy{Attempts: 1, Interval: time.Second, Multiplier: 1}
	defaultPublishPolicy = RetryPolicy{Attempts: 4, Interval: 100 * time.Millisecond, Multiplier: 2}
)

type Exchange struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
}

type Queue struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

// Config holds the broker address, the job event topology and retry behaviour
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string

	Exchange   Exchange
	Queue      Queue
	RoutingKey string

	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
	Connect           RetryPolicy
	// Publish.Attempts counts the first try
	Publish RetryPolicy
}

// URI returns the AMQP connection URI with credentials escaped
func (c *Config) URI() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// Client owns one connection and one channel bound to the configured topology
type Client struct {
	config    *Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	logger    *slog.Logger
	connected atomic.Bool
}

// NewClient dials the broker and declares the exchange, queue and binding
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	c := &Client{config: config, logger: logger}

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, config); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	c.conn, c.channel = conn, ch
	c.connected.Store(true)
	go c.watch(ch.NotifyClose(make(chan *amqp.Error, 1)))

	logger.Info("RabbitMQ client ready",
		slog.String("exchange", config.Exchange.Name),
		slog.String("queue", config.Queue.Name),
		slog.String("routing_key", config.RoutingKey),
	)
	return c, nil
}

func (c *Client) dial() (*amqp.Connection, error) {
	policy := c.config.Connect.orDefault(defaultConnectPolicy)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		conn, err := amqp.DialConfig(c.config.URI(), amqpConfig)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		c.logger.Warn("RabbitMQ dial failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", policy.Attempts),
			slog.Any("error", err),
		)
		if attempt+1 < policy.Attempts {
			time.Sleep(policy.delay(attempt))
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", policy.Attempts, lastErr)
}

func declareTopology(ch *amqp.Channel, cfg *Config) error {
	ex, q := cfg.Exchange, cfg.Queue

	if err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", ex.Name, err)
	}
	if _, err := ch.QueueDeclare(q.Name, q.Durable, q.AutoDelete, q.Exclusive, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", q.Name, err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, ex.Name, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q to %q: %w", q.Name, ex.Name, err)
	}
	return nil
}

// watch marks the client disconnected when the broker closes the channel
func (c *Client) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	c.connected.Store(false)
	if ok && amqpErr != nil {
		c.logger.Error("RabbitMQ channel closed by broker",
			slog.Int("code", amqpErr.Code),
			slog.String("reason", amqpErr.Reason),
		)
	}
}

// IsConnected reports whether the channel is still usable
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && !c.conn.IsClosed()
}

// SetQoS limits the number of unacknowledged deliveries per consumer
func (c *Client) SetQoS(prefetchCount int) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if err := c.channel.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// Consume subscribes to the configured queue with manual acknowledgement
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	deliveries, err := c.channel.Consume(c.config.Queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %q: %w", c.config.Queue.Name, err)
	}

	c.logger.Info("Consuming from RabbitMQ",
		slog.String("queue", c.config.Queue.Name),
		slog.String("consumer_tag", consumerTag),
	)
	return deliveries, nil
}

// PublishWithRetry sends one persistent message to the configured exchange,
// backing off between failed attempts. It gives up early when ctx ends.
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	policy := c.config.Publish.orDefault(defaultPublishPolicy)
	msg := amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		lastErr = c.channel.PublishWithContext(ctx, c.config.Exchange.Name, c.config.RoutingKey, false, false, msg)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Message published after retry", slog.Int("attempt", attempt+1))
			}
			return nil
		}

		if attempt+1 == policy.Attempts {
			break
		}

		wait := policy.delay(attempt)
		c.logger.Warn("Publish failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_after", wait),
			slog.Any("error", lastErr),
		)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("publish canceled after %d attempts: %w", attempt+1, ctx.Err())
		}
	}

	return fmt.Errorf("failed to publish after %d attempts: %w", policy.Attempts, lastErr)
}

// Close shuts the channel and connection; it is safe on a half-built client
func (c *Client) Close() error {
	c.connected.Store(false)

	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			c.logger.Warn("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}
