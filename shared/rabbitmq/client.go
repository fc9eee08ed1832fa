package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when publishing on a closed client
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string // optional; when set the queue is declared and bound
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

const defaultDialTimeout = 30 * time.Second

type dialFunc func(url string, config amqp.Config) (*amqp.Connection, error)

// Client is a publish-only RabbitMQ client. A dropped connection is
// re-dialed once on the next Publish.
type Client struct {
	mu      sync.Mutex
	config  *Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	dial    dialFunc
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient connects to RabbitMQ and declares the exchange (and queue, if configured)
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
		dial:   amqp.DialConfig,
		sleep:  sleepContext,
	}

	if err := client.connect(context.Background(), config.RetryAttempts); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// DSN renders the AMQP url for config.
func (c *Config) DSN() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	if vhost[0] != '/' {
		vhost = "/" + vhost
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, vhost)
}

func (c *Client) connect(ctx context.Context, attempts int) error {
	attempts = max(attempts, 1)
	dialTimeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
		if dialTimeout <= 0 {
			return context.DeadlineExceeded
		}
	}
	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.conn, err = c.dial(c.config.DSN(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Warn("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)
		if attempt < attempts {
			if serr := c.sleep(ctx, c.config.RetryInterval); serr != nil {
				return serr
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.declare(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to declare topology: %w", err)
	}

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
	)
	return nil
}

func (c *Client) declare() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if c.config.QueueName == "" {
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(c.config.QueueName, c.config.RoutingKey, c.config.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Publish sends body to the configured exchange, retrying with exponential backoff.
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if err := c.reconnect(ctx); err != nil {
			c.logger.Warn("RabbitMQ reconnect failed", slog.Any("error", err))
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	return withBackoff(ctx, c.publishPolicy(), c.sleep, func() error {
		return c.channel.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false, msg)
	}, func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_after", delay),
			slog.Any("error", err),
		)
	})
}

// reconnect drops what is left of the old connection and dials once.
// The caller holds c.mu.
func (c *Client) reconnect(ctx context.Context) error {
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}
	c.conn, c.channel = nil, nil

	if c.dial == nil {
		return errors.New("no dialer configured")
	}
	return c.connect(ctx, 1)
}

// Close closes the channel and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return nil
}

type backoffPolicy struct {
	retries    int
	baseDelay  time.Duration
	multiplier float64
}

func (c *Client) publishPolicy() backoffPolicy {
	p := backoffPolicy{
		retries:    c.config.PublishRetries,
		baseDelay:  c.config.PublishRetryDelay,
		multiplier: c.config.PublishBackoffMult,
	}
	if p.retries <= 0 {
		p.retries = 3
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 100 * time.Millisecond
	}
	if p.multiplier <= 1 {
		p.multiplier = 2
	}
	return p
}

// delay returns the wait after the given 0-based failed attempt.
func (p backoffPolicy) delay(attempt int) time.Duration {
	d := float64(p.baseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.multiplier
	}
	return time.Duration(d)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withBackoff(ctx context.Context, p backoffPolicy, sleep func(context.Context, time.Duration) error, op func() error, onRetry func(attempt int, delay time.Duration, err error)) error {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt < p.retries {
			d := p.delay(attempt)
			onRetry(attempt+1, d, lastErr)
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("failed to publish message after %d attempts: %w", p.retries+1, lastErr)
}
