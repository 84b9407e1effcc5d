// Package rabbitmq wraps the AMQP connection used for event intake, with
// retrying initial dial and automatic reconnection.
package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/config"
)

const (
	initialBackoff     = time.Second
	maxBackoff         = 30 * time.Second
	maxInitialAttempts = 10
)

// Connection manages a RabbitMQ connection and channel with automatic recovery.
type Connection struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	config    *config.RabbitMQConfig
	logger    *zap.Logger
	stopChan  chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
}

func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Connect dials RabbitMQ, retrying with exponential backoff, then starts
// monitoring the connection for automatic reconnection.
func (c *Connection) Connect() error {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		err := c.dial()
		if err == nil {
			c.logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			break
		}
		if attempt >= maxInitialAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxInitialAttempts, err)
		}

		c.logger.Warn("RabbitMQ connection failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	go c.monitor()
	return nil
}

func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}

	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Vhost:     c.config.VHost,
		Properties: amqp.Table{
			"connection_name": "webhook-delivery",
		},
	}

	conn, err := amqp.DialConfig(c.config.ConnectionURL(), amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// monitor redials whenever the connection drops, until Close is called.
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		closeChan := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.stopChan:
			return
		case amqpErr, ok := <-closeChan:
			if !ok {
				return
			}
			c.logger.Warn("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))

			backoff := initialBackoff
			for {
				select {
				case <-c.stopChan:
					return
				default:
				}

				if err := c.dial(); err == nil {
					c.logger.Info("RabbitMQ connection re-established")
					break
				}

				time.Sleep(backoff)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}
}

// SetQoS bounds how many unacknowledged messages the channel will hold.
func (c *Connection) SetQoS(prefetchCount int) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return fmt.Errorf("channel is not open")
	}
	return c.channel.Qos(prefetchCount, 0, false)
}

// Consume starts consuming from the queue with manual acknowledgements.
func (c *Connection) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return nil, fmt.Errorf("channel is not open")
	}
	return c.channel.Consume(queue, consumerTag, false, false, false, false, nil)
}

// CancelConsumer stops the named consumer.
func (c *Connection) CancelConsumer(consumerTag string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return nil
	}
	return c.channel.Cancel(consumerTag, false)
}

// IsHealthy reports whether the connection and channel are open.
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Close shuts down the connection and stops reconnection monitoring.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.stopChan)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
}
