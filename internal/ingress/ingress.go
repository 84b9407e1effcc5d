// Package ingress consumes normalized domain events from the event queue
// and hands them to the publisher for durable fan-out. Delivery rows are
// committed before the message is acknowledged, so a crash in between
// redelivers the event instead of dropping it.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/config"
	"github.com/liyaqa/webhook-delivery/internal/models"
	"github.com/liyaqa/webhook-delivery/internal/publisher"
	"github.com/liyaqa/webhook-delivery/internal/rabbitmq"
)

const prefetchCount = 16

// Consumer reads domain events off the queue and publishes deliveries.
type Consumer struct {
	cfg         *config.RabbitMQConfig
	conn        *rabbitmq.Connection
	publisher   *publisher.Publisher
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
}

func NewConsumer(cfg *config.RabbitMQConfig, conn *rabbitmq.Connection, pub *publisher.Publisher, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:         cfg,
		conn:        conn,
		publisher:   pub,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: fmt.Sprintf("webhook-ingress-%d", time.Now().Unix()),
	}
}

// Start begins consuming from the event queue. Assumes the queue exists.
func (c *Consumer) Start() error {
	if c.cfg.EventQueue == "" {
		return fmt.Errorf("event queue is required")
	}

	if err := c.conn.SetQoS(prefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messages, err := c.conn.Consume(c.cfg.EventQueue, c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", c.cfg.EventQueue, err)
	}

	go c.processMessages(messages)

	c.logger.Info("Event consumer started",
		zap.String("queue", c.cfg.EventQueue),
		zap.String("consumer_tag", c.consumerTag),
	)
	return nil
}

// Stop cancels the consumer and stops message processing.
func (c *Consumer) Stop() {
	c.cancel()
	if err := c.conn.CancelConsumer(c.consumerTag); err != nil {
		c.logger.Error("Failed to cancel consumer",
			zap.String("consumer_tag", c.consumerTag),
			zap.Error(err),
		)
	}
	c.logger.Info("Event consumer stopped")
}

func (c *Consumer) processMessages(messages <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				c.logger.Warn("Message channel closed, attempting to restart consumer",
					zap.String("queue", c.cfg.EventQueue),
				)
				c.restartConsuming()
				return
			}
			c.handleMessage(msg)
		}
	}
}

// restartConsuming re-registers the consumer after a channel close, waiting
// for the connection to recover first.
func (c *Consumer) restartConsuming() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		time.Sleep(2 * time.Second)
		if !c.conn.IsHealthy() {
			continue
		}

		if err := c.Start(); err != nil {
			c.logger.Error("Failed to restart event consumer, will retry",
				zap.String("queue", c.cfg.EventQueue),
				zap.Error(err),
			)
			time.Sleep(5 * time.Second)
			continue
		}
		return
	}
}

// handleMessage decodes one event and queues its deliveries. Malformed
// messages are rejected without requeue; persistence failures are
// requeued so the event is not lost.
func (c *Consumer) handleMessage(msg amqp.Delivery) {
	var event models.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error("Failed to unmarshal event, rejecting",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		c.reject(msg, false)
		return
	}

	if event.EventType == "" {
		c.logger.Error("Event has no event_type, rejecting",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
		)
		c.reject(msg, false)
		return
	}

	count, err := c.publisher.Publish(c.ctx, event)
	if err != nil {
		c.logger.Error("Failed to queue deliveries for event, requeueing",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID.String()),
			zap.Error(err),
		)
		c.reject(msg, true)
		return
	}

	c.logger.Debug("Event processed",
		zap.String("event_type", event.EventType),
		zap.Int("delivery_count", count),
	)
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}

func (c *Consumer) reject(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Error("Failed to nack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
