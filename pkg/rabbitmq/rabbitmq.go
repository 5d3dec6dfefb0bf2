package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// AuthEventsQueue receives user.registered and user.logged_in events.
const AuthEventsQueue = "auth_events"

// ErrChannelClosed is returned when the client has no usable channel.
var ErrChannelClosed = errors.New("RabbitMQ channel is not available")

// Client holds the RabbitMQ connection, the publishing channel and any
// consumer channels.
type Client struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	consumers []*amqp.Channel
	log       logrus.FieldLogger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ, opens a channel and declares the auth events queue.
func NewClient(cfg Config, log logrus.FieldLogger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareAuthEvents(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.WithField("queue", AuthEventsQueue).Info("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		log:     log,
	}, nil
}

func declareAuthEvents(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		AuthEventsQueue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare %s: %w", AuthEventsQueue, err)
	}
	return q, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, ch := range c.consumers {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer channel: %w", err))
		}
	}
	c.consumers = nil
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

// PublishEvent sends payload as JSON to the auth events queue. The event type
// travels in the message's Type property.
func (c *Client) PublishEvent(eventType string, payload interface{}) error {
	msg, err := NewEventMessage(eventType, payload, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return ErrChannelClosed
	}

	if err := c.channel.Publish(
		"",              // default exchange
		AuthEventsQueue, // routing key
		false,           // mandatory
		false,           // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	c.log.WithField("event", eventType).Debug("Published auth event")
	return nil
}

// NewEventMessage builds the persistent JSON message for an auth event.
func NewEventMessage(eventType string, payload interface{}, at time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         eventType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    at,
	}, nil
}

// ConsumeAuthEvents delivers every auth event to handler on a background
// goroutine, using a channel separate from the publishing one. Messages are
// acked when handler returns nil and nacked with requeue otherwise.
func (c *Client) ConsumeAuthEvents(handler func(msg amqp.Delivery) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrChannelClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set consumer prefetch: %w", err)
	}

	queue, err := declareAuthEvents(ch)
	if err != nil {
		ch.Close()
		return err
	}

	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.consumers = append(c.consumers, ch)

	c.log.WithField("queue", queue.Name).Info("Waiting for auth events")

	go func() {
		for msg := range msgs {
			Dispatch(msg, handler, c.log)
		}
	}()

	return nil
}

// Acknowledger is the subset of amqp.Delivery used to settle a message.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Dispatch runs handler for one delivery and settles it.
func Dispatch(msg amqp.Delivery, handler func(amqp.Delivery) error, log logrus.FieldLogger) {
	settle(msg, msg.DeliveryTag, handler(msg), log)
}

func settle(ack Acknowledger, tag uint64, handlerErr error, log logrus.FieldLogger) {
	entry := log.WithField("delivery_tag", tag)
	if handlerErr != nil {
		entry.WithError(handlerErr).Warn("Error processing auth event")
		if err := ack.Nack(false, true); err != nil {
			entry.WithError(err).Error("Error nacking message")
		}
		return
	}
	if err := ack.Ack(false); err != nil {
		entry.WithError(err).Error("Error acking message")
	}
}
