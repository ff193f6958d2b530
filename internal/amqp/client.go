package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"entrate/internal/metrics"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type binding struct {
	queue      string
	routingKey string
}

// Client publishes and consumes income events on a durable direct exchange.
// Publishing trips a circuit breaker after repeated failures so callers on
// the request path fail fast while the broker is down.
type Client struct {
	url          string
	exchangeName string

	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	bindings []binding

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn, c.channel = conn, channel
	bindings := append([]binding(nil), c.bindings...)
	c.mu.Unlock()
	if old != nil && !old.IsClosed() {
		old.Close()
	}

	for _, b := range bindings {
		if err := c.bind(b); err != nil {
			return err
		}
	}
	return nil
}

// DeclareQueue declares a durable queue bound to routingKey.
func (c *Client) DeclareQueue(queue, routingKey string) error {
	b := binding{queue: queue, routingKey: routingKey}
	if err := c.bind(b); err != nil {
		return err
	}
	c.mu.Lock()
	c.bindings = append(c.bindings, b)
	c.mu.Unlock()
	return nil
}

func (c *Client) bind(b binding) error {
	ch := c.currentChannel()
	if ch == nil {
		return errors.New("channel not open")
	}
	_, err := ch.QueueDeclare(
		b.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}
	if err := ch.QueueBind(b.queue, b.routingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", b.queue, err)
	}
	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// PublishSourceChanged announces a created or edited income source.
func (c *Client) PublishSourceChanged(ctx context.Context, sourceID int64) error {
	body, err := NewSourceChangedMessage(sourceID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingSourceChanged, body)
}

// PublishRecordSync queues a record for export.
func (c *Client) PublishRecordSync(ctx context.Context, recordID int64) error {
	body, err := NewRecordSyncMessage(recordID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingRecordSync, body)
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		metrics.MessagesPublished.WithLabelValues(routingKey, "rejected").Inc()
		return fmt.Errorf("publish %s: %w", routingKey, ErrCircuitOpen)
	}

	ch := c.currentChannel()
	if ch == nil {
		c.recordFailure()
		return errors.New("publish: channel not open")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	messageID := uuid.NewString()
	err := ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		metrics.MessagesPublished.WithLabelValues(routingKey, "error").Inc()
		if isConnectionError(err) {
			if rerr := c.connect(); rerr != nil {
				slog.WarnContext(ctx, "AMQP reconnect failed", "error", rerr)
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	metrics.MessagesPublished.WithLabelValues(routingKey, "ok").Inc()
	slog.DebugContext(ctx, "Published message",
		"message_id", messageID,
		"routing_key", routingKey,
		"exchange", c.exchangeName)
	return nil
}

// ConsumeSourceChanged blocks handling source-changed messages until ctx ends.
func (c *Client) ConsumeSourceChanged(ctx context.Context, queue string, handler func(context.Context, *SourceChangedMessage) error) error {
	return c.consume(ctx, queue, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := SourceChangedMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// ConsumeRecordSync blocks handling record-sync messages until ctx ends.
func (c *Client) ConsumeRecordSync(ctx context.Context, queue string, handler func(context.Context, *RecordSyncMessage) error) error {
	return c.consume(ctx, queue, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := RecordSyncMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// consume runs the delivery loop, reconnecting with backoff when the broker
// drops the channel. handle reports decoded=false for malformed payloads,
// which are rejected without requeue; handler errors requeue the delivery.
func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) (decoded bool, err error)) error {
	attempt := 0
	for {
		ch := c.currentChannel()
		if ch == nil {
			return errors.New("consume: channel not open")
		}
		msgs, err := ch.Consume(
			queue, // queue
			"",    // consumer
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("start consuming %s: %w", queue, err)
		}
		slog.InfoContext(ctx, "Started consuming messages", "queue", queue)
		attempt = 0

		if err := c.deliveryLoop(ctx, queue, msgs, handle); err != nil {
			return err
		}

		// channel closed underneath us
		for {
			wait := exponentialBackoff(attempt)
			slog.WarnContext(ctx, "AMQP channel closed, reconnecting", "queue", queue, "backoff", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			if err := c.connect(); err != nil {
				attempt++
				continue
			}
			break
		}
	}
}

func (c *Client) deliveryLoop(ctx context.Context, queue string, msgs <-chan amqp091.Delivery, handle func(context.Context, []byte) (bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return nil
			}
			decoded, err := handle(ctx, delivery.Body)
			switch {
			case !decoded:
				slog.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, "message_id", delivery.MessageId, "error", err)
				delivery.Nack(false, false)
				metrics.MessagesConsumed.WithLabelValues(queue, "reject").Inc()
			case err != nil:
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "message_id", delivery.MessageId, "error", err)
				delivery.Nack(false, true)
				metrics.MessagesConsumed.WithLabelValues(queue, "requeue").Inc()
			default:
				delivery.Ack(false)
				metrics.MessagesConsumed.WithLabelValues(queue, "ack").Inc()
			}
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
