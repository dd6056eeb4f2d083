package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "aquapark.orders"

	dialTimeout  = 2 * time.Second
	retryBackoff = 30 * time.Second
)

// ErrBrokerUnavailable is returned without dialling while a recent connection
// failure is still backing off.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// AMQPPublisher publishes events to a durable topic exchange, routed by event
// type. The connection is dialled lazily with a short timeout. After a failed
// dial, publishes fail fast until the backoff elapses.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *zap.Logger
	dial     func(url string) (*amqp.Connection, error)
	now      func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

func NewAMQPPublisher(url, exchange string, log *zap.Logger) *AMQPPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		log:      log,
		dial: func(url string) (*amqp.Connection, error) {
			return amqp.DialConfig(url, amqp.Config{
				Heartbeat: 10 * time.Second,
				Locale:    "en_US",
				Dial:      amqp.DefaultDial(dialTimeout),
			})
		},
		now: time.Now,
	}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if now := p.now(); now.Before(p.retryAt) {
			return nil, fmt.Errorf("%w: retrying in %s", ErrBrokerUnavailable, p.retryAt.Sub(now).Round(time.Second))
		}
		conn, err := p.dial(p.url)
		if err != nil {
			p.retryAt = p.now().Add(retryBackoff)
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		p.conn = conn
		p.retryAt = time.Time{}
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.Warn("event publish skipped", zap.String("type", event.Type), zap.String("order_id", event.OrderID), zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    event.OrderID + ":" + event.Type,
			Body:         body,
		},
	)
	if err != nil {
		p.log.Warn("event publish failed", zap.String("type", event.Type), zap.String("order_id", event.OrderID), zap.Error(err))
		_ = ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
