package notify

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

var (
	// ErrReconnecting is returned while another caller is dialing the broker.
	ErrReconnecting = errors.New("rabbitmq reconnect in progress")
	ErrClosed       = errors.New("publisher closed")
)

// AMQPPublisher pushes rendered notifications onto a durable RabbitMQ queue
// for delivery workers. The connection is opened lazily and reopened after it
// drops; only one caller dials at a time and the others fail fast.
type AMQPPublisher struct {
	url            string
	queue          string
	connectTimeout time.Duration
	dial           func(url string, timeout time.Duration) (*amqp.Connection, error)

	mu      sync.Mutex
	conn    *amqp.Connection
	dialing bool
	closed  bool
}

func NewAMQPPublisher(url, queue string, connectTimeout time.Duration) *AMQPPublisher {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	return &AMQPPublisher{
		url:            url,
		queue:          queue,
		connectTimeout: connectTimeout,
		dial:           dialAMQP,
	}
}

func dialAMQP(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(timeout),
	})
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.CreatedAt,
			Type:         string(msg.Kind),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ch.PublishWithContext -> %w", err)
	}

	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	conn, err := p.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("conn.Channel -> %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("ch.QueueDeclare -> %w", err)
	}

	return ch, nil
}

// connection returns the open connection or dials a new one without holding
// p.mu across the network round trip.
func (p *AMQPPublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, ErrClosed
	case p.conn != nil && !p.conn.IsClosed():
		conn := p.conn
		p.mu.Unlock()
		return conn, nil
	case p.dialing:
		p.mu.Unlock()
		return nil, ErrReconnecting
	}
	p.dialing = true
	p.mu.Unlock()

	conn, err := p.dial(p.url, p.connectTimeout)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		return nil, fmt.Errorf("p.dial -> %w", err)
	}
	if p.closed {
		_ = conn.Close()
		return nil, ErrClosed
	}
	p.conn = conn
	zap.L().Info("connected to rabbitmq", zap.String("queue", p.queue))

	return conn, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.closed = true
	p.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}
