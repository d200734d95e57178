package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// SendPattern is the routing key and message pattern consumed by the mail worker.
const SendPattern = "mail.send"

type message struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
	ID      string `json:"id,omitempty"`
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPMailer publishes emails as JSON messages to a topic exchange.
type AMQPMailer struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	from     string
	logger   *zap.Logger
}

// DialAMQPMailer connects to the broker and declares the durable topic exchange.
func DialAMQPMailer(amqpURL, exchange, from string, logger *zap.Logger) (*AMQPMailer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	m := NewAMQPMailer(channel, exchange, from, logger)
	m.conn = conn
	return m, nil
}

func NewAMQPMailer(channel Channel, exchange, from string, logger *zap.Logger) *AMQPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPMailer{
		channel:  channel,
		exchange: exchange,
		from:     from,
		logger:   logger,
	}
}

func (m *AMQPMailer) Send(ctx context.Context, email Email) error {
	if err := email.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if email.From == "" {
		email.From = m.from
	}

	body, err := json.Marshal(message{Pattern: SendPattern, Data: email})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	m.logger.Debug("publishing email",
		zap.String("exchange", m.exchange),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
	)

	err = m.channel.Publish(
		m.exchange,
		SendPattern,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish email: %w", err)
	}

	return nil
}

func (m *AMQPMailer) Close() {
	if m.channel != nil {
		m.channel.Close()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}
