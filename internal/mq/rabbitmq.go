package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dphs-ocr/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes events to per-topic RabbitMQ queues.
type RabbitMQPublisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	queueDurable bool
}

// NewRabbitMQPublisher constructs a RabbitMQ publisher from config.
func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:         conn,
		channel:      ch,
		queueDurable: cfg.QueueDurable,
	}, nil
}

// Publish sends a message to the named queue, declaring it if necessary.
func (r *RabbitMQPublisher) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("topic is required")
	}

	if _, err := r.channel.QueueDeclare(topic, r.queueDurable, false, false, false, nil); err != nil {
		return "", err
	}

	id, err := messageID()
	if err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	err = r.channel.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		MessageId:   id,
		ContentType: "application/json",
		Body:        data,
		Headers:     headers,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Close closes the channel and connection.
func (r *RabbitMQPublisher) Close() error {
	var err error
	if r.channel != nil {
		err = r.channel.Close()
	}
	if r.conn != nil {
		if closeErr := r.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func messageID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
