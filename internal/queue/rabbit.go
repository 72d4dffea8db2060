package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DainoJung/brawl-star/internal/config"
	"github.com/DainoJung/brawl-star/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMqClient publishes alarm dispatch summaries for downstream
// consumers (adherence tracking lives outside this service).
type RabbitMqClient struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Config  config.RabbitMQConfig
}

func NewRabbitMqService(cfg config.RabbitMQConfig) (*RabbitMqClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	client := &RabbitMqClient{
		Conn:    conn,
		Channel: channel,
		Config:  cfg,
	}
	if err := client.setUpExchangeAndQueue(); err != nil {
		client.CloseConnection()
		return nil, err
	}
	return client, nil
}

func (r *RabbitMqClient) CloseConnection() {
	r.Channel.Close()
	r.Conn.Close()
}

func (r *RabbitMqClient) IsConnected() bool {
	return r.Conn != nil && !r.Conn.IsClosed()
}

func (r *RabbitMqClient) setUpExchangeAndQueue() error {
	if err := r.Channel.ExchangeDeclare(
		r.Config.Exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := r.Channel.QueueDeclare(
		r.Config.AlarmQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := r.Channel.QueueBind(
		r.Config.AlarmQueue,
		r.Config.AlarmQueue,
		r.Config.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", r.Config.AlarmQueue, err)
	}
	return nil
}

func (r *RabbitMqClient) publish(ctx context.Context, routingKey string, message interface{}) error {
	by, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	err = r.Channel.PublishWithContext(
		ctx,
		r.Config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         by,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// PublishAlarmEvent emits one per-user dispatch summary.
func (r *RabbitMqClient) PublishAlarmEvent(ctx context.Context, event models.AlarmEvent) error {
	return r.publish(ctx, r.Config.AlarmQueue, event)
}
