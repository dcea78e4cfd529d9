package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/democredit/wallet-service/internal/models"
	"github.com/streadway/amqp"
)

const (
	// queue for committed ledger events
	EventQueue = "ledger-events"
)

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		EventQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}

// PublishEvent publishes a committed ledger event to the queue.
func (r *RabbitMQ) PublishEvent(ctx context.Context, event *models.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Publish a message
	err = r.channel.Publish(
		"",         // exchange
		EventQueue, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// ConsumeEvents consumes ledger events from the queue.
func (r *RabbitMQ) ConsumeEvents(ctx context.Context) (<-chan models.LedgerEvent, error) {
	msgs, err := r.channel.Consume(
		EventQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	// Create a channel for events
	eventChan := make(chan models.LedgerEvent)

	// Process messages in a goroutine
	go pumpEvents(ctx, msgs, eventChan)

	return eventChan, nil
}

// pumpEvents decodes deliveries onto out until the context is cancelled or
// the delivery channel closes. The send also selects on ctx so the goroutine
// exits even while blocked on a stalled receiver.
func pumpEvents(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- models.LedgerEvent) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event models.LedgerEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				// Log error and continue
				log.Printf("failed to unmarshal ledger event: %v", err)
				msg.Reject(false) // Don't requeue
				continue
			}

			select {
			case out <- event:
				// Acknowledge message
				msg.Ack(false)
			case <-ctx.Done():
				return
			}
		}
	}
}
