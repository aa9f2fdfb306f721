package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends domain events to RabbitMQ. Each publish opens a
// short-lived connection so a broker outage never holds booking
// transactions hostage; errors are logged and returned so callers can
// ignore them without interrupting the request flow.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// BookingConfirmed publishes to the booking.confirmed queue.
func (p *Publisher) BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	return p.publish(ctx, BookingConfirmedQueue, ev)
}

// BookingCancelled publishes to the booking.cancelled queue.
func (p *Publisher) BookingCancelled(ctx context.Context, ev BookingCancelledEvent) error {
	return p.publish(ctx, BookingCancelledQueue, ev)
}

// EventCancelled publishes to the event.cancelled queue.
func (p *Publisher) EventCancelled(ctx context.Context, ev EventCancelledEvent) error {
	return p.publish(ctx, EventCancelledQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, ev any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish to %s failed: %v", queueName, err)
		return err
	}
	return nil
}
