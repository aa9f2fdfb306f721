package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares the booking and
// event queues (durable) and consumes them into logs/booking.log, one
// line per message. It runs a reconnect loop with exponential backoff
// and never returns under normal operation; processing errors are
// logged and the offending message is rejected without requeue so a
// poison message cannot wedge the consumer.
func StartAuditConsumer(url string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}

	queues := []string{BookingConfirmedQueue, BookingCancelledQueue, EventCancelledQueue}
	var wg sync.WaitGroup
	for _, name := range queues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		wg.Add(1)
		go func(name string, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				if err := handleMessage(name, d.Body); err != nil {
					log.Printf("audit-consumer: handle %s message failed: %v", name, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}(name, msgs)
	}
	wg.Wait()
	return errors.New("deliveries channel closed")
}

func handleMessage(queueName string, body []byte) error {
	var line string
	switch queueName {
	case BookingConfirmedQueue:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | event=%q | tier=%s | quantity=%d | total=%s\n",
			ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.EventTitle, ev.TicketType, ev.Quantity, ev.TotalPrice)
	case BookingCancelledQueue:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking cancelled | booking_id=%d | user_id=%d | event_id=%d | quantity=%d | reason=%s\n",
			ev.CancelledAt, ev.BookingID, ev.UserID, ev.EventID, ev.Quantity, ev.Reason)
	case EventCancelledQueue:
		var ev EventCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Event cancelled | event_id=%d | title=%q\n",
			ev.CancelledAt, ev.EventID, ev.EventTitle)
	default:
		return fmt.Errorf("unknown queue %s", queueName)
	}
	return appendAuditLine(line)
}

var auditMu sync.Mutex

func appendAuditLine(line string) error {
	auditMu.Lock()
	defer auditMu.Unlock()
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
