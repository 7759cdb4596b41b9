// README: Queue channel: hands notification requests to downstream senders over Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

// MessageWriter is the subset of *kafka.Writer the queue channel uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Request is the record written to the notification topic.
type Request struct {
	OrderID       types.ID     `json:"orderId"`
	OrderNumber   string       `json:"orderNumber"`
	EventID       string       `json:"eventId"`
	Status        order.Status `json:"status"`
	CustomerName  string       `json:"customerName,omitempty"`
	CustomerEmail string       `json:"customerEmail,omitempty"`
	CustomerPhone string       `json:"customerPhone,omitempty"`
	Subject       string       `json:"subject"`
	Body          string       `json:"body"`
	EstimatedTime *time.Time   `json:"estimatedTime,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
}

type QueueNotifier struct {
	writer MessageWriter
}

func NewQueueNotifier(writer MessageWriter) *QueueNotifier {
	return &QueueNotifier{writer: writer}
}

// Notify writes one request keyed by order id, so a partition sees an order's requests in order.
func (q *QueueNotifier) Notify(ctx context.Context, note order.Notification) error {
	subject, body := Render(note)
	req := Request{
		OrderID:       note.Order.ID,
		OrderNumber:   note.Order.OrderNumber,
		EventID:       note.Event.ID,
		Status:        note.Event.Status,
		CustomerName:  note.Order.CustomerName,
		CustomerEmail: note.Order.CustomerEmail,
		CustomerPhone: note.Order.CustomerPhone,
		Subject:       subject,
		Body:          body,
		EstimatedTime: note.Event.EstimatedTime,
		OccurredAt:    note.Event.Timestamp,
	}
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notification request: %w", err)
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(note.Order.ID),
		Value: value,
		Time:  note.Event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("write notification request: %w", err)
	}
	return nil
}
