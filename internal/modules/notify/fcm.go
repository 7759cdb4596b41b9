// README: Push channel over Firebase Cloud Messaging, one topic per order.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"firebase.google.com/go/v4/messaging"

	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

// Messenger is the subset of *messaging.Client the push channel uses.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\-_.~%]`)

// OrderTopic is the FCM topic a customer's app subscribes to for one order.
func OrderTopic(id types.ID) string {
	return "order-" + topicUnsafe.ReplaceAllString(string(id), "_")
}

type PushNotifier struct {
	client Messenger
}

func NewPushNotifier(client Messenger) *PushNotifier {
	return &PushNotifier{client: client}
}

func (p *PushNotifier) Notify(ctx context.Context, note order.Notification) error {
	msg := pushMessage(note)
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM to topic %s: %w", msg.Topic, err)
	}
	return nil
}

func pushMessage(note order.Notification) *messaging.Message {
	e := note.Event
	_, body := Render(note)
	data := map[string]string{
		"type":      "status_update",
		"order_id":  string(note.Order.ID),
		"event_id":  e.ID,
		"status":    string(e.Status),
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
	if e.EstimatedTime != nil {
		data["estimated_time"] = e.EstimatedTime.Format(time.RFC3339)
	}
	if e.Message != nil {
		data["message"] = *e.Message
	}
	return &messaging.Message{
		Topic: OrderTopic(note.Order.ID),
		Data:  data,
		Notification: &messaging.Notification{
			Title: Headline(e.Status),
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
