// README: Notification channel and fan-out tests with fake transports.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordertrack/internal/logger"
	"ordertrack/internal/modules/order"
)

type fakeSender struct {
	from, to, subject, body string
	err                     error
}

func (f *fakeSender) Send(_ context.Context, from, to, subject, body string) error {
	f.from, f.to, f.subject, f.body = from, to, subject, body
	return f.err
}

type fakeMessenger struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", f.err
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

type notifierFunc func(ctx context.Context, n order.Notification) error

func (f notifierFunc) Notify(ctx context.Context, n order.Notification) error { return f(ctx, n) }

func sampleNotification() order.Notification {
	eta := time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC)
	msg := "Driver is 5 minutes away"
	return order.Notification{
		Order: order.Snapshot{
			ID:            "o-1",
			OrderNumber:   "ORD-42",
			CustomerName:  "Ada",
			CustomerEmail: "ada@example.com",
			Status:        order.StatusOutForDelivery,
		},
		Event: order.Event{
			ID:            "e-9",
			OrderID:       "o-1",
			Status:        order.StatusOutForDelivery,
			Message:       &msg,
			EstimatedTime: &eta,
			Timestamp:     eta.Add(-30 * time.Minute),
		},
	}
}

func TestRender(t *testing.T) {
	subject, body := Render(sampleNotification())
	assert.Equal(t, "Your order is on its way (#ORD-42)", subject)
	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "Driver is 5 minutes away")
	assert.Contains(t, body, "Estimated time:")
	assert.Contains(t, body, "Order number: ORD-42")
	assert.Equal(t, "Your order status changed", Headline(order.Status("odd")))
}

func TestEmailNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailNotifier(sender, "orders@restaurant.test")

	require.NoError(t, n.Notify(context.Background(), sampleNotification()))
	assert.Equal(t, "orders@restaurant.test", sender.from)
	assert.Equal(t, "ada@example.com", sender.to)
	assert.Contains(t, sender.subject, "ORD-42")

	note := sampleNotification()
	note.Order.CustomerEmail = " "
	assert.ErrorIs(t, n.Notify(context.Background(), note), ErrNoRecipient)
}

func TestPushNotifier(t *testing.T) {
	m := &fakeMessenger{}
	n := NewPushNotifier(m)

	require.NoError(t, n.Notify(context.Background(), sampleNotification()))
	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "order-o-1", msg.Topic)
	assert.Equal(t, "out_for_delivery", msg.Data["status"])
	assert.Equal(t, "e-9", msg.Data["event_id"])
	assert.Equal(t, "2026-05-01T19:30:00Z", msg.Data["estimated_time"])
	assert.Equal(t, "Your order is on its way", msg.Notification.Title)

	m.err = errors.New("quota exceeded")
	assert.Error(t, n.Notify(context.Background(), sampleNotification()))
}

func TestOrderTopicSanitizes(t *testing.T) {
	assert.Equal(t, "order-a_b_c", OrderTopic("a/b c"))
}

func TestQueueNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := NewQueueNotifier(w)

	require.NoError(t, n.Notify(context.Background(), sampleNotification()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))

	var req Request
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &req))
	assert.Equal(t, "ORD-42", req.OrderNumber)
	assert.Equal(t, order.StatusOutForDelivery, req.Status)
	assert.Equal(t, "ada@example.com", req.CustomerEmail)
	assert.NotEmpty(t, req.Body)
}

func TestMultiContinuesPastFailures(t *testing.T) {
	var calls []string
	record := func(name string, err error) order.Notifier {
		return notifierFunc(func(context.Context, order.Notification) error {
			calls = append(calls, name)
			return err
		})
	}
	m := NewMulti(logger.Discard(),
		Channel{Name: "email", Notifier: record("email", errors.New("smtp down"))},
		Channel{Name: "push", Notifier: record("push", ErrNoRecipient)},
		Channel{Name: "queue", Notifier: record("queue", nil)},
	)
	assert.Equal(t, 3, m.Len())

	err := m.Notify(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
	assert.NotErrorIs(t, err, ErrNoRecipient)
	assert.Equal(t, []string{"email", "push", "queue"}, calls)
}

func TestMultiAllSucceed(t *testing.T) {
	ok := notifierFunc(func(context.Context, order.Notification) error { return nil })
	m := NewMulti(logger.Discard(), Channel{Name: "a", Notifier: ok}, Channel{Name: "b", Notifier: ok})
	assert.NoError(t, m.Notify(context.Background(), sampleNotification()))
	assert.NoError(t, NewMulti(logger.Discard()).Notify(context.Background(), sampleNotification()))
}
