// README: Customer-facing wording for status notifications, shared by every channel.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ordertrack/internal/modules/order"
)

// ErrNoRecipient means the order carries no address for this channel. Fan-out counts it as a skip.
var ErrNoRecipient = errors.New("no recipient for channel")

var statusHeadlines = map[order.Status]string{
	order.StatusPending:        "We received your order",
	order.StatusConfirmed:      "Your order is confirmed",
	order.StatusPreparing:      "Your order is being prepared",
	order.StatusReady:          "Your order is ready",
	order.StatusOutForDelivery: "Your order is on its way",
	order.StatusDelivered:      "Your order was delivered",
	order.StatusCancelled:      "Your order was cancelled",
}

// Headline is the one-line summary of a status for customers.
func Headline(s order.Status) string {
	if h, ok := statusHeadlines[s]; ok {
		return h
	}
	return "Your order status changed"
}

// Render builds the subject and plain-text body for n.
func Render(n order.Notification) (subject, body string) {
	o, e := n.Order, n.Event
	subject = fmt.Sprintf("%s (#%s)", Headline(e.Status), o.OrderNumber)

	var b strings.Builder
	if o.CustomerName != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", o.CustomerName)
	}
	fmt.Fprintf(&b, "%s.\n", Headline(e.Status))
	if e.Message != nil && *e.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", *e.Message)
	}
	if e.EstimatedTime != nil {
		fmt.Fprintf(&b, "\nEstimated time: %s\n", e.EstimatedTime.Format(time.RFC1123))
	}
	if e.Location != nil && *e.Location != "" {
		fmt.Fprintf(&b, "Current location: %s\n", *e.Location)
	}
	fmt.Fprintf(&b, "\nOrder number: %s\n", o.OrderNumber)
	return subject, b.String()
}
